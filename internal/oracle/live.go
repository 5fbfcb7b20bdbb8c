package oracle

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type liveSubscription struct {
	id     uuid.UUID
	mode   Mode
	since  time.Time
	cancel context.CancelFunc
	done   chan struct{}

	decisions atomic.Int64
	failures  atomic.Int64
}

func (l *liveSubscription) info() SubscriptionInfo {
	return SubscriptionInfo{
		ID:        l.id,
		Mode:      l.mode,
		Since:     l.since,
		Decisions: l.decisions.Load(),
		Failures:  l.failures.Load(),
	}
}

func (o *Oracle) startLive(ctx context.Context, r *run, sub *interfaces.LogSubscription, boundary uint64, hasBoundary bool) *liveSubscription {
	liveCtx, cancel := context.WithCancel(ctx)
	live := &liveSubscription{
		id:     uuid.New(),
		mode:   r.mode,
		since:  o.now(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.live = live

	o.mu.Lock()
	o.subs[live.id] = live
	o.mu.Unlock()

	o.wg.Add(1)
	go o.listen(liveCtx, r, live, sub, boundary, hasBoundary)

	r.logger.Info("Listening for arbitration requests",
		zap.String("subscription_id", live.id.String()),
	)
	return live
}

// listen processes live requests one at a time until its context ends.
// When hasBoundary is set, logs at or below boundary were already covered
// by a history sweep. Reconnect sweeps start after the last block seen.
func (o *Oracle) listen(ctx context.Context, r *run, live *liveSubscription, sub *interfaces.LogSubscription, boundary uint64, hasBoundary bool) {
	defer o.wg.Done()
	defer close(live.done)
	defer o.forget(live.id)
	defer live.cancel()

	log := r.logger.With(zap.String("subscription_id", live.id.String()))
	last := boundary

	for {
		var dropped error
		select {
		case <-ctx.Done():
			o.release(sub)
			log.Info("Live subscription stopped")
			return

		case entry, ok := <-sub.Logs:
			if !ok {
				dropped = fmt.Errorf("log stream closed")
				break
			}
			if entry.Removed {
				continue
			}
			if hasBoundary && entry.BlockNumber <= boundary {
				continue
			}
			if entry.BlockNumber > last {
				last = entry.BlockNumber
			}
			o.handleLive(ctx, r, entry)
			continue

		case err, ok := <-sub.Err:
			dropped = err
			if !ok || err == nil {
				dropped = fmt.Errorf("log stream closed")
			}
		}

		if ctx.Err() != nil {
			continue
		}
		log.Warn("Live subscription dropped, reconnecting", zap.Error(dropped))
		o.release(sub)

		next, head, err := o.reconnect(ctx, r, last)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("Giving up on live subscription", zap.Error(err))
			}
			return
		}
		sub = next
		boundary, hasBoundary = head, true
		if head > last {
			last = head
		}
	}
}

func (o *Oracle) handleLive(ctx context.Context, r *run, entry types.Log) {
	req, ok := o.parseRequest(entry)
	if !ok {
		return
	}
	item := o.materialize(ctx, r, req, r.mode.Suppresses())
	if item == nil {
		return
	}

	d, f := o.judge(ctx, context.WithoutCancel(ctx), r, item, req)
	if ctx.Err() != nil {
		r.logger.Debug("Discarding result after unsubscribe",
			zap.String("obligation", req.Obligation.Hex()),
		)
		return
	}
	if d != nil {
		r.emit(*d)
	}
	if f != nil {
		r.fail(*f)
	}
}

// reconnect resubscribes with backoff and sweeps the blocks after last that
// the dropped stream may have missed, suppressing anything already decided.
// It returns the highest block the sweep covered.
func (o *Oracle) reconnect(ctx context.Context, r *run, last uint64) (*interfaces.LogSubscription, uint64, error) {
	var sub *interfaces.LogSubscription
	operation := func() error {
		s, err := o.gateway.SubscribeLogs(ctx, o.requestQuery(nil, nil))
		if err != nil {
			r.logger.Warn("Resubscribe failed", zap.Error(err))
			return err
		}
		sub = s
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(o.reconnectBackoff(), ctx)); err != nil {
		return nil, 0, fmt.Errorf("failed to resubscribe: %w", err)
	}

	head, err := o.gateway.LatestHeader(ctx)
	if err != nil {
		r.logger.Warn("Skipping reconnect sweep, chain head unavailable", zap.Error(err))
		return sub, last, nil
	}
	to := head.Number.Uint64()
	if to <= last {
		return sub, last, nil
	}
	decisions, failed, err := o.sweep(ctx, r, last+1, to, true)
	if err != nil {
		r.logger.Warn("Reconnect sweep failed", zap.Error(err))
		return sub, last, nil
	}
	r.logger.Info("Reconnected live subscription",
		zap.Uint64("from", last+1),
		zap.Uint64("head", to),
		zap.Int("decisions", len(decisions)),
		zap.Int("failed", len(failed)),
	)
	return sub, to, nil
}
