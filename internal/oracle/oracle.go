package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	"github.com/arkhai-io/alkahest-sub000/internal/constants"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/demand"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures an Oracle
type Options struct {
	// Arbiter is the trusted-oracle arbiter deployment
	Arbiter common.Address
	// DeploymentBlock is the first block the arbiter can have logged in.
	// Decision lookups never scan below it.
	DeploymentBlock uint64
	// Codec decodes escrow demands; nil decodes everything as unknown
	Codec *demand.Codec
	// ReadConcurrency bounds parallel attestation lookups during history sweeps
	ReadConcurrency int
	// ResolveEscrow attaches the escrow and its decoded demand to each item
	ResolveEscrow bool
	Now           func() time.Time
	// ReconnectBackoff paces live resubscription attempts
	ReconnectBackoff func() backoff.BackOff
	Logger           *zap.Logger
}

// Oracle drives one operator's participation as a trusted oracle: it
// consumes arbitration requests addressed to the gateway's signer, judges
// them with a predicate and submits decisions.
type Oracle struct {
	gateway     interfaces.ChainGateway
	store       interfaces.AttestationStore
	arbiter     common.Address
	deployBlock uint64
	self        common.Address
	codec       *demand.Codec

	readConcurrency  int
	resolveEscrow    bool
	now              func() time.Time
	reconnectBackoff func() backoff.BackOff
	logger           *zap.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]*liveSubscription
	wg   sync.WaitGroup
}

// New creates an Oracle acting as the gateway's signer
func New(gateway interfaces.ChainGateway, store interfaces.AttestationStore, opts Options) *Oracle {
	o := &Oracle{
		gateway:          gateway,
		store:            store,
		arbiter:          opts.Arbiter,
		deployBlock:      opts.DeploymentBlock,
		self:             gateway.Address(),
		codec:            opts.Codec,
		readConcurrency:  opts.ReadConcurrency,
		resolveEscrow:    opts.ResolveEscrow,
		now:              opts.Now,
		reconnectBackoff: opts.ReconnectBackoff,
		logger:           opts.Logger,
		subs:             make(map[uuid.UUID]*liveSubscription),
	}
	if o.codec == nil {
		o.codec = demand.NewCodec(nil, 0)
	}
	if o.readConcurrency <= 0 {
		o.readConcurrency = constants.DefaultReadConcurrency
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.reconnectBackoff == nil {
		o.reconnectBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 5 * time.Minute
			return b
		}
	}
	if o.logger == nil {
		o.logger = logger.ForComponent(logger.ComponentOracle)
	}
	o.logger = o.logger.With(zap.String("oracle", o.self.Hex()))
	return o
}

// Address returns the oracle identity
func (o *Oracle) Address() common.Address {
	return o.self
}

// run holds the state of one ArbitrateMany call
type run struct {
	mode       Mode
	predicate  Predicate
	onDecision DecisionCallback
	onFailure  FailureCallback
	logger     *zap.Logger

	// live is set once the live phase starts
	live *liveSubscription

	mu sync.Mutex
	// obligations this run has already ruled on
	decided map[common.Hash]struct{}
}

func (r *run) markDecided(obligation common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decided[obligation] = struct{}{}
}

func (r *run) wasDecided(obligation common.Hash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.decided[obligation]
	return ok
}

func (r *run) emit(d Decision) {
	if r.live != nil {
		r.live.decisions.Add(1)
	}
	if r.onDecision == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Decision callback panicked",
				zap.String("obligation", d.Attestation.UID.Hex()),
				zap.Any("panic", rec),
			)
		}
	}()
	r.onDecision(d)
}

func (r *run) fail(f FailedDecision) {
	if r.live != nil {
		r.live.failures.Add(1)
	}
	if r.onFailure == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Failure callback panicked",
				zap.String("obligation", f.Attestation.UID.Hex()),
				zap.Any("panic", rec),
			)
		}
	}()
	r.onFailure(f)
}

// ArbitrateMany judges arbitration requests addressed to this oracle. Past
// modes drain history in chain order and return the decisions they made;
// listening modes then keep a live subscription running. With a Timeout
// the call blocks until the live phase ends and returns no subscription.
func (o *Oracle) ArbitrateMany(ctx context.Context, predicate Predicate, onDecision DecisionCallback, opts ArbitrateOptions) (*ArbitrateResult, error) {
	if predicate == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedPredicate)
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	r := &run{
		mode:       mode,
		predicate:  predicate,
		onDecision: onDecision,
		onFailure:  opts.OnFailure,
		logger:     o.logger.With(zap.String("mode", string(mode))),
		decided:    make(map[common.Hash]struct{}),
	}

	// subscribe before reading history so nothing falls between the two
	var sub *interfaces.LogSubscription
	if mode.Listens() {
		sub, err = o.gateway.SubscribeLogs(ctx, o.requestQuery(nil, nil))
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to arbitration requests: %w", err)
		}
	}

	// the head splits history from the live stream; live-only runs keep it
	// as the starting point of reconnect sweeps
	head, err := o.gateway.LatestHeader(ctx)
	if err != nil {
		o.release(sub)
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	boundary := head.Number.Uint64()

	result := &ArbitrateResult{}
	if mode.ProcessesPast() {
		result.PastDecisions, result.Failed, err = o.sweep(ctx, r, o.floor(opts.FromBlock), boundary, mode.Suppresses())
		if err != nil {
			o.release(sub)
			return nil, err
		}
		r.logger.Info("Historical arbitration complete",
			zap.Uint64("head", boundary),
			zap.Int("decisions", len(result.PastDecisions)),
			zap.Int("failed", len(result.Failed)),
		)
	}

	if sub == nil {
		return result, nil
	}

	live := o.startLive(ctx, r, sub, boundary, mode.ProcessesPast())
	if opts.Timeout <= 0 {
		id := live.id
		result.SubscriptionID = &id
		return result, nil
	}

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-live.done:
	}
	live.cancel()
	<-live.done
	return result, nil
}

// sweep judges the requests logged in [from, to]. Attestation lookups fan
// out; judging and submission stay sequential in chain order.
func (o *Oracle) sweep(ctx context.Context, r *run, from, to uint64, suppress bool) ([]Decision, []FailedDecision, error) {
	logs, err := o.gateway.GetLogs(ctx, o.requestQuery(new(big.Int).SetUint64(from), new(big.Int).SetUint64(to)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get arbitration requests: %w", err)
	}
	requests := o.parseRequests(logs)

	items := make([]*AttestationWithDemand, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.readConcurrency)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			items[i] = o.materialize(gctx, r, req, suppress)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var decisions []Decision
	var failed []FailedDecision
	for i, item := range items {
		if item == nil {
			continue
		}
		// duplicates inside one batch passed the chain check together
		if suppress && r.wasDecided(requests[i].Obligation) {
			continue
		}
		d, f := o.judge(ctx, ctx, r, item, requests[i])
		if d != nil {
			decisions = append(decisions, *d)
			r.emit(*d)
		}
		if f != nil {
			failed = append(failed, *f)
			r.fail(*f)
		}
	}
	return decisions, failed, nil
}

func (o *Oracle) parseRequests(logs []types.Log) []contracts.ArbitrationRequested {
	requests := make([]contracts.ArbitrationRequested, 0, len(logs))
	for _, log := range logs {
		if req, ok := o.parseRequest(log); ok {
			requests = append(requests, req)
		}
	}
	return requests
}

func (o *Oracle) parseRequest(log types.Log) (contracts.ArbitrationRequested, bool) {
	if log.Removed {
		return contracts.ArbitrationRequested{}, false
	}
	req, err := contracts.ParseArbitrationRequested(log)
	if err != nil {
		o.logger.Debug("Ignoring malformed arbitration request",
			zap.Uint64("block", log.BlockNumber),
			zap.Error(err),
		)
		return contracts.ArbitrationRequested{}, false
	}
	if req.Oracle != o.self {
		return contracts.ArbitrationRequested{}, false
	}
	return *req, true
}

// materialize turns a request into a unit of work, or nil when it is dropped
func (o *Oracle) materialize(ctx context.Context, r *run, req contracts.ArbitrationRequested, suppress bool) *AttestationWithDemand {
	log := r.logger.With(
		zap.String("obligation", req.Obligation.Hex()),
		zap.Uint64("block", req.Raw.BlockNumber),
	)

	if suppress && r.wasDecided(req.Obligation) {
		log.Debug("Dropping request, decided during this run")
		return nil
	}

	att, err := o.store.GetAttestation(ctx, req.Obligation)
	if err != nil {
		log.Warn("Dropping request, attestation lookup failed", zap.Error(err))
		return nil
	}

	now := o.now()
	if att.IsExpired(now) {
		log.Debug("Dropping request, attestation expired")
		return nil
	}
	if att.IsRevoked() {
		log.Debug("Dropping request, attestation revoked")
		return nil
	}

	if suppress {
		decided, err := o.alreadyDecided(ctx, req.Obligation)
		if err != nil {
			log.Warn("Dropping request, decision lookup failed", zap.Error(err))
			return nil
		}
		if decided {
			log.Debug("Dropping request, already decided")
			return nil
		}
	}

	item := &AttestationWithDemand{Attestation: att, Demand: req.Demand}
	if o.resolveEscrow {
		escrow, decoded, err := o.GetEscrowAndDemand(ctx, att)
		if err != nil {
			log.Warn("Skipping request, escrow resolution failed", zap.Error(err))
			return nil
		}
		item.Escrow = escrow
		item.DecodedDemand = &decoded
	}
	return item
}

// alreadyDecided reports whether this oracle has ruled on the obligation
func (o *Oracle) alreadyDecided(ctx context.Context, obligation common.Hash) (bool, error) {
	logs, err := o.gateway.GetLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(o.deployBlock),
		Addresses: []common.Address{o.arbiter},
		Topics: [][]common.Hash{
			{contracts.ArbitrationMadeID},
			nil,
			{obligation},
			{contracts.AddressTopic(o.self)},
		},
	})
	if err != nil {
		return false, err
	}
	for _, log := range logs {
		if !log.Removed {
			return true, nil
		}
	}
	return false, nil
}

// judge evaluates the predicate and submits its verdict. submitCtx is
// separate so live submissions can outlive an unsubscribe.
func (o *Oracle) judge(ctx, submitCtx context.Context, r *run, item *AttestationWithDemand, req contracts.ArbitrationRequested) (*Decision, *FailedDecision) {
	log := r.logger.With(zap.String("obligation", req.Obligation.Hex()))

	verdict, err := evaluate(ctx, r.predicate, item)
	if err != nil {
		log.Warn("Predicate failed, skipping request", zap.Error(err))
		return nil, nil
	}
	decision, ok := verdict.Decision()
	if !ok {
		log.Debug("Predicate skipped request")
		return nil, nil
	}

	key := contracts.DecisionKey(req.Obligation, req.Demand)
	failed := func(receipt *types.Receipt, err error) *FailedDecision {
		log.Error("Failed to submit decision",
			zap.Bool("decision", decision),
			zap.Error(err),
		)
		return &FailedDecision{
			Attestation: item.Attestation,
			Demand:      req.Demand,
			DecisionKey: key,
			Decision:    decision,
			Receipt:     receipt,
			Err:         err,
		}
	}

	data, err := contracts.PackArbitrate(req.Obligation, req.Demand, decision)
	if err != nil {
		return nil, failed(nil, fmt.Errorf("failed to pack arbitrate: %w", err))
	}
	receipt, err := o.gateway.Submit(submitCtx, interfaces.TxCall{To: o.arbiter, Data: data})
	if err != nil {
		return nil, failed(receipt, err)
	}

	r.markDecided(req.Obligation)
	log.Info("Submitted decision",
		zap.Bool("decision", decision),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return &Decision{
		Attestation: item.Attestation,
		Demand:      req.Demand,
		DecisionKey: key,
		Decision:    decision,
		Receipt:     receipt,
	}, nil
}

// floor raises from to the arbiter's deployment block
func (o *Oracle) floor(from uint64) uint64 {
	if from < o.deployBlock {
		return o.deployBlock
	}
	return from
}

func (o *Oracle) requestQuery(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{o.arbiter},
		Topics: [][]common.Hash{
			{contracts.ArbitrationRequestedID},
			nil,
			{contracts.AddressTopic(o.self)},
		},
	}
}

// RequestArbitration asks oracle to rule on obligation under demand
func (o *Oracle) RequestArbitration(ctx context.Context, obligation common.Hash, oracle common.Address, demandData []byte) (*types.Receipt, error) {
	data, err := contracts.PackRequestArbitration(obligation, oracle, demandData)
	if err != nil {
		return nil, fmt.Errorf("failed to pack requestArbitration: %w", err)
	}
	receipt, err := o.gateway.Submit(ctx, interfaces.TxCall{To: o.arbiter, Data: data})
	if err != nil {
		return receipt, fmt.Errorf("failed to request arbitration: %w", err)
	}
	return receipt, nil
}

// WaitForArbitration returns the first decision logged for obligation,
// checking history from opts.FromBlock (never below the deployment block)
// before waiting on new blocks.
func (o *Oracle) WaitForArbitration(ctx context.Context, obligation common.Hash, opts WaitOptions) (*contracts.ArbitrationMade, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var keyTopic, oracleTopic []common.Hash
	if opts.Demand != nil {
		keyTopic = []common.Hash{contracts.DecisionKey(obligation, opts.Demand)}
	}
	if opts.Oracle != (common.Address{}) {
		oracleTopic = []common.Hash{contracts.AddressTopic(opts.Oracle)}
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{o.arbiter},
		Topics:    [][]common.Hash{{contracts.ArbitrationMadeID}, keyTopic, {obligation}, oracleTopic},
	}

	sub, err := o.gateway.SubscribeLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to decisions: %w", err)
	}
	defer o.release(sub)

	query.FromBlock = new(big.Int).SetUint64(o.floor(opts.FromBlock))
	logs, err := o.gateway.GetLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}
	for _, log := range logs {
		if made, ok := parseDecision(log); ok {
			return made, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: obligation %s", ErrTimeout, obligation.Hex())
			}
			return nil, ctx.Err()
		case log, ok := <-sub.Logs:
			if !ok {
				return nil, fmt.Errorf("decision subscription closed")
			}
			if made, ok := parseDecision(log); ok {
				return made, nil
			}
		case err, ok := <-sub.Err:
			if !ok {
				return nil, fmt.Errorf("decision subscription closed")
			}
			return nil, fmt.Errorf("decision subscription failed: %w", err)
		}
	}
}

func parseDecision(log types.Log) (*contracts.ArbitrationMade, bool) {
	if log.Removed {
		return nil, false
	}
	made, err := contracts.ParseArbitrationMade(log)
	if err != nil {
		return nil, false
	}
	return made, true
}

// GetEscrowAndDemand resolves the escrow a fulfillment references and
// decodes the demand its arbiter is configured with.
func (o *Oracle) GetEscrowAndDemand(ctx context.Context, fulfillment *attestation.Attestation) (*attestation.Attestation, demand.Decoded, error) {
	escrow, err := o.store.GetEscrow(ctx, fulfillment)
	if err != nil {
		return nil, demand.Decoded{}, err
	}
	header, err := attestation.DecodeEscrowHeader(escrow.Data)
	if err != nil {
		return nil, demand.Decoded{}, err
	}
	decoded, err := o.codec.Decode(header.Arbiter, header.Demand)
	if err != nil {
		return nil, demand.Decoded{}, err
	}
	return escrow, decoded, nil
}

// DecodeDemand decodes demand bytes for an arbiter
func (o *Oracle) DecodeDemand(arbiter common.Address, data []byte) (demand.Decoded, error) {
	return o.codec.Decode(arbiter, data)
}

// Unsubscribe stops a live subscription started by ArbitrateMany. The
// handler exits on its next poll; in-flight submissions still complete.
func (o *Oracle) Unsubscribe(id uuid.UUID) error {
	o.mu.Lock()
	live, ok := o.subs[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}
	live.cancel()
	o.forget(id)
	return nil
}

// Subscriptions lists the running live subscriptions, oldest first
func (o *Oracle) Subscriptions() []SubscriptionInfo {
	o.mu.Lock()
	infos := make([]SubscriptionInfo, 0, len(o.subs))
	for _, live := range o.subs {
		infos = append(infos, live.info())
	}
	o.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Since.Before(infos[j].Since)
	})
	return infos
}

// Close stops every live subscription and waits for their handlers
func (o *Oracle) Close() {
	o.mu.Lock()
	for _, live := range o.subs {
		live.cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Oracle) forget(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.subs, id)
}

func (o *Oracle) release(sub *interfaces.LogSubscription) {
	if sub == nil {
		return
	}
	if err := o.gateway.Unsubscribe(sub.ID); err != nil {
		o.logger.Debug("Subscription already released",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
}
