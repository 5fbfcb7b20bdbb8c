package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/addressbook"
	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	awsclient "github.com/arkhai-io/alkahest-sub000/internal/client/aws"
	"github.com/arkhai-io/alkahest-sub000/internal/client/chain"
	"github.com/arkhai-io/alkahest-sub000/internal/config"
	"github.com/arkhai-io/alkahest-sub000/internal/demand"
	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/arkhai-io/alkahest-sub000/internal/predicates"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FailurePublisher receives decisions whose submission failed
type FailurePublisher interface {
	Publish(ctx context.Context, msg awsclient.FailureMessage) error
}

// Application holds the dependencies shared by the oracle daemon and the sweeper
type Application struct {
	Config    *config.Config
	Book      *addressbook.AddressBook
	Gateway   *chain.Gateway
	Oracle    *oracle.Oracle
	Predicate oracle.Predicate
	Failures  FailurePublisher

	logger *zap.Logger
}

// Build dials the chain and assembles the oracle from cfg
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	if len(cfg.AcceptItems) == 0 {
		return nil, fmt.Errorf("ACCEPT_ITEMS must name at least one accepted item")
	}

	book, err := addressbook.Load(cfg.AddressBookPath)
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse oracle signer key")
	}

	gateway, err := chain.Dial(ctx, chain.Config{
		RPCURL:        cfg.RPCURL,
		PrivateKey:    key,
		RateLimit:     cfg.RPCRateLimit,
		Burst:         cfg.RPCBurst,
		MaxBlockRange: cfg.MaxBlockRange,
	})
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:    cfg,
		Book:      book,
		Gateway:   gateway,
		Predicate: predicates.NewAllowList(book.StringObligationSchema, cfg.AcceptItems).Predicate(),
		logger:    log,
	}
	app.Oracle = oracle.New(gateway, attestation.NewStore(gateway, book.EAS), oracle.Options{
		Arbiter:         book.TrustedOracleArbiter,
		DeploymentBlock: DeploymentBlock(book, cfg),
		Codec:           demand.FromAddressBook(book, cfg.DemandMaxDepth),
		ReadConcurrency: cfg.ReadConcurrency,
		ResolveEscrow:   cfg.ResolveEscrow,
	})

	if cfg.FailureQueueURL != "" {
		queue, err := awsclient.NewFailureQueue(ctx, cfg.FailureQueueURL)
		if err != nil {
			gateway.Close()
			return nil, err
		}
		app.Failures = queue
	}
	return app, nil
}

// DeploymentBlock is the lowest block decision lookups scan: the address
// book's deployment block, or START_BLOCK when the book leaves it unset.
func DeploymentBlock(book *addressbook.AddressBook, cfg *config.Config) uint64 {
	if book.DeploymentBlock > 0 {
		return book.DeploymentBlock
	}
	return cfg.StartBlock
}

// Run arbitrates in mode with the configured predicate
func (a *Application) Run(ctx context.Context, mode oracle.Mode, timeout time.Duration) (*oracle.ArbitrateResult, error) {
	return a.Oracle.ArbitrateMany(ctx, a.Predicate, a.LogDecision, oracle.ArbitrateOptions{
		Mode:      mode,
		Timeout:   timeout,
		FromBlock: a.Config.StartBlock,
		OnFailure: a.FailureHandler(ctx),
	})
}

// LogDecision records a submitted decision
func (a *Application) LogDecision(d oracle.Decision) {
	fields := []zap.Field{
		zap.String("obligation", d.Attestation.UID.Hex()),
		zap.String("decision_key", d.DecisionKey.Hex()),
		zap.Bool("decision", d.Decision),
	}
	if d.Receipt != nil {
		fields = append(fields, zap.String("tx_hash", d.Receipt.TxHash.Hex()))
	}
	a.logger.Info("Decision submitted", fields...)
}

// FailureHandler logs failed submissions and forwards them to the failure
// queue when one is configured
func (a *Application) FailureHandler(ctx context.Context) oracle.FailureCallback {
	return func(f oracle.FailedDecision) {
		msg := FailureMessage(a.Oracle.Address().Hex(), f, time.Now())
		a.logger.Warn("Decision submission failed",
			zap.String("obligation", msg.Obligation),
			zap.String("decision_key", msg.DecisionKey),
			zap.Error(f.Err),
		)
		if a.Failures == nil {
			return
		}
		if err := a.Failures.Publish(context.WithoutCancel(ctx), msg); err != nil {
			a.logger.Error("Failed to queue failed decision",
				zap.String("obligation", msg.Obligation),
				zap.Error(err),
			)
		}
	}
}

// FailureMessage converts a failed decision into its queue record
func FailureMessage(oracleAddr string, f oracle.FailedDecision, at time.Time) awsclient.FailureMessage {
	msg := awsclient.FailureMessage{
		Oracle:      oracleAddr,
		Demand:      hexutil.Encode(f.Demand),
		DecisionKey: f.DecisionKey.Hex(),
		Decision:    f.Decision,
		FailedAt:    at.UTC(),
	}
	if f.Attestation != nil {
		msg.Obligation = f.Attestation.UID.Hex()
	}
	if f.Err != nil {
		msg.Error = f.Err.Error()
	}
	return msg
}

// Close releases live subscriptions and the RPC connection
func (a *Application) Close() {
	a.Oracle.Close()
	a.Gateway.Close()
}
