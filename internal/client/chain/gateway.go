package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/constants"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrTransactionReverted is returned by Submit when the receipt has a failed status
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrUnknownSubscription is returned when unsubscribing an id the gateway does not track
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Backend is the subset of ethclient.Client the gateway needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config configures a Gateway
type Config struct {
	RPCURL     string
	PrivateKey *ecdsa.PrivateKey

	// RateLimit bounds read RPCs per second; zero disables limiting
	RateLimit float64
	Burst     int

	// MaxBlockRange splits historical log queries into chunks; zero means one query
	MaxBlockRange uint64

	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	SubscriptionBuffer  int
}

// Gateway is the oracle's chain gateway: rate-limited reads, chunked
// historical log queries, tracked live subscriptions and a single-writer
// transaction path for the configured signer.
type Gateway struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	logger  *zap.Logger

	limiter       *rate.Limiter
	maxBlockRange uint64
	pollInterval  time.Duration
	receiptWait   time.Duration
	subBuffer     int

	// submitMu enforces one outstanding transaction per signer
	submitMu sync.Mutex

	subsMu sync.Mutex
	subs   map[uuid.UUID]*subscription
}

type subscription struct {
	sub  ethereum.Subscription
	quit chan struct{}
	once sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.quit)
		s.sub.Unsubscribe()
	})
}

// Dial connects to the RPC endpoint and builds a Gateway on top of it
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not provided")
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	gw, err := NewGateway(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return gw, nil
}

// NewGateway builds a Gateway over an existing backend
func NewGateway(ctx context.Context, backend Backend, cfg Config) (*Gateway, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("signer private key not provided")
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = constants.DefaultRPCBurst
	}
	pollInterval := cfg.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	receiptWait := cfg.ReceiptTimeout
	if receiptWait <= 0 {
		receiptWait = 2 * time.Minute
	}
	subBuffer := cfg.SubscriptionBuffer
	if subBuffer <= 0 {
		subBuffer = 256
	}

	g := &Gateway{
		backend:       backend,
		key:           cfg.PrivateKey,
		address:       crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		chainID:       chainID,
		logger:        logger.ForComponent(logger.ComponentGateway),
		limiter:       rate.NewLimiter(limit, burst),
		maxBlockRange: cfg.MaxBlockRange,
		pollInterval:  pollInterval,
		receiptWait:   receiptWait,
		subBuffer:     subBuffer,
		subs:          make(map[uuid.UUID]*subscription),
	}

	g.logger.Info("Chain gateway ready",
		zap.String("signer", g.address.Hex()),
		zap.String("chain_id", chainID.String()),
	)
	return g, nil
}

// Address returns the signer address
func (g *Gateway) Address() common.Address {
	return g.address
}

// ChainID returns the connected chain's id
func (g *Gateway) ChainID() *big.Int {
	return new(big.Int).Set(g.chainID)
}

// GetLogs returns logs matching query in ascending (block, index) order.
// Open-ended ranges are resolved against the current head and split into
// MaxBlockRange-sized chunks.
func (g *Gateway) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if query.BlockHash != nil || g.maxBlockRange == 0 {
		logs, err := g.filterLogs(ctx, query)
		if err != nil {
			return nil, err
		}
		sortLogs(logs)
		return logs, nil
	}

	from := uint64(0)
	if query.FromBlock != nil {
		from = query.FromBlock.Uint64()
	}
	var to uint64
	if query.ToBlock != nil {
		to = query.ToBlock.Uint64()
	} else {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		head, err := g.backend.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get block number: %w", err)
		}
		to = head
	}
	if from > to {
		return nil, nil
	}

	var all []types.Log
	for start := from; start <= to; start += g.maxBlockRange {
		end := start + g.maxBlockRange - 1
		if end > to || end < start {
			end = to
		}
		chunk := query
		chunk.FromBlock = new(big.Int).SetUint64(start)
		chunk.ToBlock = new(big.Int).SetUint64(end)

		logs, err := g.filterLogs(ctx, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, logs...)
		if end == to {
			break
		}
	}
	sortLogs(all)
	return all, nil
}

func (g *Gateway) filterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logs, err := g.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}
	return logs, nil
}

func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}

// SubscribeLogs opens a live log subscription tracked under a local id
func (g *Gateway) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery) (*interfaces.LogSubscription, error) {
	raw := make(chan types.Log, g.subBuffer)
	sub, err := g.backend.SubscribeFilterLogs(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to logs: %w", err)
	}

	id := uuid.New()
	s := &subscription{sub: sub, quit: make(chan struct{})}
	out := make(chan types.Log, g.subBuffer)
	errs := make(chan error, 1)

	g.subsMu.Lock()
	g.subs[id] = s
	g.subsMu.Unlock()

	go func() {
		defer close(out)
		defer close(errs)
		for {
			select {
			case <-s.quit:
				return
			case err, ok := <-sub.Err():
				if ok && err != nil {
					g.logger.Warn("Log subscription dropped",
						zap.String("subscription_id", id.String()),
						zap.Error(err),
					)
					errs <- err
				}
				g.forget(id)
				s.stop()
				return
			case log := <-raw:
				select {
				case out <- log:
				case <-s.quit:
					return
				}
			}
		}
	}()

	g.logger.Debug("Log subscription opened", zap.String("subscription_id", id.String()))
	return &interfaces.LogSubscription{ID: id, Logs: out, Err: errs}, nil
}

// Unsubscribe releases a live subscription
func (g *Gateway) Unsubscribe(id uuid.UUID) error {
	s := g.forget(id)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}
	s.stop()
	g.logger.Debug("Log subscription closed", zap.String("subscription_id", id.String()))
	return nil
}

func (g *Gateway) forget(id uuid.UUID) *subscription {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	s, ok := g.subs[id]
	if !ok {
		return nil
	}
	delete(g.subs, id)
	return s
}

// Call runs a read-only call against the latest block
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{From: g.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// LatestHeader returns the current head header
func (g *Gateway) LatestHeader(ctx context.Context) (*types.Header, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	header, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	return header, nil
}

// Submit signs and sends call, then waits for its receipt. The signer lock
// is held from the nonce fetch until the receipt arrives, so at most one
// transaction per signer is ever in flight.
func (g *Gateway) Submit(ctx context.Context, call interfaces.TxCall) (*types.Receipt, error) {
	g.submitMu.Lock()
	defer g.submitMu.Unlock()

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := g.backend.PendingNonceAt(ctx, g.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := g.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := call.GasLimit
	if gas == 0 {
		estimated, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  g.address,
			To:    &call.To,
			Value: value,
			Data:  call.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gas = estimated * 12 / 10
	}

	to := call.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   g.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	g.logger.Debug("Transaction sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
	)

	receipt, err := g.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, signed.Hash().Hex())
	}
	return receipt, nil
}

func (g *Gateway) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.pollInterval
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = g.receiptWait
	b.Reset()

	var receipt *types.Receipt
	operation := func() error {
		r, err := g.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

// Close tears down every tracked subscription and the backend connection
func (g *Gateway) Close() {
	g.subsMu.Lock()
	subs := g.subs
	g.subs = make(map[uuid.UUID]*subscription)
	g.subsMu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	g.backend.Close()
	g.logger.Info("Closed RPC connection")
}
