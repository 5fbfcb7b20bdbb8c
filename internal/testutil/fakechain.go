package testutil

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/arkhai-io/alkahest-sub000/internal/client/chain"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// CallHandler serves read-only calls to one contract
type CallHandler func(data []byte) ([]byte, error)

// TxHandler executes a transaction against one contract and returns the logs it
// emits. It runs before the transaction is mined, in block Head()+1.
type TxHandler func(sender common.Address, data []byte, value *big.Int) ([]types.Log, error)

// FakeChain is an in-memory chain implementing interfaces.ChainGateway.
// Every submitted transaction mines one block. The attestation service and
// the trusted-oracle arbiter are built in; other contracts can be attached
// with HandleCall and HandleTx.
type FakeChain struct {
	mu      sync.Mutex
	signer  common.Address
	eas     common.Address
	arbiter common.Address

	block        uint64
	time         uint64
	logs         []types.Log
	attestations map[common.Hash]contracts.AttestationRecord
	nextUID      uint64
	subs         map[uuid.UUID]*fakeSub
	submitted    []interfaces.TxCall
	calls        map[common.Address]CallHandler
	txs          map[common.Address]TxHandler

	submitHook    func(call interfaces.TxCall) error
	getLogsHook   func(query ethereum.FilterQuery) error
	subscribeHook func(query ethereum.FilterQuery) error
}

type fakeSub struct {
	mu     sync.Mutex
	query  ethereum.FilterQuery
	logs   chan types.Log
	errs   chan error
	closed bool
}

func (s *fakeSub) deliver(log types.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logs <- log
}

func (s *fakeSub) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.errs <- err
}

func (s *fakeSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.logs)
	close(s.errs)
}

// NewFakeChain creates a chain whose default signer is signer
func NewFakeChain(signer, eas, arbiter common.Address) *FakeChain {
	return &FakeChain{
		signer:       signer,
		eas:          eas,
		arbiter:      arbiter,
		block:        1,
		time:         1_700_000_000,
		attestations: make(map[common.Hash]contracts.AttestationRecord),
		subs:         make(map[uuid.UUID]*fakeSub),
		calls:        make(map[common.Address]CallHandler),
		txs:          make(map[common.Address]TxHandler),
	}
}

// As returns a gateway over the same chain that signs as addr
func (c *FakeChain) As(addr common.Address) interfaces.ChainGateway {
	return &signerView{FakeChain: c, addr: addr}
}

type signerView struct {
	*FakeChain
	addr common.Address
}

func (v *signerView) Address() common.Address {
	return v.addr
}

func (v *signerView) Submit(ctx context.Context, call interfaces.TxCall) (*types.Receipt, error) {
	return v.FakeChain.submitAs(ctx, v.addr, call)
}

// Address returns the default signer
func (c *FakeChain) Address() common.Address {
	return c.signer
}

// HandleCall attaches a read-only call handler to a contract address
func (c *FakeChain) HandleCall(to common.Address, handler CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[to] = handler
}

// HandleTx attaches a transaction handler to a contract address
func (c *FakeChain) HandleTx(to common.Address, handler TxHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[to] = handler
}

// OnSubmit installs a hook that can fail submissions before they are mined
func (c *FakeChain) OnSubmit(hook func(call interfaces.TxCall) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitHook = hook
}

// OnGetLogs installs a hook that can fail historical log queries
func (c *FakeChain) OnGetLogs(hook func(query ethereum.FilterQuery) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getLogsHook = hook
}

// OnSubscribe installs a hook that can fail subscription attempts
func (c *FakeChain) OnSubscribe(hook func(query ethereum.FilterQuery) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeHook = hook
}

// Attest stores an attestation and returns its uid, assigning one when
// record.UID is zero.
func (c *FakeChain) Attest(record contracts.AttestationRecord) common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	record = c.store(record)
	c.mine()
	if log, err := contracts.AttestedLog(c.eas, record); err == nil {
		c.appendLog(log, common.Hash{})
	}
	return record.UID
}

// Record stores an attestation without mining a block. Transaction
// handlers use it and return the Attested log themselves.
func (c *FakeChain) Record(record contracts.AttestationRecord) contracts.AttestationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store(record)
}

func (c *FakeChain) store(record contracts.AttestationRecord) contracts.AttestationRecord {
	if record.UID == (common.Hash{}) {
		c.nextUID++
		var seed [8]byte
		binary.BigEndian.PutUint64(seed[:], c.nextUID)
		record.UID = crypto.Keccak256Hash([]byte("attestation"), seed[:])
	}
	if record.Time == 0 {
		record.Time = c.time
	}
	c.attestations[record.UID] = record
	return record
}

// EAS returns the attestation service address
func (c *FakeChain) EAS() common.Address {
	return c.eas
}

// Revoke marks an attestation revoked at the current chain time
func (c *FakeChain) Revoke(uid common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record := c.attestations[uid]
	record.RevocationTime = c.time
	c.attestations[uid] = record
}

// Attestation returns a stored attestation
func (c *FakeChain) Attestation(uid common.Hash) (contracts.AttestationRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.attestations[uid]
	return record, ok
}

// Mine advances the chain by n empty blocks
func (c *FakeChain) Mine(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.mine()
	}
}

// AdvanceTime moves the chain clock forward
func (c *FakeChain) AdvanceTime(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time += seconds
}

// Head returns the current block number and timestamp
func (c *FakeChain) Head() (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, c.time
}

// EmitLog mines a block holding log and delivers it to subscribers
func (c *FakeChain) EmitLog(log types.Log) types.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mine()
	return c.appendLog(log, common.Hash{})
}

// Submitted returns every transaction that was mined
func (c *FakeChain) Submitted() []interfaces.TxCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interfaces.TxCall(nil), c.submitted...)
}

// DropSubscriptions breaks every live subscription with err
func (c *FakeChain) DropSubscriptions(err error) {
	c.mu.Lock()
	subs := make([]*fakeSub, 0, len(c.subs))
	for id, sub := range c.subs {
		subs = append(subs, sub)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

// SubscriptionCount returns the number of open subscriptions
func (c *FakeChain) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// GetLogs implements interfaces.ChainGateway
func (c *FakeChain) GetLogs(_ context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getLogsHook != nil {
		if err := c.getLogsHook(query); err != nil {
			return nil, err
		}
	}

	var out []types.Log
	for _, log := range c.logs {
		if !inRange(query, log) || !matches(query, log) {
			continue
		}
		out = append(out, copyLog(log))
	}
	return out, nil
}

// SubscribeLogs implements interfaces.ChainGateway
func (c *FakeChain) SubscribeLogs(_ context.Context, query ethereum.FilterQuery) (*interfaces.LogSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeHook != nil {
		if err := c.subscribeHook(query); err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	sub := &fakeSub{
		query: query,
		logs:  make(chan types.Log, 1024),
		errs:  make(chan error, 1),
	}
	c.subs[id] = sub
	return &interfaces.LogSubscription{ID: id, Logs: sub.logs, Err: sub.errs}, nil
}

// Unsubscribe implements interfaces.ChainGateway
func (c *FakeChain) Unsubscribe(id uuid.UUID) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", chain.ErrUnknownSubscription, id)
	}
	sub.close()
	return nil
}

// Call implements interfaces.ChainGateway
func (c *FakeChain) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	handler := c.calls[to]
	c.mu.Unlock()
	if handler != nil {
		return handler(data)
	}

	if to == c.eas {
		uid, err := contracts.UnpackGetAttestationCall(data)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		record := c.attestations[uid]
		c.mu.Unlock()
		return contracts.PackGetAttestationResult(record)
	}
	return nil, fmt.Errorf("no contract at %s", to.Hex())
}

// Submit implements interfaces.ChainGateway, signing as the default signer
func (c *FakeChain) Submit(ctx context.Context, call interfaces.TxCall) (*types.Receipt, error) {
	return c.submitAs(ctx, c.signer, call)
}

func (c *FakeChain) submitAs(_ context.Context, sender common.Address, call interfaces.TxCall) (*types.Receipt, error) {
	c.mu.Lock()
	hook := c.submitHook
	handler := c.txs[call.To]
	c.mu.Unlock()

	if hook != nil {
		if err := hook(call); err != nil {
			return nil, err
		}
	}

	var emitted []types.Log
	var err error
	switch {
	case handler != nil:
		emitted, err = handler(sender, call.Data, call.Value)
	case call.To == c.arbiter:
		emitted, err = c.executeArbiter(sender, call.Data)
	default:
		err = fmt.Errorf("no contract at %s", call.To.Hex())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mine()

	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], c.block)
	txHash := crypto.Keccak256Hash(sender.Bytes(), call.Data, seed[:])
	receipt := &types.Receipt{
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		Status:      types.ReceiptStatusSuccessful,
	}
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, fmt.Errorf("%w: %v", chain.ErrTransactionReverted, err)
	}

	c.submitted = append(c.submitted, call)
	for _, log := range emitted {
		stored := c.appendLog(log, txHash)
		receipt.Logs = append(receipt.Logs, &stored)
	}
	return receipt, nil
}

func (c *FakeChain) executeArbiter(sender common.Address, data []byte) ([]types.Log, error) {
	if obligation, demand, decision, err := contracts.UnpackArbitrate(data); err == nil {
		log, err := contracts.ArbitrationMadeLog(c.arbiter, obligation, demand, sender, decision)
		if err != nil {
			return nil, err
		}
		return []types.Log{log}, nil
	}
	if obligation, oracle, demand, err := contracts.UnpackRequestArbitration(data); err == nil {
		log, err := contracts.ArbitrationRequestedLog(c.arbiter, obligation, oracle, demand)
		if err != nil {
			return nil, err
		}
		return []types.Log{log}, nil
	}
	return nil, errors.New("unknown arbiter method")
}

// LatestHeader implements interfaces.ChainGateway
func (c *FakeChain) LatestHeader(context.Context) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{
		Number: new(big.Int).SetUint64(c.block),
		Time:   c.time,
	}, nil
}

func (c *FakeChain) mine() {
	c.block++
	c.time += 12
}

// appendLog stores log in the current block and fans it out; c.mu is held
func (c *FakeChain) appendLog(log types.Log, txHash common.Hash) types.Log {
	var index uint
	for i := len(c.logs) - 1; i >= 0 && c.logs[i].BlockNumber == c.block; i-- {
		index++
	}
	log.BlockNumber = c.block
	log.Index = index
	log.TxHash = txHash
	c.logs = append(c.logs, log)

	for _, sub := range c.subs {
		if matches(sub.query, log) {
			sub.deliver(copyLog(log))
		}
	}
	return log
}

func inRange(query ethereum.FilterQuery, log types.Log) bool {
	if query.FromBlock != nil && log.BlockNumber < query.FromBlock.Uint64() {
		return false
	}
	if query.ToBlock != nil && log.BlockNumber > query.ToBlock.Uint64() {
		return false
	}
	return true
}

func matches(query ethereum.FilterQuery, log types.Log) bool {
	if len(query.Addresses) > 0 {
		found := false
		for _, addr := range query.Addresses {
			if addr == log.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range query.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(log.Topics) {
			return false
		}
		found := false
		for _, topic := range alternatives {
			if topic == log.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func copyLog(log types.Log) types.Log {
	log.Topics = append([]common.Hash(nil), log.Topics...)
	log.Data = append([]byte(nil), log.Data...)
	return log
}
