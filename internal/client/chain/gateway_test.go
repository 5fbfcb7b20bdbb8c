package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/client/chain"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend is a testify mock of chain.Backend
type MockBackend struct {
	mock.Mock
	feed chan<- types.Log
	sub  event.Subscription
}

func (m *MockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	return args.Get(0).(*types.Header), args.Error(1)
}

func (m *MockBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	if logs := args.Get(0); logs != nil {
		return logs.([]types.Log), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	args := m.Called(ctx, q)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	m.feed = ch
	m.sub = event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	})
	return m.sub, nil
}

func (m *MockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	if out := args.Get(0); out != nil {
		return out.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if r := args.Get(0); r != nil {
		return r.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() {
	m.Called()
}

func newGateway(t *testing.T, backend *MockBackend, cfg chain.Config) *chain.Gateway {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg.PrivateKey = key
	cfg.ReceiptPollInterval = time.Millisecond

	backend.On("ChainID", mock.Anything).Return(big.NewInt(31337), nil).Once()
	gw, err := chain.NewGateway(context.Background(), backend, cfg)
	require.NoError(t, err)
	return gw
}

func TestNewGateway_RequiresKey(t *testing.T) {
	_, err := chain.NewGateway(context.Background(), &MockBackend{}, chain.Config{})
	assert.Error(t, err)
}

func TestGateway_GetLogs_ChunksAndOrders(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{MaxBlockRange: 10})

	backend.On("BlockNumber", mock.Anything).Return(uint64(24), nil).Once()

	chunk := func(from, to int64) interface{} {
		return mock.MatchedBy(func(q ethereum.FilterQuery) bool {
			return q.FromBlock.Int64() == from && q.ToBlock.Int64() == to
		})
	}
	backend.On("FilterLogs", mock.Anything, chunk(5, 14)).
		Return([]types.Log{{BlockNumber: 9, Index: 1}, {BlockNumber: 9, Index: 0}}, nil).Once()
	backend.On("FilterLogs", mock.Anything, chunk(15, 24)).
		Return([]types.Log{{BlockNumber: 20, Index: 0}}, nil).Once()

	logs, err := gw.GetLogs(context.Background(), ethereum.FilterQuery{FromBlock: big.NewInt(5)})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, uint(0), logs[0].Index)
	assert.Equal(t, uint(1), logs[1].Index)
	assert.Equal(t, uint64(20), logs[2].BlockNumber)
	backend.AssertExpectations(t)
}

func TestGateway_GetLogs_EmptyRange(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{MaxBlockRange: 10})

	logs, err := gw.GetLogs(context.Background(), ethereum.FilterQuery{
		FromBlock: big.NewInt(10),
		ToBlock:   big.NewInt(5),
	})
	require.NoError(t, err)
	assert.Empty(t, logs)
	backend.AssertNotCalled(t, "FilterLogs", mock.Anything, mock.Anything)
}

func TestGateway_GetLogs_Error(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{})

	backend.On("FilterLogs", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	_, err := gw.GetLogs(context.Background(), ethereum.FilterQuery{})
	assert.ErrorContains(t, err, "boom")
}

func TestGateway_Call(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{})
	to := common.HexToAddress("0x1234")

	backend.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return *msg.To == to && msg.From == gw.Address()
	}), (*big.Int)(nil)).Return([]byte{0x01}, nil).Once()

	out, err := gw.Call(context.Background(), to, []byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
}

func expectSubmit(backend *MockBackend, gw *chain.Gateway, nonce uint64) {
	backend.On("PendingNonceAt", mock.Anything, gw.Address()).Return(nonce, nil).Once()
	backend.On("SuggestGasTipCap", mock.Anything).Return(big.NewInt(1_000_000_000), nil).Once()
	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).
		Return(&types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(7)}, nil).Once()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(50_000), nil).Once()
}

func TestGateway_Submit(t *testing.T) {
	to := common.HexToAddress("0x1234")

	t.Run("signs with the pending nonce and waits for the receipt", func(t *testing.T) {
		backend := &MockBackend{}
		gw := newGateway(t, backend, chain.Config{})
		expectSubmit(backend, gw, 7)

		var sent *types.Transaction
		backend.On("SendTransaction", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
			Return(nil).Once()
		backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound).Once()
		backend.On("TransactionReceipt", mock.Anything, mock.Anything).
			Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(11)}, nil).Once()

		receipt, err := gw.Submit(context.Background(), interfaces.TxCall{To: to, Data: []byte{0x01}})
		require.NoError(t, err)
		assert.Equal(t, uint64(11), receipt.BlockNumber.Uint64())

		require.NotNil(t, sent)
		assert.Equal(t, uint64(7), sent.Nonce())
		assert.Equal(t, uint64(60_000), sent.Gas())
		assert.Equal(t, to, *sent.To())
		sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), sent)
		require.NoError(t, err)
		assert.Equal(t, gw.Address(), sender)
		backend.AssertExpectations(t)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		backend := &MockBackend{}
		gw := newGateway(t, backend, chain.Config{})
		expectSubmit(backend, gw, 0)
		backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()
		backend.On("TransactionReceipt", mock.Anything, mock.Anything).
			Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil).Once()

		receipt, err := gw.Submit(context.Background(), interfaces.TxCall{To: to})
		assert.ErrorIs(t, err, chain.ErrTransactionReverted)
		require.NotNil(t, receipt)
		assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	})

	t.Run("send failure", func(t *testing.T) {
		backend := &MockBackend{}
		gw := newGateway(t, backend, chain.Config{})
		expectSubmit(backend, gw, 0)
		backend.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("nonce too low")).Once()

		_, err := gw.Submit(context.Background(), interfaces.TxCall{To: to})
		assert.ErrorContains(t, err, "nonce too low")
		backend.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
	})
}

func TestGateway_Subscriptions(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{})
	backend.On("SubscribeFilterLogs", mock.Anything, mock.Anything).Return(nil).Once()

	sub, err := gw.SubscribeLogs(context.Background(), ethereum.FilterQuery{})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sub.ID)

	backend.feed <- types.Log{BlockNumber: 3}
	select {
	case log := <-sub.Logs:
		assert.Equal(t, uint64(3), log.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("log not relayed")
	}

	require.NoError(t, gw.Unsubscribe(sub.ID))
	select {
	case _, open := <-sub.Logs:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("log stream not closed")
	}

	assert.ErrorIs(t, gw.Unsubscribe(sub.ID), chain.ErrUnknownSubscription)
	assert.ErrorIs(t, gw.Unsubscribe(uuid.New()), chain.ErrUnknownSubscription)
}

func TestGateway_Close(t *testing.T) {
	backend := &MockBackend{}
	gw := newGateway(t, backend, chain.Config{})
	backend.On("SubscribeFilterLogs", mock.Anything, mock.Anything).Return(nil).Once()
	backend.On("Close").Return().Once()

	sub, err := gw.SubscribeLogs(context.Background(), ethereum.FilterQuery{})
	require.NoError(t, err)

	gw.Close()
	assert.ErrorIs(t, gw.Unsubscribe(sub.ID), chain.ErrUnknownSubscription)
	backend.AssertExpectations(t)
}
