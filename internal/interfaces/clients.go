package interfaces

//go:generate mockgen -source=clients.go -destination=../mocks/mock_clients.go -package=mocks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// ChainGateway is the read/write/subscribe surface the oracle uses to talk to the chain
type ChainGateway interface {
	// Address returns the signer the gateway submits transactions as
	Address() common.Address

	// GetLogs returns historical logs matching the query in chain order
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// SubscribeLogs opens a live log stream; Unsubscribe releases it
	SubscribeLogs(ctx context.Context, query ethereum.FilterQuery) (*LogSubscription, error)
	Unsubscribe(id uuid.UUID) error

	// Call executes a read-only contract call against the latest block
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// Submit signs, sends and waits for a transaction, returning its receipt
	Submit(ctx context.Context, call TxCall) (*types.Receipt, error)

	// LatestHeader returns the current chain head
	LatestHeader(ctx context.Context) (*types.Header, error)
}

// LogSubscription is a live log stream opened through a ChainGateway
type LogSubscription struct {
	ID   uuid.UUID
	Logs <-chan types.Log
	// Err receives at most one value when the stream breaks; it is closed on unsubscribe
	Err <-chan error
}

// TxCall describes a state-changing contract call
type TxCall struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}
