package confirmation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Client talks to one confirmation arbiter deployment as the gateway's signer
type Client struct {
	gateway   interfaces.ChainGateway
	store     interfaces.AttestationStore
	arbiter   common.Address
	variant   Variant
	fromBlock uint64
	logger    *zap.Logger
}

// NewClient creates a Client for the variant deployed at arbiter. State is
// rebuilt from logs starting at fromBlock, usually the deployment block.
func NewClient(gateway interfaces.ChainGateway, store interfaces.AttestationStore, arbiter common.Address, variant Variant, fromBlock uint64) *Client {
	return &Client{
		gateway:   gateway,
		store:     store,
		arbiter:   arbiter,
		variant:   variant,
		fromBlock: fromBlock,
		logger: logger.ForComponent(logger.ComponentConfirmation).With(
			zap.String("arbiter", arbiter.Hex()),
			zap.String("variant", variant.Name),
		),
	}
}

// Sync rebuilds the arbiter's state machine from its logs
func (c *Client) Sync(ctx context.Context) (*Machine, error) {
	logs, err := c.gateway.GetLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.fromBlock),
		Addresses: []common.Address{c.arbiter},
		Topics: [][]common.Hash{{
			contracts.ConfirmationRequestedID,
			contracts.ConfirmationMadeID,
			contracts.ConfirmationRevokedID,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmation logs: %w", err)
	}

	m := NewMachine(c.variant)
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := contracts.ParseConfirmationEvent(log)
		if err != nil {
			c.logger.Debug("Ignoring malformed confirmation log", zap.Uint64("block", log.BlockNumber), zap.Error(err))
			continue
		}
		m.Observe(*ev)
	}
	return m, nil
}

// Parties resolves who may act on a (fulfillment, escrow) pair
func (c *Client) Parties(ctx context.Context, fulfillment, escrow common.Hash) (Parties, error) {
	f, err := c.store.GetAttestation(ctx, fulfillment)
	if err != nil {
		return Parties{}, err
	}
	e, err := c.store.GetAttestation(ctx, escrow)
	if err != nil {
		return Parties{}, err
	}
	return Parties{
		EscrowRecipient:      e.Recipient,
		FulfillmentAttester:  f.Attester,
		FulfillmentRecipient: f.Recipient,
	}, nil
}

type check func(m *Machine, caller common.Address, parties Parties, fulfillment, escrow common.Hash) error

func (c *Client) submit(ctx context.Context, method string, precheck check, fulfillment, escrow common.Hash) (*types.Receipt, error) {
	parties, err := c.Parties(ctx, fulfillment, escrow)
	if err != nil {
		return nil, err
	}
	m, err := c.Sync(ctx)
	if err != nil {
		return nil, err
	}
	if err := precheck(m, c.gateway.Address(), parties, fulfillment, escrow); err != nil {
		return nil, err
	}

	data, err := contracts.PackConfirmationCall(method, fulfillment, escrow)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	receipt, err := c.gateway.Submit(ctx, interfaces.TxCall{To: c.arbiter, Data: data})
	if err != nil {
		return receipt, fmt.Errorf("failed to %s: %w", method, err)
	}

	c.logger.Info("Submitted confirmation transition",
		zap.String("method", method),
		zap.String("fulfillment", fulfillment.Hex()),
		zap.String("escrow", escrow.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}

// RequestConfirmation asks the escrow recipient to confirm fulfillment
func (c *Client) RequestConfirmation(ctx context.Context, fulfillment, escrow common.Hash) (*types.Receipt, error) {
	return c.submit(ctx, "requestConfirmation", (*Machine).CheckRequest, fulfillment, escrow)
}

// Confirm accepts fulfillment for escrow
func (c *Client) Confirm(ctx context.Context, fulfillment, escrow common.Hash) (*types.Receipt, error) {
	return c.submit(ctx, "confirm", (*Machine).CheckConfirm, fulfillment, escrow)
}

// Revoke withdraws an earlier confirmation
func (c *Client) Revoke(ctx context.Context, fulfillment, escrow common.Hash) (*types.Receipt, error) {
	return c.submit(ctx, "revoke", (*Machine).CheckRevoke, fulfillment, escrow)
}

// IsConfirmed reads the arbiter's confirmation flag for a pair
func (c *Client) IsConfirmed(ctx context.Context, fulfillment, escrow common.Hash) (bool, error) {
	data, err := contracts.PackConfirmations(fulfillment, escrow)
	if err != nil {
		return false, fmt.Errorf("failed to pack confirmations: %w", err)
	}
	out, err := c.gateway.Call(ctx, c.arbiter, data)
	if err != nil {
		return false, fmt.Errorf("failed to call confirmations: %w", err)
	}
	return contracts.UnpackConfirmations(out)
}
