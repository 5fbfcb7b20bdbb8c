package commitreveal

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/interfaces"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Client drives the bonded commit-reveal obligation for the gateway's signer.
// Every state-changing call checks the contract's rules against current
// chain state before spending gas.
type Client struct {
	gateway    interfaces.ChainGateway
	store      interfaces.AttestationStore
	obligation common.Address
	eas        common.Address
	logger     *zap.Logger
}

// Commitment is a commitment made by this client, kept until it is revealed
type Commitment struct {
	Hash    common.Hash
	RefUID  common.Hash
	Claimer common.Address
	Data    contracts.CommitRevealData
	Receipt *types.Receipt
}

// NewClient creates a Client for the commit-reveal obligation deployed at obligation
func NewClient(gateway interfaces.ChainGateway, store interfaces.AttestationStore, obligation, eas common.Address) *Client {
	return &Client{
		gateway:    gateway,
		store:      store,
		obligation: obligation,
		eas:        eas,
		logger: logger.ForComponent(logger.ComponentCommitReveal).With(
			zap.String("claimer", gateway.Address().Hex()),
		),
	}
}

func (c *Client) call(ctx context.Context, method string, data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := c.gateway.Call(ctx, c.obligation, data)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

// BondAmount returns the native value locked by each commitment
func (c *Client) BondAmount(ctx context.Context) (*big.Int, error) {
	data, err := contracts.PackNoArgs("bondAmount")
	out, err := c.call(ctx, "bondAmount", data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackUint256("bondAmount", out)
}

// CommitDeadline returns the number of seconds after a commit when it becomes slashable
func (c *Client) CommitDeadline(ctx context.Context) (uint64, error) {
	data, err := contracts.PackNoArgs("commitDeadline")
	out, err := c.call(ctx, "commitDeadline", data, err)
	if err != nil {
		return 0, err
	}
	deadline, err := contracts.UnpackUint256("commitDeadline", out)
	if err != nil {
		return 0, err
	}
	if !deadline.IsUint64() {
		return 0, fmt.Errorf("commit deadline %s out of range", deadline)
	}
	return deadline.Uint64(), nil
}

// SlashedBondRecipient returns the address slashed bonds are paid to
func (c *Client) SlashedBondRecipient(ctx context.Context) (common.Address, error) {
	data, err := contracts.PackNoArgs("slashedBondRecipient")
	out, err := c.call(ctx, "slashedBondRecipient", data, err)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress("slashedBondRecipient", out)
}

// GetCommitment returns the record stored under a commitment hash. A zero
// committer means nothing was committed.
func (c *Client) GetCommitment(ctx context.Context, commitment common.Hash) (*contracts.CommitmentRecord, error) {
	data, err := contracts.PackCommitments(commitment)
	out, err := c.call(ctx, "commitments", data, err)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackCommitments(out)
}

// IsClaimed reports whether a commitment was revealed or slashed
func (c *Client) IsClaimed(ctx context.Context, commitment common.Hash) (bool, error) {
	data, err := contracts.PackCommitmentClaimed(commitment)
	out, err := c.call(ctx, "commitmentClaimed", data, err)
	if err != nil {
		return false, err
	}
	return contracts.UnpackBool("commitmentClaimed", out)
}

// State reads a commitment's record and claimed flag
func (c *Client) State(ctx context.Context, commitment common.Hash) (State, error) {
	record, err := c.GetCommitment(ctx, commitment)
	if err != nil {
		return State{}, err
	}
	claimed, err := c.IsClaimed(ctx, commitment)
	if err != nil {
		return State{}, err
	}
	return State{Record: *record, Claimed: claimed}, nil
}

// Commit locks the bond behind a fresh commitment to payload, to be revealed
// later against the escrow refUID under schema.
func (c *Client) Commit(ctx context.Context, refUID common.Hash, payload []byte, schema common.Hash) (*Commitment, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	commitment := &Commitment{
		RefUID:  refUID,
		Claimer: c.gateway.Address(),
		Data:    contracts.CommitRevealData{Payload: payload, Salt: salt, Schema: schema},
	}
	commitment.Hash, err = ComputeCommitment(refUID, commitment.Claimer, commitment.Data)
	if err != nil {
		return nil, err
	}

	state, err := c.State(ctx, commitment.Hash)
	if err != nil {
		return nil, err
	}
	if state.Exists() {
		return nil, fmt.Errorf("commitment %s already recorded", commitment.Hash.Hex())
	}

	bond, err := c.BondAmount(ctx)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackCommit(commitment.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack commit: %w", err)
	}
	commitment.Receipt, err = c.gateway.Submit(ctx, interfaces.TxCall{To: c.obligation, Data: data, Value: bond})
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	c.logger.Info("Committed",
		zap.String("commitment", commitment.Hash.Hex()),
		zap.String("escrow", refUID.Hex()),
		zap.String("bond", bond.String()),
		zap.String("tx_hash", commitment.Receipt.TxHash.Hex()),
	)
	return commitment, nil
}

// Reveal publishes the committed payload as an obligation attestation
// referencing the escrow and returns its uid.
func (c *Client) Reveal(ctx context.Context, commitment *Commitment) (common.Hash, *types.Receipt, error) {
	if commitment == nil {
		return common.Hash{}, nil, errors.New("nil commitment")
	}
	state, err := c.State(ctx, commitment.Hash)
	if err != nil {
		return common.Hash{}, nil, err
	}
	head, err := c.gateway.LatestHeader(ctx)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	if err := CheckReveal(state, c.gateway.Address(), head.Number.Uint64()+1); err != nil {
		return common.Hash{}, nil, err
	}

	data, err := contracts.PackDoObligation(commitment.Data, commitment.RefUID)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to pack doObligation: %w", err)
	}
	receipt, err := c.gateway.Submit(ctx, interfaces.TxCall{To: c.obligation, Data: data})
	if err != nil {
		return common.Hash{}, receipt, fmt.Errorf("failed to reveal: %w", err)
	}

	uids, err := contracts.AttestedUIDs(c.eas, receipt)
	if err != nil {
		return common.Hash{}, receipt, err
	}
	if len(uids) == 0 {
		return common.Hash{}, receipt, fmt.Errorf("reveal %s emitted no attestation", receipt.TxHash.Hex())
	}

	c.logger.Info("Revealed",
		zap.String("commitment", commitment.Hash.Hex()),
		zap.String("obligation", uids[0].Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return uids[0], receipt, nil
}

// CommitmentOf recomputes the commitment a revealed obligation consumed
func (c *Client) CommitmentOf(ctx context.Context, obligationUID common.Hash) (common.Hash, error) {
	obligation, err := c.store.GetAttestation(ctx, obligationUID)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := attestation.DecodeCommitReveal(obligation.Data)
	if err != nil {
		return common.Hash{}, err
	}
	return ComputeCommitment(obligation.RefUID, obligation.Recipient, data)
}

// ReclaimBond returns the bond of a revealed obligation to its committer
func (c *Client) ReclaimBond(ctx context.Context, obligationUID common.Hash) (*types.Receipt, error) {
	commitment, err := c.CommitmentOf(ctx, obligationUID)
	if err != nil {
		return nil, err
	}
	state, err := c.State(ctx, commitment)
	if err != nil {
		return nil, err
	}
	if err := CheckReclaim(state, c.gateway.Address()); err != nil {
		return nil, err
	}

	data, err := contracts.PackReclaimBond(obligationUID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack reclaimBond: %w", err)
	}
	receipt, err := c.gateway.Submit(ctx, interfaces.TxCall{To: c.obligation, Data: data})
	if err != nil {
		return receipt, fmt.Errorf("failed to reclaim bond: %w", err)
	}
	c.logger.Info("Reclaimed bond",
		zap.String("commitment", commitment.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}

// SlashBond forfeits the bond of a commitment left unrevealed past the deadline
func (c *Client) SlashBond(ctx context.Context, commitment common.Hash) (*types.Receipt, error) {
	state, err := c.State(ctx, commitment)
	if err != nil {
		return nil, err
	}
	deadline, err := c.CommitDeadline(ctx)
	if err != nil {
		return nil, err
	}
	head, err := c.gateway.LatestHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	if err := CheckSlash(state, deadline, head.Time); err != nil {
		return nil, err
	}

	data, err := contracts.PackSlashBond(commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to pack slashBond: %w", err)
	}
	receipt, err := c.gateway.Submit(ctx, interfaces.TxCall{To: c.obligation, Data: data})
	if err != nil {
		return receipt, fmt.Errorf("failed to slash bond: %w", err)
	}
	c.logger.Info("Slashed bond",
		zap.String("commitment", commitment.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}
