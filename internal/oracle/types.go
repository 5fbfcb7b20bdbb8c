package oracle

import (
	"errors"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	"github.com/arkhai-io/alkahest-sub000/internal/demand"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

var (
	// ErrUnknownSubscription is returned when unsubscribing an id this oracle does not own
	ErrUnknownSubscription = errors.New("unknown subscription")
	// ErrTimeout is returned when a wait elapses without a matching event
	ErrTimeout = errors.New("timed out waiting for arbitration")
)

// AttestationWithDemand is the unit of work handed to predicates
type AttestationWithDemand struct {
	Attestation *attestation.Attestation
	Demand      []byte

	// Escrow and DecodedDemand are set when escrow resolution is enabled
	Escrow        *attestation.Attestation
	DecodedDemand *demand.Decoded
}

// Decision is a submitted ruling
type Decision struct {
	Attestation *attestation.Attestation
	Demand      []byte
	DecisionKey common.Hash
	Decision    bool
	Receipt     *types.Receipt
}

// FailedDecision is a ruling whose submission failed
type FailedDecision struct {
	Attestation *attestation.Attestation
	Demand      []byte
	DecisionKey common.Hash
	Decision    bool
	// Receipt is set when the transaction was mined but reverted
	Receipt *types.Receipt
	Err     error
}

// ArbitrateResult summarizes an ArbitrateMany run
type ArbitrateResult struct {
	PastDecisions []Decision
	Failed        []FailedDecision
	// SubscriptionID is set while a live subscription keeps running
	SubscriptionID *uuid.UUID
}

// DecisionCallback is invoked once per submitted decision
type DecisionCallback func(Decision)

// FailureCallback is invoked once per failed submission
type FailureCallback func(FailedDecision)

// ArbitrateOptions tunes a single ArbitrateMany run
type ArbitrateOptions struct {
	Mode Mode
	// Timeout bounds the live phase; the call blocks until it elapses
	Timeout   time.Duration
	FromBlock uint64
	OnFailure FailureCallback
}

// WaitOptions narrows WaitForArbitration
type WaitOptions struct {
	// Demand restricts matches to one decision key when non-nil
	Demand []byte
	// Oracle restricts matches to one oracle when non-zero
	Oracle    common.Address
	FromBlock uint64
	Timeout   time.Duration
}

// SubscriptionInfo describes a running live subscription
type SubscriptionInfo struct {
	ID        uuid.UUID `json:"id"`
	Mode      Mode      `json:"mode"`
	Since     time.Time `json:"since"`
	Decisions int64     `json:"decisions"`
	Failures  int64     `json:"failures"`
}
