package attestation

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the attestation service has no record for a uid
	ErrNotFound = errors.New("attestation not found")
	// ErrNoReference is returned when a fulfillment does not reference an escrow
	ErrNoReference = errors.New("attestation has no reference")
)

// Caller executes read-only contract calls
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Store is a read-only, by-identifier view over the attestation service
type Store struct {
	caller Caller
	eas    common.Address
	logger *zap.Logger
}

// NewStore creates a Store reading from the attestation service at eas
func NewStore(caller Caller, eas common.Address) *Store {
	return &Store{
		caller: caller,
		eas:    eas,
		logger: logger.ForComponent(logger.ComponentAttestations),
	}
}

// GetAttestation fetches an attestation by uid
func (s *Store) GetAttestation(ctx context.Context, uid common.Hash) (*Attestation, error) {
	if uid == (common.Hash{}) {
		return nil, fmt.Errorf("%w: zero uid", ErrNotFound)
	}

	data, err := contracts.PackGetAttestation(uid)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAttestation: %w", err)
	}
	out, err := s.caller.Call(ctx, s.eas, data)
	if err != nil {
		return nil, fmt.Errorf("failed to get attestation %s: %w", uid.Hex(), err)
	}
	record, err := contracts.UnpackGetAttestation(out)
	if err != nil {
		return nil, err
	}
	// the service returns an empty struct for unknown uids
	if record.UID == (common.Hash{}) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uid.Hex())
	}

	s.logger.Debug("Fetched attestation",
		zap.String("uid", uid.Hex()),
		zap.String("schema", record.Schema.Hex()),
	)
	return FromRecord(*record), nil
}

// GetEscrow resolves the escrow a fulfillment references
func (s *Store) GetEscrow(ctx context.Context, fulfillment *Attestation) (*Attestation, error) {
	if fulfillment == nil || !fulfillment.HasRef() {
		return nil, ErrNoReference
	}
	return s.GetAttestation(ctx, fulfillment.RefUID)
}
