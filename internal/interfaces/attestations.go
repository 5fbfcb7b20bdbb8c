package interfaces

//go:generate mockgen -source=attestations.go -destination=../mocks/mock_attestations.go -package=mocks

import (
	"context"

	"github.com/arkhai-io/alkahest-sub000/internal/attestation"
	"github.com/ethereum/go-ethereum/common"
)

// AttestationStore is the read-only, by-identifier view over attestations
type AttestationStore interface {
	GetAttestation(ctx context.Context, uid common.Hash) (*attestation.Attestation, error)
	GetEscrow(ctx context.Context, fulfillment *attestation.Attestation) (*attestation.Attestation, error)
}
