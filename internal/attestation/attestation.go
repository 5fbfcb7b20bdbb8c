package attestation

import (
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

// Attestation is a signed on-chain claim issued through the attestation service
type Attestation struct {
	UID            common.Hash    `json:"uid"`
	Schema         common.Hash    `json:"schema"`
	Time           uint64         `json:"time"`
	ExpirationTime uint64         `json:"expiration_time"`
	RevocationTime uint64         `json:"revocation_time"`
	RefUID         common.Hash    `json:"ref_uid"`
	Recipient      common.Address `json:"recipient"`
	Attester       common.Address `json:"attester"`
	Revocable      bool           `json:"revocable"`
	Data           []byte         `json:"data"`
}

// FromRecord converts a decoded getAttestation result
func FromRecord(record contracts.AttestationRecord) *Attestation {
	return &Attestation{
		UID:            record.UID,
		Schema:         record.Schema,
		Time:           record.Time,
		ExpirationTime: record.ExpirationTime,
		RevocationTime: record.RevocationTime,
		RefUID:         record.RefUID,
		Recipient:      record.Recipient,
		Attester:       record.Attester,
		Revocable:      record.Revocable,
		Data:           record.Data,
	}
}

// Record converts back into the contract's struct layout
func (a *Attestation) Record() contracts.AttestationRecord {
	return contracts.AttestationRecord{
		UID:            a.UID,
		Schema:         a.Schema,
		Time:           a.Time,
		ExpirationTime: a.ExpirationTime,
		RevocationTime: a.RevocationTime,
		RefUID:         a.RefUID,
		Recipient:      a.Recipient,
		Attester:       a.Attester,
		Revocable:      a.Revocable,
		Data:           a.Data,
	}
}

// IsExpired reports whether a non-zero expiration lies before now
func (a *Attestation) IsExpired(now time.Time) bool {
	return a.ExpirationTime != 0 && a.ExpirationTime < uint64(now.Unix())
}

// IsRevoked reports whether the attestation has been revoked
func (a *Attestation) IsRevoked() bool {
	return a.RevocationTime != 0
}

// IsValid reports whether the attestation is neither expired nor revoked
func (a *Attestation) IsValid(now time.Time) bool {
	return !a.IsExpired(now) && !a.IsRevoked()
}

// HasRef reports whether the attestation references another one
func (a *Attestation) HasRef() bool {
	return a.RefUID != (common.Hash{})
}
