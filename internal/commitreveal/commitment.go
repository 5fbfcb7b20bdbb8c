package commitreveal

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNoCommitment is returned when no commitment is recorded under a hash
	ErrNoCommitment = errors.New("commitment not found")
	// ErrNotCommitter is returned when the caller did not make the commitment
	ErrNotCommitter = errors.New("caller is not the committer")
	// ErrRevealTooEarly is returned when a reveal would land in the commit block
	ErrRevealTooEarly = errors.New("reveal must land in a later block than the commit")
	// ErrAlreadyClaimed is returned once a commitment has been revealed or slashed
	ErrAlreadyClaimed = errors.New("commitment already claimed")
	// ErrNotRevealed is returned when reclaiming a bond whose commitment was never revealed
	ErrNotRevealed = errors.New("commitment not revealed")
	// ErrBondReleased is returned when the bond was already reclaimed or slashed
	ErrBondReleased = errors.New("bond already released")
	// ErrDeadlineNotPassed is returned when slashing before the commit deadline
	ErrDeadlineNotPassed = errors.New("commit deadline has not passed")
)

var commitmentArgs = abi.Arguments{
	{Name: "refUID", Type: mustType("bytes32")},
	{Name: "claimer", Type: mustType("address")},
	{Name: "payload", Type: mustType("bytes")},
	{Name: "salt", Type: mustType("bytes32")},
	{Name: "schema", Type: mustType("bytes32")},
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %s: %v", name, err))
	}
	return t
}

// ComputeCommitment hashes the reveal a claimer binds itself to:
// keccak256(abi.encode(refUID, claimer, payload, salt, schema)).
func ComputeCommitment(refUID common.Hash, claimer common.Address, data contracts.CommitRevealData) (common.Hash, error) {
	payload := data.Payload
	if payload == nil {
		payload = []byte{}
	}
	encoded, err := commitmentArgs.Pack(refUID, claimer, payload, data.Salt, data.Schema)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode commitment: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// NewSalt returns 32 random bytes
func NewSalt() (common.Hash, error) {
	var salt common.Hash
	if _, err := rand.Read(salt[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// State is the on-chain view of one commitment. Claimed is set by the
// reveal or the slash; the record is deleted once the bond is paid out.
//
//	committed: record, not claimed
//	revealed:  record, claimed
//	released:  no record, claimed
type State struct {
	Record  contracts.CommitmentRecord
	Claimed bool
}

// Exists reports whether a record is stored under the hash
func (s State) Exists() bool {
	return s.Record.Committer != (common.Address{})
}

// CheckReveal applies the reveal rules for a reveal by caller landing in revealBlock
func CheckReveal(s State, caller common.Address, revealBlock uint64) error {
	if s.Claimed {
		return ErrAlreadyClaimed
	}
	if !s.Exists() {
		return ErrNoCommitment
	}
	if s.Record.Committer != caller {
		return ErrNotCommitter
	}
	if s.Record.CommitBlock >= revealBlock {
		return fmt.Errorf("%w: committed in %d, revealing in %d", ErrRevealTooEarly, s.Record.CommitBlock, revealBlock)
	}
	return nil
}

// CheckReclaim applies the reclaim rules for caller: only the committer of a
// revealed commitment gets the bond back, once.
func CheckReclaim(s State, caller common.Address) error {
	if !s.Claimed {
		if !s.Exists() {
			return ErrNoCommitment
		}
		return ErrNotRevealed
	}
	if !s.Exists() {
		return ErrBondReleased
	}
	if s.Record.Committer != caller {
		return ErrNotCommitter
	}
	return nil
}

// CheckSlash applies the slash rules at chain time now. Anyone may slash a
// commitment left unrevealed past the deadline.
func CheckSlash(s State, deadline, now uint64) error {
	if s.Claimed {
		return ErrAlreadyClaimed
	}
	if !s.Exists() {
		return ErrNoCommitment
	}
	if now <= s.Record.CommitTimestamp+deadline {
		return fmt.Errorf("%w: slashable after %d", ErrDeadlineNotPassed, s.Record.CommitTimestamp+deadline)
	}
	return nil
}
