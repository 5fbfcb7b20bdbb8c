package confirmation_test

import (
	"math/big"
	"testing"

	"github.com/arkhai-io/alkahest-sub000/internal/addressbook"
	"github.com/arkhai-io/alkahest-sub000/internal/confirmation"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000ca401")
	mallory = common.HexToAddress("0x000000000000000000000000000000000000ba11")

	escrowUID = common.HexToHash("0xe5c0")
	first     = common.HexToHash("0xf1")
	second    = common.HexToHash("0xf2")

	parties = confirmation.Parties{EscrowRecipient: alice, FulfillmentAttester: bob, FulfillmentRecipient: carol}
)

func TestMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		variant confirmation.Variant
		steps   func(m *confirmation.Machine) error
		want    confirmation.State
		wantErr error
	}{
		{
			name:    "request by fulfillment attester",
			variant: confirmation.NonexclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				return m.Request(bob, parties, first, escrowUID)
			},
			want: confirmation.StateRequested,
		},
		{
			name:    "request by fulfillment recipient",
			variant: confirmation.NonexclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				return m.Request(carol, parties, first, escrowUID)
			},
			want: confirmation.StateRequested,
		},
		{
			name:    "request by escrow recipient",
			variant: confirmation.NonexclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				return m.Request(alice, parties, first, escrowUID)
			},
			want:    confirmation.StatePending,
			wantErr: confirmation.ErrUnauthorized,
		},
		{
			name:    "confirm without request",
			variant: confirmation.ExclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want: confirmation.StateConfirmed,
		},
		{
			name:    "confirm after request",
			variant: confirmation.ExclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Request(bob, parties, first, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want: confirmation.StateConfirmed,
		},
		{
			name:    "confirm twice",
			variant: confirmation.NonexclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, first, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want:    confirmation.StateConfirmed,
			wantErr: confirmation.ErrInvalidTransition,
		},
		{
			name:    "revoke revocable",
			variant: confirmation.ExclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, first, escrowUID); err != nil {
					return err
				}
				return m.Revoke(alice, parties, first, escrowUID)
			},
			want: confirmation.StateRevoked,
		},
		{
			name:    "revoke unrevocable",
			variant: confirmation.NonexclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, first, escrowUID); err != nil {
					return err
				}
				return m.Revoke(alice, parties, first, escrowUID)
			},
			want:    confirmation.StateConfirmed,
			wantErr: confirmation.ErrNotRevocable,
		},
		{
			name:    "revoke unconfirmed",
			variant: confirmation.NonexclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				return m.Revoke(alice, parties, first, escrowUID)
			},
			want:    confirmation.StatePending,
			wantErr: confirmation.ErrInvalidTransition,
		},
		{
			name:    "confirm after revoke",
			variant: confirmation.NonexclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, first, escrowUID); err != nil {
					return err
				}
				if err := m.Revoke(alice, parties, first, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want:    confirmation.StateRevoked,
			wantErr: confirmation.ErrInvalidTransition,
		},
		{
			name:    "exclusive second confirmation",
			variant: confirmation.ExclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, second, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want:    confirmation.StatePending,
			wantErr: confirmation.ErrExclusiveConflict,
		},
		{
			name:    "exclusive after revoke",
			variant: confirmation.ExclusiveRevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, second, escrowUID); err != nil {
					return err
				}
				if err := m.Revoke(alice, parties, second, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want: confirmation.StateConfirmed,
		},
		{
			name:    "nonexclusive second confirmation",
			variant: confirmation.NonexclusiveUnrevocable,
			steps: func(m *confirmation.Machine) error {
				if err := m.Confirm(alice, parties, second, escrowUID); err != nil {
					return err
				}
				return m.Confirm(alice, parties, first, escrowUID)
			},
			want: confirmation.StateConfirmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := confirmation.NewMachine(tt.variant)
			err := tt.steps(m)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, m.State(first, escrowUID))
		})
	}
}

func TestMachine_Authorization(t *testing.T) {
	for _, variant := range confirmation.Variants() {
		t.Run(variant.Name, func(t *testing.T) {
			m := confirmation.NewMachine(variant)
			for _, caller := range []common.Address{bob, carol, mallory} {
				assert.ErrorIs(t, m.Confirm(caller, parties, first, escrowUID), confirmation.ErrUnauthorized)
			}

			require.NoError(t, m.Confirm(alice, parties, first, escrowUID))
			for _, caller := range []common.Address{bob, carol, mallory} {
				assert.ErrorIs(t, m.Revoke(caller, parties, first, escrowUID), confirmation.ErrUnauthorized)
			}
			assert.Equal(t, confirmation.StateConfirmed, m.State(first, escrowUID))
		})
	}
}

func TestMachine_Exclusivity(t *testing.T) {
	const (
		opConfirm = iota
		opRevoke
		opRequest
	)

	properties := gopter.NewProperties(nil)

	for _, variant := range []confirmation.Variant{confirmation.ExclusiveRevocable, confirmation.ExclusiveUnrevocable} {
		variant := variant
		properties.Property(variant.Name+" confirms at most one fulfillment per escrow", prop.ForAll(
			func(ops []int, targets []int) bool {
				if len(targets) == 0 {
					return true
				}
				m := confirmation.NewMachine(variant)
				for i, op := range ops {
					fulfillment := common.BigToHash(big.NewInt(int64(1 + targets[i%len(targets)])))
					switch op {
					case opConfirm:
						_ = m.Confirm(alice, parties, fulfillment, escrowUID)
					case opRevoke:
						_ = m.Revoke(alice, parties, fulfillment, escrowUID)
					case opRequest:
						_ = m.Request(bob, parties, fulfillment, escrowUID)
					}
					if len(m.Confirmed(escrowUID)) > 1 {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(opConfirm, opRequest)),
			gen.SliceOfN(4, gen.IntRange(0, 3)),
		))
	}

	properties.TestingRun(t)
}

func TestMachine_Observe(t *testing.T) {
	m := confirmation.NewMachine(confirmation.ExclusiveRevocable)

	m.Observe(contracts.ConfirmationEvent{Kind: contracts.ConfirmationRequestedEvent, Fulfillment: first, Escrow: escrowUID})
	assert.Equal(t, confirmation.StateRequested, m.State(first, escrowUID))

	m.Observe(contracts.ConfirmationEvent{Kind: contracts.ConfirmationMadeEvent, Fulfillment: first, Escrow: escrowUID})
	assert.Equal(t, confirmation.StateConfirmed, m.State(first, escrowUID))
	assert.Equal(t, []common.Hash{first}, m.Confirmed(escrowUID))
	assert.ErrorIs(t, m.Confirm(alice, parties, second, escrowUID), confirmation.ErrExclusiveConflict)

	m.Observe(contracts.ConfirmationEvent{Kind: contracts.ConfirmationRevokedEvent, Fulfillment: first, Escrow: escrowUID})
	assert.Equal(t, confirmation.StateRevoked, m.State(first, escrowUID))
	assert.Empty(t, m.Confirmed(escrowUID))

	// a late request does not reopen a revoked pair
	m.Observe(contracts.ConfirmationEvent{Kind: contracts.ConfirmationRequestedEvent, Fulfillment: first, Escrow: escrowUID})
	assert.Equal(t, confirmation.StateRevoked, m.State(first, escrowUID))
}

func TestVariantOf(t *testing.T) {
	book := &addressbook.AddressBook{
		ExclusiveRevocableConfirmationArbiter:      common.HexToAddress("0xc1"),
		ExclusiveUnrevocableConfirmationArbiter:    common.HexToAddress("0xc2"),
		NonexclusiveRevocableConfirmationArbiter:   common.HexToAddress("0xc3"),
		NonexclusiveUnrevocableConfirmationArbiter: common.HexToAddress("0xc4"),
	}

	tests := []struct {
		arbiter common.Address
		want    confirmation.Variant
		found   bool
	}{
		{arbiter: common.HexToAddress("0xc1"), want: confirmation.ExclusiveRevocable, found: true},
		{arbiter: common.HexToAddress("0xc2"), want: confirmation.ExclusiveUnrevocable, found: true},
		{arbiter: common.HexToAddress("0xc3"), want: confirmation.NonexclusiveRevocable, found: true},
		{arbiter: common.HexToAddress("0xc4"), want: confirmation.NonexclusiveUnrevocable, found: true},
		{arbiter: common.HexToAddress("0xc5")},
		{arbiter: common.Address{}},
	}

	for _, tt := range tests {
		t.Run(tt.arbiter.Hex(), func(t *testing.T) {
			got, ok := confirmation.VariantOf(book, tt.arbiter)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
