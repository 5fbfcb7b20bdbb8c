package confirmation

import (
	"errors"
	"fmt"

	"github.com/arkhai-io/alkahest-sub000/internal/addressbook"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized is returned when the caller may not perform a transition
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrExclusiveConflict is returned when an exclusive escrow already has a confirmed fulfillment
	ErrExclusiveConflict = errors.New("escrow already has a confirmed fulfillment")
	// ErrNotRevocable is returned when revoking on an unrevocable variant
	ErrNotRevocable = errors.New("confirmations of this arbiter cannot be revoked")
	// ErrInvalidTransition is returned when the pair's current state forbids the transition
	ErrInvalidTransition = errors.New("invalid confirmation transition")
)

// Variant is one of the four confirmation arbiter flavours
type Variant struct {
	Name      string
	Exclusive bool
	Revocable bool
}

var (
	ExclusiveRevocable      = Variant{Name: "exclusive-revocable", Exclusive: true, Revocable: true}
	ExclusiveUnrevocable    = Variant{Name: "exclusive-unrevocable", Exclusive: true}
	NonexclusiveRevocable   = Variant{Name: "nonexclusive-revocable", Revocable: true}
	NonexclusiveUnrevocable = Variant{Name: "nonexclusive-unrevocable"}
)

// Variants lists the four flavours in address book order
func Variants() []Variant {
	return []Variant{ExclusiveRevocable, ExclusiveUnrevocable, NonexclusiveRevocable, NonexclusiveUnrevocable}
}

// VariantOf finds which confirmation arbiter an address book deploys at arbiter
func VariantOf(book *addressbook.AddressBook, arbiter common.Address) (Variant, bool) {
	if arbiter == (common.Address{}) {
		return Variant{}, false
	}
	for i, addr := range book.ConfirmationArbiters() {
		if addr == arbiter {
			return Variants()[i], true
		}
	}
	return Variant{}, false
}

// State of one (fulfillment, escrow) pair
type State int

const (
	StatePending State = iota
	StateRequested
	StateConfirmed
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateConfirmed:
		return "confirmed"
	case StateRevoked:
		return "revoked"
	}
	return "pending"
}

// Parties are the addresses authorization is resolved against
type Parties struct {
	EscrowRecipient      common.Address
	FulfillmentAttester  common.Address
	FulfillmentRecipient common.Address
}

type pair struct {
	fulfillment common.Hash
	escrow      common.Hash
}

// Machine is the confirmation state machine of one arbiter deployment.
// It is not safe for concurrent use.
type Machine struct {
	variant Variant
	states  map[pair]State
	// confirmed fulfillments per escrow
	confirmed map[common.Hash]map[common.Hash]struct{}
}

// NewMachine creates an empty machine for variant
func NewMachine(variant Variant) *Machine {
	return &Machine{
		variant:   variant,
		states:    make(map[pair]State),
		confirmed: make(map[common.Hash]map[common.Hash]struct{}),
	}
}

// Variant returns the flavour the machine enforces
func (m *Machine) Variant() Variant {
	return m.variant
}

// State returns the state of a pair
func (m *Machine) State(fulfillment, escrow common.Hash) State {
	return m.states[pair{fulfillment, escrow}]
}

// Confirmed lists the fulfillments currently confirmed against escrow
func (m *Machine) Confirmed(escrow common.Hash) []common.Hash {
	out := make([]common.Hash, 0, len(m.confirmed[escrow]))
	for f := range m.confirmed[escrow] {
		out = append(out, f)
	}
	return out
}

// CheckRequest validates a confirmation request by caller
func (m *Machine) CheckRequest(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if caller != parties.FulfillmentAttester && caller != parties.FulfillmentRecipient {
		return fmt.Errorf("%w: only the fulfillment attester or recipient may request", ErrUnauthorized)
	}
	if state := m.State(fulfillment, escrow); state != StatePending && state != StateRequested {
		return fmt.Errorf("%w: request from %s", ErrInvalidTransition, state)
	}
	return nil
}

// Request moves a pair to requested
func (m *Machine) Request(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if err := m.CheckRequest(caller, parties, fulfillment, escrow); err != nil {
		return err
	}
	m.states[pair{fulfillment, escrow}] = StateRequested
	return nil
}

// CheckConfirm validates a confirmation by caller
func (m *Machine) CheckConfirm(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if caller != parties.EscrowRecipient {
		return fmt.Errorf("%w: only the escrow recipient may confirm", ErrUnauthorized)
	}
	if state := m.State(fulfillment, escrow); state != StatePending && state != StateRequested {
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, state)
	}
	if m.variant.Exclusive && len(m.confirmed[escrow]) > 0 {
		return ErrExclusiveConflict
	}
	return nil
}

// Confirm moves a pair to confirmed
func (m *Machine) Confirm(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if err := m.CheckConfirm(caller, parties, fulfillment, escrow); err != nil {
		return err
	}
	m.setConfirmed(fulfillment, escrow)
	return nil
}

// CheckRevoke validates a revocation by caller
func (m *Machine) CheckRevoke(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if caller != parties.EscrowRecipient {
		return fmt.Errorf("%w: only the escrow recipient may revoke", ErrUnauthorized)
	}
	if !m.variant.Revocable {
		return ErrNotRevocable
	}
	if state := m.State(fulfillment, escrow); state != StateConfirmed {
		return fmt.Errorf("%w: revoke from %s", ErrInvalidTransition, state)
	}
	return nil
}

// Revoke moves a confirmed pair to revoked
func (m *Machine) Revoke(caller common.Address, parties Parties, fulfillment, escrow common.Hash) error {
	if err := m.CheckRevoke(caller, parties, fulfillment, escrow); err != nil {
		return err
	}
	m.setRevoked(fulfillment, escrow)
	return nil
}

// Observe applies a confirmation log. Logs were authorized on chain, so only
// the state change is replayed.
func (m *Machine) Observe(ev contracts.ConfirmationEvent) {
	switch ev.Kind {
	case contracts.ConfirmationRequestedEvent:
		key := pair{ev.Fulfillment, ev.Escrow}
		if m.states[key] == StatePending {
			m.states[key] = StateRequested
		}
	case contracts.ConfirmationMadeEvent:
		m.setConfirmed(ev.Fulfillment, ev.Escrow)
	case contracts.ConfirmationRevokedEvent:
		m.setRevoked(ev.Fulfillment, ev.Escrow)
	}
}

func (m *Machine) setConfirmed(fulfillment, escrow common.Hash) {
	m.states[pair{fulfillment, escrow}] = StateConfirmed
	if m.confirmed[escrow] == nil {
		m.confirmed[escrow] = make(map[common.Hash]struct{})
	}
	m.confirmed[escrow][fulfillment] = struct{}{}
}

func (m *Machine) setRevoked(fulfillment, escrow common.Hash) {
	m.states[pair{fulfillment, escrow}] = StateRevoked
	delete(m.confirmed[escrow], fulfillment)
}
