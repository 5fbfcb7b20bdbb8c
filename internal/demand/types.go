package demand

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Demand is one arm of the decoded demand family
type Demand interface {
	Kind() Kind
}

// Decoded is a demand paired with the arbiter that interprets it
type Decoded struct {
	Arbiter common.Address `json:"arbiter"`
	Demand  Demand         `json:"demand"`
}

// Kind returns the kind of the wrapped demand
func (d Decoded) Kind() Kind {
	if d.Demand == nil {
		return KindUnknown
	}
	return d.Demand.Kind()
}

// TrustedOracle defers the decision to an off-chain oracle
type TrustedOracle struct {
	Oracle common.Address `json:"oracle"`
	Data   []byte         `json:"data"`
}

func (TrustedOracle) Kind() Kind { return KindTrustedOracle }

// TrustedParty requires the escrow creator to match and then applies Base
type TrustedParty struct {
	Base    Decoded        `json:"base"`
	Creator common.Address `json:"creator"`
}

func (TrustedParty) Kind() Kind { return KindTrustedParty }

// AnyOf accepts when at least one child accepts
type AnyOf struct {
	Children []Decoded `json:"children"`
}

func (AnyOf) Kind() Kind { return KindAny }

// AllOf accepts when every child accepts
type AllOf struct {
	Children []Decoded `json:"children"`
}

func (AllOf) Kind() Kind { return KindAll }

// Not inverts Base
type Not struct {
	Base Decoded `json:"base"`
}

func (Not) Kind() Kind { return KindNot }

// Marker is a parameterless demand; the arbiter's identity is the whole
// check. Raw carries any bytes the arbiter ignores so they re-encode as-is.
type Marker struct {
	Of  Kind   `json:"of"`
	Raw []byte `json:"raw,omitempty"`
}

func (m Marker) Kind() Kind { return m.Of }

// AddressMatch compares an attestation's attester or recipient
type AddressMatch struct {
	Of      Kind           `json:"of"`
	Address common.Address `json:"address"`
}

func (m AddressMatch) Kind() Kind { return m.Of }

// HashMatch compares an attestation identifier or schema field
type HashMatch struct {
	Of    Kind        `json:"of"`
	Value common.Hash `json:"value"`
}

func (m HashMatch) Kind() Kind { return m.Of }

// RevocableMatch compares the attestation's revocable flag
type RevocableMatch struct {
	Revocable bool `json:"revocable"`
}

func (RevocableMatch) Kind() Kind { return KindRevocable }

// TimeMatch compares the issuance or expiration time
type TimeMatch struct {
	Of   Kind   `json:"of"`
	Time uint64 `json:"time"`
}

func (m TimeMatch) Kind() Kind { return m.Of }

// ERC20Payment demands a fungible token payment
type ERC20Payment struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
	Payee  common.Address `json:"payee"`
}

func (ERC20Payment) Kind() Kind { return KindERC20Payment }

// ERC721Payment demands a specific NFT
type ERC721Payment struct {
	Token   common.Address `json:"token"`
	TokenID *big.Int       `json:"token_id"`
	Payee   common.Address `json:"payee"`
}

func (ERC721Payment) Kind() Kind { return KindERC721Payment }

// ERC1155Payment demands an amount of a semi-fungible token
type ERC1155Payment struct {
	Token   common.Address `json:"token"`
	TokenID *big.Int       `json:"token_id"`
	Amount  *big.Int       `json:"amount"`
	Payee   common.Address `json:"payee"`
}

func (ERC1155Payment) Kind() Kind { return KindERC1155Payment }

// NativePayment demands native coin
type NativePayment struct {
	Amount *big.Int       `json:"amount"`
	Payee  common.Address `json:"payee"`
}

func (NativePayment) Kind() Kind { return KindNativePayment }

// Unknown carries demand bytes for an arbiter missing from the address book
type Unknown struct {
	Arbiter common.Address `json:"arbiter"`
	Raw     []byte         `json:"raw"`
}

func (Unknown) Kind() Kind { return KindUnknown }
