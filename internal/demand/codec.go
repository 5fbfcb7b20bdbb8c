package demand

import (
	"errors"
	"fmt"

	"github.com/arkhai-io/alkahest-sub000/internal/addressbook"
	"github.com/arkhai-io/alkahest-sub000/internal/constants"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrLengthMismatch is returned when a logical demand's arbiters and demands differ in length
	ErrLengthMismatch = errors.New("arbiters and demands length mismatch")
	// ErrMaxDepth is returned when nested demands exceed the codec's depth limit
	ErrMaxDepth = errors.New("demand nesting too deep")
	// ErrUnsupportedDemand is returned when encoding a demand whose kind has no layout
	ErrUnsupportedDemand = errors.New("unsupported demand")
)

// Codec translates between raw demand bytes and typed demands, dispatching
// on the arbiter address. The arbiter table is fixed at construction.
type Codec struct {
	kinds     map[common.Address]Kind
	addresses map[Kind]common.Address
	maxDepth  int
}

// NewCodec builds a codec over an arbiter table. A non-positive maxDepth
// selects the default nesting limit.
func NewCodec(arbiters map[common.Address]Kind, maxDepth int) *Codec {
	if maxDepth <= 0 {
		maxDepth = constants.DefaultDemandMaxDepth
	}
	c := &Codec{
		kinds:     make(map[common.Address]Kind, len(arbiters)),
		addresses: make(map[Kind]common.Address, len(arbiters)),
		maxDepth:  maxDepth,
	}
	for addr, kind := range arbiters {
		if addr == (common.Address{}) || kind == KindUnknown {
			continue
		}
		c.kinds[addr] = kind
		c.addresses[kind] = addr
	}
	return c
}

// FromAddressBook builds a codec from every arbiter the address book names
func FromAddressBook(book *addressbook.AddressBook, maxDepth int) *Codec {
	return NewCodec(map[common.Address]Kind{
		book.TrustedOracleArbiter:                       KindTrustedOracle,
		book.TrustedPartyArbiter:                        KindTrustedParty,
		book.SpecificAttestationArbiter:                 KindSpecificAttestation,
		book.IntrinsicsArbiter:                          KindIntrinsics,
		book.IntrinsicsArbiter2:                         KindIntrinsics2,
		book.AnyArbiter:                                 KindAny,
		book.AllArbiter:                                 KindAll,
		book.NotArbiter:                                 KindNot,
		book.AttesterArbiter:                            KindAttester,
		book.RecipientArbiter:                           KindRecipient,
		book.SchemaArbiter:                              KindSchema,
		book.RefUIDArbiter:                              KindRefUID,
		book.UIDArbiter:                                 KindUID,
		book.RevocableArbiter:                           KindRevocable,
		book.TimeAfterArbiter:                           KindTimeAfter,
		book.TimeBeforeArbiter:                          KindTimeBefore,
		book.TimeEqualArbiter:                           KindTimeEqual,
		book.ExpirationTimeAfterArbiter:                 KindExpirationTimeAfter,
		book.ExpirationTimeBeforeArbiter:                KindExpirationTimeBefore,
		book.ExpirationTimeEqualArbiter:                 KindExpirationTimeEqual,
		book.ERC20PaymentObligation:                     KindERC20Payment,
		book.ERC721PaymentObligation:                    KindERC721Payment,
		book.ERC1155PaymentObligation:                   KindERC1155Payment,
		book.NativePaymentObligation:                    KindNativePayment,
		book.ExclusiveRevocableConfirmationArbiter:      KindExclusiveRevocableConfirmation,
		book.ExclusiveUnrevocableConfirmationArbiter:    KindExclusiveUnrevocableConfirmation,
		book.NonexclusiveRevocableConfirmationArbiter:   KindNonexclusiveRevocableConfirmation,
		book.NonexclusiveUnrevocableConfirmationArbiter: KindNonexclusiveUnrevocableConfirmation,
	}, maxDepth)
}

// KindOf returns the kind registered for an arbiter, or KindUnknown
func (c *Codec) KindOf(arbiter common.Address) Kind {
	return c.kinds[arbiter]
}

// AddressOf returns the arbiter registered for a kind
func (c *Codec) AddressOf(kind Kind) (common.Address, bool) {
	addr, ok := c.addresses[kind]
	return addr, ok
}

// Decode interprets demand bytes for the given arbiter. Unregistered
// arbiters decode to Unknown rather than failing.
func (c *Codec) Decode(arbiter common.Address, data []byte) (Decoded, error) {
	return c.decode(arbiter, data, 1)
}

func (c *Codec) decode(arbiter common.Address, data []byte, depth int) (Decoded, error) {
	if depth > c.maxDepth {
		return Decoded{}, fmt.Errorf("%w: limit %d", ErrMaxDepth, c.maxDepth)
	}

	kind, ok := c.kinds[arbiter]
	if !ok {
		return Decoded{Arbiter: arbiter, Demand: Unknown{Arbiter: arbiter, Raw: nilIfEmpty(data)}}, nil
	}

	demand, err := c.decodeKind(kind, data, depth)
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to decode %s demand for %s: %w", kind, arbiter.Hex(), err)
	}
	return Decoded{Arbiter: arbiter, Demand: demand}, nil
}

func (c *Codec) decodeKind(kind Kind, data []byte, depth int) (Demand, error) {
	switch {
	case kind.isMarker():
		return Marker{Of: kind, Raw: nilIfEmpty(data)}, nil
	case kind.isAddressMatch():
		v, err := contracts.DecodeTuple[addressData](addressArgs, data)
		if err != nil {
			return nil, err
		}
		return AddressMatch{Of: kind, Address: v.Value}, nil
	case kind.isHashMatch():
		v, err := contracts.DecodeTuple[hashData](hashArgs, data)
		if err != nil {
			return nil, err
		}
		return HashMatch{Of: kind, Value: v.Value}, nil
	case kind.isTimeMatch():
		v, err := contracts.DecodeTuple[timestampData](timestampArgs, data)
		if err != nil {
			return nil, err
		}
		return TimeMatch{Of: kind, Time: v.Value}, nil
	}

	switch kind {
	case KindTrustedOracle:
		v, err := contracts.DecodeTuple[trustedOracleData](trustedOracleArgs, data)
		if err != nil {
			return nil, err
		}
		return TrustedOracle{Oracle: v.Oracle, Data: nilIfEmpty(v.Data)}, nil

	case KindTrustedParty:
		v, err := contracts.DecodeTuple[trustedPartyData](trustedPartyArgs, data)
		if err != nil {
			return nil, err
		}
		base, err := c.decode(v.BaseArbiter, v.BaseDemand, depth+1)
		if err != nil {
			return nil, err
		}
		return TrustedParty{Base: base, Creator: v.Creator}, nil

	case KindNot:
		v, err := contracts.DecodeTuple[baseData](baseArgs, data)
		if err != nil {
			return nil, err
		}
		base, err := c.decode(v.BaseArbiter, v.BaseDemand, depth+1)
		if err != nil {
			return nil, err
		}
		return Not{Base: base}, nil

	case KindAny, KindAll:
		v, err := contracts.DecodeTuple[multiData](multiArgs, data)
		if err != nil {
			return nil, err
		}
		if len(v.Arbiters) != len(v.Demands) {
			return nil, fmt.Errorf("%w: %d arbiters, %d demands", ErrLengthMismatch, len(v.Arbiters), len(v.Demands))
		}
		var children []Decoded
		for i, arbiter := range v.Arbiters {
			child, err := c.decode(arbiter, v.Demands[i], depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if kind == KindAny {
			return AnyOf{Children: children}, nil
		}
		return AllOf{Children: children}, nil

	case KindRevocable:
		v, err := contracts.DecodeTuple[boolData](boolArgs, data)
		if err != nil {
			return nil, err
		}
		return RevocableMatch{Revocable: v.Value}, nil

	case KindERC20Payment:
		v, err := contracts.DecodeTuple[erc20Data](erc20Args, data)
		if err != nil {
			return nil, err
		}
		return ERC20Payment(v), nil

	case KindERC721Payment:
		v, err := contracts.DecodeTuple[erc721Data](erc721Args, data)
		if err != nil {
			return nil, err
		}
		return ERC721Payment(v), nil

	case KindERC1155Payment:
		v, err := contracts.DecodeTuple[erc1155Data](erc1155Args, data)
		if err != nil {
			return nil, err
		}
		return ERC1155Payment(v), nil

	case KindNativePayment:
		v, err := contracts.DecodeTuple[nativeData](nativeArgs, data)
		if err != nil {
			return nil, err
		}
		return NativePayment(v), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDemand, kind)
}

// Encode produces the canonical byte layout of a demand
func (c *Codec) Encode(demand Demand) ([]byte, error) {
	return c.encode(demand, 1)
}

func (c *Codec) encode(demand Demand, depth int) ([]byte, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: limit %d", ErrMaxDepth, c.maxDepth)
	}

	switch d := demand.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil demand", ErrUnsupportedDemand)
	case Unknown:
		return d.Raw, nil
	case Marker:
		if !d.Of.isMarker() {
			return nil, fmt.Errorf("%w: marker of %s", ErrUnsupportedDemand, d.Of)
		}
		return d.Raw, nil
	case AddressMatch:
		if !d.Of.isAddressMatch() {
			return nil, fmt.Errorf("%w: address match of %s", ErrUnsupportedDemand, d.Of)
		}
		return contracts.EncodeTuple(addressArgs, addressData{Value: d.Address})
	case HashMatch:
		if !d.Of.isHashMatch() {
			return nil, fmt.Errorf("%w: hash match of %s", ErrUnsupportedDemand, d.Of)
		}
		return contracts.EncodeTuple(hashArgs, hashData{Value: d.Value})
	case TimeMatch:
		if !d.Of.isTimeMatch() {
			return nil, fmt.Errorf("%w: time match of %s", ErrUnsupportedDemand, d.Of)
		}
		return contracts.EncodeTuple(timestampArgs, timestampData{Value: d.Time})
	case RevocableMatch:
		return contracts.EncodeTuple(boolArgs, boolData{Value: d.Revocable})
	case TrustedOracle:
		return contracts.EncodeTuple(trustedOracleArgs, trustedOracleData{Oracle: d.Oracle, Data: d.Data})
	case TrustedParty:
		base, err := c.encode(d.Base.Demand, depth+1)
		if err != nil {
			return nil, err
		}
		return contracts.EncodeTuple(trustedPartyArgs, trustedPartyData{
			BaseArbiter: d.Base.Arbiter,
			BaseDemand:  base,
			Creator:     d.Creator,
		})
	case Not:
		base, err := c.encode(d.Base.Demand, depth+1)
		if err != nil {
			return nil, err
		}
		return contracts.EncodeTuple(baseArgs, baseData{BaseArbiter: d.Base.Arbiter, BaseDemand: base})
	case AnyOf:
		return c.encodeMulti(d.Children, depth)
	case AllOf:
		return c.encodeMulti(d.Children, depth)
	case ERC20Payment:
		return contracts.EncodeTuple(erc20Args, erc20Data{Token: d.Token, Amount: orZero(d.Amount), Payee: d.Payee})
	case ERC721Payment:
		return contracts.EncodeTuple(erc721Args, erc721Data{Token: d.Token, TokenID: orZero(d.TokenID), Payee: d.Payee})
	case ERC1155Payment:
		return contracts.EncodeTuple(erc1155Args, erc1155Data{
			Token:   d.Token,
			TokenID: orZero(d.TokenID),
			Amount:  orZero(d.Amount),
			Payee:   d.Payee,
		})
	case NativePayment:
		return contracts.EncodeTuple(nativeArgs, nativeData{Amount: orZero(d.Amount), Payee: d.Payee})
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedDemand, demand)
}

func (c *Codec) encodeMulti(children []Decoded, depth int) ([]byte, error) {
	data := multiData{
		Arbiters: make([]common.Address, 0, len(children)),
		Demands:  make([][]byte, 0, len(children)),
	}
	for _, child := range children {
		encoded, err := c.encode(child.Demand, depth+1)
		if err != nil {
			return nil, err
		}
		if encoded == nil {
			encoded = []byte{}
		}
		data.Arbiters = append(data.Arbiters, child.Arbiter)
		data.Demands = append(data.Demands, encoded)
	}
	return contracts.EncodeTuple(multiArgs, data)
}

// EncodeDecoded encodes d's demand; the arbiter travels separately
func (c *Codec) EncodeDecoded(d Decoded) ([]byte, error) {
	return c.encode(d.Demand, 1)
}
