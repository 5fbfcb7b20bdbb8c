package demand_test

import (
	"math/big"
	"testing"

	"github.com/arkhai-io/alkahest-sub000/internal/addressbook"
	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/arkhai-io/alkahest-sub000/internal/demand"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lastKind = demand.KindNonexclusiveUnrevocableConfirmation

func arbiterFor(kind demand.Kind) common.Address {
	return common.BigToAddress(big.NewInt(0xa000 + int64(kind)))
}

func newTestCodec(maxDepth int) *demand.Codec {
	arbiters := make(map[common.Address]demand.Kind)
	for k := demand.KindTrustedOracle; k <= lastKind; k++ {
		arbiters[arbiterFor(k)] = k
	}
	return demand.NewCodec(arbiters, maxDepth)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(0)
	oracle := common.HexToAddress("0xb0b")

	tests := []struct {
		name string
		in   demand.Decoded
	}{
		{
			name: "trusted oracle",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindTrustedOracle),
				Demand:  demand.TrustedOracle{Oracle: oracle, Data: []byte("good")},
			},
		},
		{
			name: "trusted oracle without data",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindTrustedOracle),
				Demand:  demand.TrustedOracle{Oracle: oracle},
			},
		},
		{
			name: "intrinsics marker",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindIntrinsics),
				Demand:  demand.Marker{Of: demand.KindIntrinsics},
			},
		},
		{
			name: "confirmation marker",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindExclusiveRevocableConfirmation),
				Demand:  demand.Marker{Of: demand.KindExclusiveRevocableConfirmation},
			},
		},
		{
			name: "confirmation marker with payload",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindNonexclusiveUnrevocableConfirmation),
				Demand:  demand.Marker{Of: demand.KindNonexclusiveUnrevocableConfirmation, Raw: []byte("deliver by friday")},
			},
		},
		{
			name: "recipient",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindRecipient),
				Demand:  demand.AddressMatch{Of: demand.KindRecipient, Address: oracle},
			},
		},
		{
			name: "schema",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindSchema),
				Demand:  demand.HashMatch{Of: demand.KindSchema, Value: common.HexToHash("0x5c")},
			},
		},
		{
			name: "expiration before",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindExpirationTimeBefore),
				Demand:  demand.TimeMatch{Of: demand.KindExpirationTimeBefore, Time: 1_800_000_000},
			},
		},
		{
			name: "revocable",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindRevocable),
				Demand:  demand.RevocableMatch{Revocable: true},
			},
		},
		{
			name: "erc1155 payment",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindERC1155Payment),
				Demand: demand.ERC1155Payment{
					Token:   common.HexToAddress("0x70c"),
					TokenID: big.NewInt(7),
					Amount:  big.NewInt(1000),
					Payee:   oracle,
				},
			},
		},
		{
			name: "native payment",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindNativePayment),
				Demand:  demand.NativePayment{Amount: big.NewInt(1e18), Payee: oracle},
			},
		},
		{
			name: "nested logical demands",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindAll),
				Demand: demand.AllOf{Children: []demand.Decoded{
					{
						Arbiter: arbiterFor(demand.KindTrustedOracle),
						Demand:  demand.TrustedOracle{Oracle: oracle, Data: []byte{1}},
					},
					{
						Arbiter: arbiterFor(demand.KindAny),
						Demand: demand.AnyOf{Children: []demand.Decoded{
							{
								Arbiter: arbiterFor(demand.KindIntrinsics),
								Demand:  demand.Marker{Of: demand.KindIntrinsics},
							},
							{
								Arbiter: common.HexToAddress("0xdead"),
								Demand:  demand.Unknown{Arbiter: common.HexToAddress("0xdead"), Raw: []byte{9, 9}},
							},
						}},
					},
					{
						Arbiter: arbiterFor(demand.KindNot),
						Demand: demand.Not{Base: demand.Decoded{
							Arbiter: arbiterFor(demand.KindUID),
							Demand:  demand.HashMatch{Of: demand.KindUID, Value: common.HexToHash("0x01")},
						}},
					},
				}},
			},
		},
		{
			name: "trusted party over trusted oracle",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindTrustedParty),
				Demand: demand.TrustedParty{
					Base: demand.Decoded{
						Arbiter: arbiterFor(demand.KindTrustedOracle),
						Demand:  demand.TrustedOracle{Oracle: oracle, Data: []byte("x")},
					},
					Creator: common.HexToAddress("0xa11ce"),
				},
			},
		},
		{
			name: "empty any",
			in: demand.Decoded{
				Arbiter: arbiterFor(demand.KindAny),
				Demand:  demand.AnyOf{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := codec.Encode(tt.in.Demand)
			require.NoError(t, err)

			decoded, err := codec.Decode(tt.in.Arbiter, encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.in, decoded)
			assert.Equal(t, tt.in.Demand.Kind(), decoded.Kind())
		})
	}
}

func TestCodec_DecodeUnknownArbiter(t *testing.T) {
	codec := newTestCodec(0)
	arbiter := common.HexToAddress("0x1234")

	decoded, err := codec.Decode(arbiter, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, demand.KindUnknown, decoded.Kind())
	assert.Equal(t, demand.Unknown{Arbiter: arbiter, Raw: []byte{1, 2, 3}}, decoded.Demand)

	raw, err := codec.Encode(decoded.Demand)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestCodec_LengthMismatch(t *testing.T) {
	codec := newTestCodec(0)
	args := contracts.Tuple(
		contracts.Field("arbiters", "address[]"),
		contracts.Field("demands", "bytes[]"),
	)
	type multi struct {
		Arbiters []common.Address `abi:"arbiters"`
		Demands  [][]byte         `abi:"demands"`
	}
	data, err := contracts.EncodeTuple(args, multi{
		Arbiters: []common.Address{arbiterFor(demand.KindIntrinsics), arbiterFor(demand.KindIntrinsics)},
		Demands:  [][]byte{{}},
	})
	require.NoError(t, err)

	_, err = codec.Decode(arbiterFor(demand.KindAny), data)
	assert.ErrorIs(t, err, demand.ErrLengthMismatch)

	// the mismatch surfaces from nested positions too
	notArgs := contracts.Tuple(
		contracts.Field("baseArbiter", "address"),
		contracts.Field("baseDemand", "bytes"),
	)
	type base struct {
		BaseArbiter common.Address `abi:"baseArbiter"`
		BaseDemand  []byte         `abi:"baseDemand"`
	}
	nested, err := contracts.EncodeTuple(notArgs, base{BaseArbiter: arbiterFor(demand.KindAll), BaseDemand: data})
	require.NoError(t, err)

	_, err = codec.Decode(arbiterFor(demand.KindNot), nested)
	assert.ErrorIs(t, err, demand.ErrLengthMismatch)
}

func TestCodec_MarkerKeepsDemandBytes(t *testing.T) {
	codec := newTestCodec(0)
	payload := []byte{0xca, 0xfe, 0x00, 0x01}

	for _, kind := range []demand.Kind{
		demand.KindIntrinsics,
		demand.KindExclusiveRevocableConfirmation,
		demand.KindExclusiveUnrevocableConfirmation,
		demand.KindNonexclusiveRevocableConfirmation,
		demand.KindNonexclusiveUnrevocableConfirmation,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			decoded, err := codec.Decode(arbiterFor(kind), payload)
			require.NoError(t, err)
			assert.Equal(t, demand.Marker{Of: kind, Raw: payload}, decoded.Demand)

			encoded, err := codec.Encode(decoded.Demand)
			require.NoError(t, err)
			assert.Equal(t, payload, encoded)

			empty, err := codec.Decode(arbiterFor(kind), nil)
			require.NoError(t, err)
			assert.Equal(t, demand.Marker{Of: kind}, empty.Demand)
		})
	}
}

func TestCodec_MaxDepth(t *testing.T) {
	codec := newTestCodec(3)
	leaf := demand.Decoded{
		Arbiter: arbiterFor(demand.KindIntrinsics),
		Demand:  demand.Marker{Of: demand.KindIntrinsics},
	}
	wrap := func(d demand.Decoded) demand.Decoded {
		return demand.Decoded{Arbiter: arbiterFor(demand.KindNot), Demand: demand.Not{Base: d}}
	}

	shallow := wrap(wrap(leaf))
	encoded, err := codec.Encode(shallow.Demand)
	require.NoError(t, err)
	_, err = codec.Decode(shallow.Arbiter, encoded)
	require.NoError(t, err)

	deep := wrap(shallow)
	_, err = codec.Encode(deep.Demand)
	assert.ErrorIs(t, err, demand.ErrMaxDepth)

	// bytes produced by a more permissive codec are still rejected
	encoded, err = newTestCodec(0).Encode(deep.Demand)
	require.NoError(t, err)
	_, err = codec.Decode(deep.Arbiter, encoded)
	assert.ErrorIs(t, err, demand.ErrMaxDepth)
}

func TestCodec_MalformedPayload(t *testing.T) {
	codec := newTestCodec(0)

	_, err := codec.Decode(arbiterFor(demand.KindTrustedOracle), []byte{0x01, 0x02})
	assert.Error(t, err)

	_, err = codec.Decode(arbiterFor(demand.KindERC20Payment), nil)
	assert.Error(t, err)
}

func TestCodec_EncodeRejectsMismatchedKinds(t *testing.T) {
	codec := newTestCodec(0)

	tests := []demand.Demand{
		nil,
		demand.Marker{Of: demand.KindTrustedOracle},
		demand.AddressMatch{Of: demand.KindSchema},
		demand.HashMatch{Of: demand.KindAttester},
		demand.TimeMatch{Of: demand.KindRevocable},
	}
	for _, d := range tests {
		_, err := codec.Encode(d)
		assert.ErrorIs(t, err, demand.ErrUnsupportedDemand)
	}
}

func TestFromAddressBook(t *testing.T) {
	book := &addressbook.AddressBook{
		EAS:                  common.HexToAddress("0xea5"),
		TrustedOracleArbiter: common.HexToAddress("0xa1"),
		AnyArbiter:           common.HexToAddress("0xa2"),
	}
	codec := demand.FromAddressBook(book, 0)

	assert.Equal(t, demand.KindTrustedOracle, codec.KindOf(book.TrustedOracleArbiter))
	assert.Equal(t, demand.KindAny, codec.KindOf(book.AnyArbiter))
	assert.Equal(t, demand.KindUnknown, codec.KindOf(common.Address{}))

	addr, ok := codec.AddressOf(demand.KindAny)
	assert.True(t, ok)
	assert.Equal(t, book.AnyArbiter, addr)

	_, ok = codec.AddressOf(demand.KindAll)
	assert.False(t, ok)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "trusted_oracle", demand.KindTrustedOracle.String())
	assert.Equal(t, "nonexclusive_unrevocable_confirmation", lastKind.String())
	assert.Equal(t, "unknown", demand.Kind(999).String())
}
