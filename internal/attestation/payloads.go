package attestation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownSchema is returned when no decoder is registered for a schema
var ErrUnknownSchema = errors.New("unknown schema")

var (
	stringObligationArgs = contracts.Tuple(contracts.Field("item", "string"))

	commitRevealArgs = contracts.Tuple(
		contracts.Field("payload", "bytes"),
		contracts.Field("salt", "bytes32"),
		contracts.Field("schema", "bytes32"),
	)

	// every token escrow layout starts with (arbiter, demand)
	escrowHeaderArgs = contracts.Tuple(
		contracts.Field("arbiter", "address"),
		contracts.Field("demand", "bytes"),
	)
)

// StringObligation is the payload of a string-valued obligation
type StringObligation struct {
	Item string `abi:"item" json:"item"`
}

// EscrowHeader is the arbiter binding shared by every escrow payload
type EscrowHeader struct {
	Arbiter common.Address `abi:"arbiter" json:"arbiter"`
	Demand  []byte         `abi:"demand" json:"demand"`
}

// EncodeStringObligation ABI-encodes a string obligation payload
func EncodeStringObligation(item string) ([]byte, error) {
	return contracts.EncodeTuple(stringObligationArgs, StringObligation{Item: item})
}

// DecodeStringObligation decodes a string obligation payload
func DecodeStringObligation(data []byte) (StringObligation, error) {
	return contracts.DecodeTuple[StringObligation](stringObligationArgs, data)
}

// EncodeCommitReveal ABI-encodes a commit-reveal obligation payload
func EncodeCommitReveal(data contracts.CommitRevealData) ([]byte, error) {
	return contracts.EncodeTuple(commitRevealArgs, data)
}

// DecodeCommitReveal decodes a commit-reveal obligation payload
func DecodeCommitReveal(data []byte) (contracts.CommitRevealData, error) {
	return contracts.DecodeTuple[contracts.CommitRevealData](commitRevealArgs, data)
}

// EncodeEscrowHeader encodes an escrow payload holding only the arbiter binding
func EncodeEscrowHeader(header EscrowHeader) ([]byte, error) {
	return contracts.EncodeTuple(escrowHeaderArgs, header)
}

// DecodeEscrowHeader reads the arbiter binding from any escrow payload.
// Trailing asset fields are ignored.
func DecodeEscrowHeader(data []byte) (EscrowHeader, error) {
	header, err := contracts.DecodeTuple[EscrowHeader](escrowHeaderArgs, data)
	if err != nil {
		return EscrowHeader{}, fmt.Errorf("malformed escrow payload: %w", err)
	}
	return header, nil
}

// PayloadDecoder turns attestation payload bytes into a typed value
type PayloadDecoder func(data []byte) (interface{}, error)

// PayloadRegistry maps schema uids to payload decoders
type PayloadRegistry struct {
	mu       sync.RWMutex
	decoders map[common.Hash]PayloadDecoder
}

// NewPayloadRegistry creates an empty registry
func NewPayloadRegistry() *PayloadRegistry {
	return &PayloadRegistry{decoders: make(map[common.Hash]PayloadDecoder)}
}

// Register binds a decoder to a schema, replacing any previous one
func (r *PayloadRegistry) Register(schema common.Hash, decoder PayloadDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[schema] = decoder
}

// RegisterStringObligation binds the string obligation decoder to schema
func (r *PayloadRegistry) RegisterStringObligation(schema common.Hash) {
	r.Register(schema, func(data []byte) (interface{}, error) {
		return DecodeStringObligation(data)
	})
}

// RegisterCommitReveal binds the commit-reveal decoder to schema
func (r *PayloadRegistry) RegisterCommitReveal(schema common.Hash) {
	r.Register(schema, func(data []byte) (interface{}, error) {
		return DecodeCommitReveal(data)
	})
}

// Decode decodes an attestation's payload with the decoder for its schema
func (r *PayloadRegistry) Decode(a *Attestation) (interface{}, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[a.Schema]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, a.Schema.Hex())
	}
	return decoder(a.Data)
}
