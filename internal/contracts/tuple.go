package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Field describes one named component of an ABI tuple
func Field(name, typ string) abi.ArgumentMarshaling {
	return abi.ArgumentMarshaling{Name: name, Type: typ}
}

// Tuple builds single-argument ABI arguments holding one tuple with the
// given components. Packing a struct through it matches Solidity's
// abi.encode(structValue).
func Tuple(components ...abi.ArgumentMarshaling) abi.Arguments {
	typ, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(fmt.Sprintf("invalid tuple definition: %v", err))
	}
	return abi.Arguments{{Type: typ}}
}

// EncodeTuple ABI-encodes v as the single tuple described by args.
// Struct fields are matched to components through `abi` tags.
func EncodeTuple(args abi.Arguments, v interface{}) ([]byte, error) {
	out, err := args.Pack(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tuple: %w", err)
	}
	return out, nil
}

// DecodeTuple decodes data as the single tuple described by args into T.
// T's fields must follow the tuple's component order.
func DecodeTuple[T any](args abi.Arguments, data []byte) (T, error) {
	var zero T
	values, err := args.Unpack(data)
	if err != nil {
		return zero, fmt.Errorf("failed to decode tuple: %w", err)
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("failed to decode tuple: expected 1 value, got %d", len(values))
	}
	return Convert[T](values[0])
}

// Convert copies an ABI-unpacked value into T. abi.ConvertType panics on
// mismatched layouts, so the panic is turned into an error here.
func Convert[T any](value interface{}) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to convert abi value: %v", r)
		}
	}()
	converted := abi.ConvertType(value, new(T)).(*T)
	return *converted, nil
}
