package helpers

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddressValid checks if the provided string is a valid Ethereum address
// It verifies:
// 1. The address is exactly 42 characters long (including 0x prefix)
// 2. The address starts with "0x"
// 3. The remaining 40 characters are valid hexadecimal
func IsAddressValid(address string) bool {
	if len(address) != 42 {
		return false
	}
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	return isHex(address[2:])
}

// IsPrivateKeyValid checks if the provided string is a valid Ethereum private key.
// The 0x prefix is optional.
func IsPrivateKeyValid(key string) bool {
	key = strings.TrimPrefix(key, "0x")
	if len(key) != 64 {
		return false
	}
	return isHex(key)
}

// ParseAddress validates and converts a hex string into an address
func ParseAddress(address string) (common.Address, error) {
	if !IsAddressValid(address) {
		return common.Address{}, fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}

// ParseHash validates and converts a 0x-prefixed 32-byte hex string
func ParseHash(value string) (common.Hash, error) {
	if len(value) != 66 || !strings.HasPrefix(value, "0x") || !isHex(value[2:]) {
		return common.Hash{}, fmt.Errorf("invalid 32-byte hex value %q", value)
	}
	return common.HexToHash(value), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
