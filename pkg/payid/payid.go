// Package payid encodes 256-bit order IDs to and from the compact, URL-safe
// display strings used in checkout links.
package payid

import (
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

var maxID = new(big.Int).Lsh(big.NewInt(1), 256) // 2^256, exclusive upper bound

// Encode renders an order ID as a base58 string. IDs must be non-negative and
// fit in 256 bits.
func Encode(id *big.Int) (string, error) {
	if id == nil {
		return "", fmt.Errorf("order id is nil")
	}
	if id.Sign() < 0 {
		return "", fmt.Errorf("order id must be non-negative, got %s", id)
	}
	if id.Cmp(maxID) >= 0 {
		return "", fmt.Errorf("order id exceeds 256 bits")
	}
	// big.Int.Bytes returns the minimal big-endian encoding; base58 has no
	// padding so Decode(Encode(id)) round-trips exactly. Zero encodes to the
	// empty byte slice, which base58 renders as "".
	return base58.Encode(id.Bytes()), nil
}

// Decode parses a display string back into an order ID.
func Decode(s string) (*big.Int, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pay id %q: %w", s, err)
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("invalid pay id %q: exceeds 256 bits", s)
	}
	return new(big.Int).SetBytes(raw), nil
}
