package rails

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// DecodeSolanaTransaction deserializes the backend-built swap-and-burn
// transaction from its base64 wire form.
func DecodeSolanaTransaction(serialized string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode solana transaction: %w", err)
	}
	return tx, nil
}
