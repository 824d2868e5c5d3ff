// Package rails defines the capability boundary between the SDK core and the
// host's wallet layer. The SDK never manages connections or keys; it asks a
// wallet to send a prepared transaction and classifies what came back.
package rails

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// EVMTransaction is a prepared transaction request for an EVM wallet.
type EVMTransaction struct {
	To      common.Address
	Value   *big.Int
	Data    []byte
	ChainID int64
}

// EVMWallet is the host-supplied EVM wallet capability.
type EVMWallet interface {
	// Address returns the connected account.
	Address() (common.Address, error)

	// ChainID returns the currently connected chain.
	ChainID() (int64, error)

	// SwitchChain asks the wallet to switch to the given chain.
	SwitchChain(ctx context.Context, chainID int64) error

	// SendTransaction submits the transaction and returns its hash.
	SendTransaction(ctx context.Context, tx EVMTransaction) (common.Hash, error)
}

// SolanaWallet is the host-supplied Solana wallet capability.
type SolanaWallet interface {
	// PublicKey returns the connected account.
	PublicKey() (solana.PublicKey, error)

	// SignAndSend signs the prepared transaction and submits it.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// URLOpener opens an external payment flow in a new context (browser tab,
// in-app webview). How is up to the host.
type URLOpener interface {
	OpenURL(url string) error
}

// ErrUserRejected marks a signature or transaction the payer declined in
// their wallet. An expected outcome, surfaced as cancelled rather than failed.
var ErrUserRejected = errors.New("user rejected request")

// ErrChainMismatch marks a wallet connected to the wrong chain for the
// prepared transaction. Triggers exactly one forced switch-and-retry.
var ErrChainMismatch = errors.New("wallet connected to wrong chain")

// IsUserRejection classifies wallet errors that mean the payer said no.
// Matches both our sentinel and the common provider error strings
// (EIP-1193 code 4001 and friends).
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "rejected the request") ||
		strings.Contains(msg, "4001")
}

// IsChainMismatch classifies wallet errors caused by being on the wrong chain.
func IsChainMismatch(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChainMismatch) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "chain mismatch") ||
		strings.Contains(msg, "wrong chain") ||
		strings.Contains(msg, "unrecognized chain") ||
		strings.Contains(msg, "chain id")
}
