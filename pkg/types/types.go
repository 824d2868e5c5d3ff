package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Token describes a payable asset on one chain.
type Token struct {
	ChainID int64  `json:"chainId"`
	Address string `json:"address"` // contract address (EVM), mint (Solana), or ticker (deposit chains)
	Symbol  string `json:"symbol"`
	// Decimals is the token's on-chain precision; DisplayDecimals is the
	// precision shown to the payer, which is usually coarser.
	Decimals        int32 `json:"decimals"`
	DisplayDecimals int32 `json:"displayDecimals"`
	// UsdPrice is the USD price of one whole token at quote time.
	// A zero price means the price is unavailable, not that the token is free.
	UsdPrice decimal.Decimal `json:"usdPrice"`
}

// IsNative reports whether the token is the chain's native currency rather
// than a contract asset.
func (t Token) IsNative() bool {
	return t.Address == "" || t.Address == "0x0000000000000000000000000000000000000000"
}

// TokenAmount couples a token with an amount in base units and its USD value
// at quote time.
type TokenAmount struct {
	Token  Token
	Amount *big.Int
	Usd    decimal.Decimal
}

// Clone returns a deep copy. TokenAmounts embedded in orders are replaced, not
// mutated, so copies must not alias the big.Int.
func (a TokenAmount) Clone() TokenAmount {
	out := a
	if a.Amount != nil {
		out.Amount = new(big.Int).Set(a.Amount)
	}
	return out
}

// OrderMode distinguishes a client-side preview from a server-locked order.
type OrderMode string

const (
	// ModePreview orders are mutable client-side and have no intent address.
	ModePreview OrderMode = "preview"
	// ModeHydrated orders are locked server-side with a unique intent address.
	ModeHydrated OrderMode = "hydrated"
)

// SourceStatus tracks the rail-side payment. Meaningful only once hydrated.
type SourceStatus string

const (
	SourceStatusWaitingPayment    SourceStatus = "waiting_payment"
	SourceStatusPendingProcessing SourceStatus = "pending_processing"
	SourceStatusProcessed         SourceStatus = "processed"
)

// DestStatus tracks destination-side fulfillment. Two paths exist: an
// optimistic fast finish and a fallback claim.
type DestStatus string

const (
	DestStatusPending             DestStatus = "pending"
	DestStatusFastFinishSubmitted DestStatus = "fast_finish_submitted"
	DestStatusFastFinishSuccess   DestStatus = "fast_finish_successful"
	DestStatusClaimSuccess        DestStatus = "claim_successful"
)

// Fulfilled reports whether the destination side has reached a state the payer
// can treat as done. A submitted fast finish counts: the destination transfer
// is already in flight and the backend guarantees it lands.
func (s DestStatus) Fulfilled() bool {
	switch s {
	case DestStatusFastFinishSubmitted, DestStatusFastFinishSuccess, DestStatusClaimSuccess:
		return true
	}
	return false
}

// IntentStatus is the overall order outcome.
type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusSuccessful IntentStatus = "successful"
	IntentStatusRefunded   IntentStatus = "refunded"
)

// LineItem is an arbitrary merchant-supplied receipt row.
type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PayerPreferences shape option ranking and the allowed rails for one order.
type PayerPreferences struct {
	PreferredChains []int64  `json:"preferredChains,omitempty"`
	PreferredTokens []string `json:"preferredTokens,omitempty"`
	PaymentOptions  []string `json:"paymentOptions,omitempty"`
}

// OrderMetadata carries the merchant's intent label, line items and payer
// preferences through preview and create.
type OrderMetadata struct {
	Intent string           `json:"intent"`
	Items  []LineItem       `json:"items,omitempty"`
	Payer  PayerPreferences `json:"payer"`
}

// PaymentOrder is the central entity tracked by ID through its lifecycle:
// preview -> hydrated -> polled until the destination status is fulfilled.
type PaymentOrder struct {
	ID       *big.Int
	Mode     OrderMode
	Metadata OrderMetadata

	// DestinationTokenAmount is what the merchant receives. While in preview
	// it may be regenerated freely; once hydrated it is locked.
	DestinationTokenAmount TokenAmount
	DestinationAddress     string
	DestinationCalldata    string

	// IntentAddress is the per-order deposit/handoff address. Empty until
	// hydration.
	IntentAddress string

	SourceStatus SourceStatus
	DestStatus   DestStatus
	IntentStatus IntentStatus

	DestFastFinishTxHash string
	DestClaimTxHash      string
}

// Hydrated reports whether the order has been committed server-side.
func (o *PaymentOrder) Hydrated() bool {
	return o != nil && o.Mode == ModeHydrated
}

// SameID reports whether two orders refer to the same intent. Used as the
// guard against redundant concurrent overwrites of the in-memory order.
func (o *PaymentOrder) SameID(other *PaymentOrder) bool {
	if o == nil || other == nil || o.ID == nil || other.ID == nil {
		return false
	}
	return o.ID.Cmp(other.ID) == 0
}

// Clone returns a deep copy of the order. The in-memory order is always
// replaced wholesale on update.
func (o *PaymentOrder) Clone() *PaymentOrder {
	if o == nil {
		return nil
	}
	out := *o
	if o.ID != nil {
		out.ID = new(big.Int).Set(o.ID)
	}
	out.DestinationTokenAmount = o.DestinationTokenAmount.Clone()
	if o.Metadata.Items != nil {
		out.Metadata.Items = append([]LineItem(nil), o.Metadata.Items...)
	}
	return &out
}

// PayParams is the caller-supplied order specification. Immutable once a
// preview has been generated from it; deposit-flow amount changes regenerate
// the derived order, never this struct.
type PayParams struct {
	AppID           string   `json:"appId" validate:"required"`
	ToChain         int64    `json:"toChain" validate:"required"`
	ToToken         string   `json:"toToken" validate:"required"`
	ToAmount        *big.Int `json:"-" validate:"required"`
	ToAddress       string   `json:"toAddress" validate:"required"`
	ToCalldata      string   `json:"toCalldata,omitempty"`
	Intent          string   `json:"intent,omitempty"`
	IsDepositFlow   bool     `json:"isDepositFlow,omitempty"`
	PaymentOptions  []string `json:"paymentOptions,omitempty"`
	PreferredChains []int64  `json:"preferredChains,omitempty"`
	PreferredTokens []string `json:"preferredTokens,omitempty"`
}

// ExternalPaymentData is returned by hydration when an external option was
// chosen: where to send the payer and what to show while waiting.
type ExternalPaymentData struct {
	RedirectURL    string `json:"redirectUrl"`
	WaitingMessage string `json:"waitingMessage"`
}

// HydrateResult bundles the hydrated order with optional external rail data.
type HydrateResult struct {
	Order        *PaymentOrder
	ExternalData *ExternalPaymentData
}

// DepositAddressDetails are the rail-specific receive instructions for a
// deposit-address payment.
type DepositAddressDetails struct {
	Address string `json:"address"`
	// Amount is the exact display-denominated amount the payer must send.
	Amount string `json:"amount"`
	// Suffix is an optional memo/tag required by some chains.
	Suffix string `json:"suffix,omitempty"`
}
