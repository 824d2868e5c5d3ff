package types

import "github.com/shopspring/decimal"

// Rail is a distinct payment method category.
type Rail string

const (
	RailEVM            Rail = "evm"
	RailSolana         Rail = "solana"
	RailExternal       Rail = "external"
	RailDepositAddress Rail = "depositAddress"
)

// ExternalOptionMeta describes an exchange or fiat on-ramp option.
type ExternalOptionMeta struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	LogoURI     string          `json:"logoUri,omitempty"`
	CTA         string          `json:"cta"`
	MinimumUsd  decimal.Decimal `json:"minimumUsd"`
}

// DepositAddressOptionMeta describes a chain reachable only via a generated
// receive address (Bitcoin, Tron, Zcash, ...).
type DepositAddressOptionMeta struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	LogoURI     string          `json:"logoUri,omitempty"`
	MinimumUsd  decimal.Decimal `json:"minimumUsd"`
}

// PaymentOption is one normalized way the payer could fund the order. The
// Rail field discriminates which payload is populated; dispatch on it must be
// exhaustive.
//
// Options are constructed fresh per (payer, destination, amount) query and
// replaced wholesale when the amount changes, never mutated in place.
type PaymentOption struct {
	Rail Rail

	// Required is the total the payer must send, fees included.
	Required TokenAmount
	// Fees is the portion of Required taken by bridging/swapping.
	Fees TokenAmount
	// Balance is the payer's available balance in the required token. Zero
	// for external and deposit-address rails, where no balance is visible.
	Balance TokenAmount
	// MinimumUsd is the floor below which the rail refuses the payment.
	MinimumUsd decimal.Decimal

	External       *ExternalOptionMeta       `json:"external,omitempty"`
	DepositAddress *DepositAddressOptionMeta `json:"depositAddress,omitempty"`
}

// MeetsMinimum reports whether the required amount clears the rail's floor.
// Boundary included: exactly the minimum is payable.
func (o PaymentOption) MeetsMinimum() bool {
	return o.Required.Usd.GreaterThanOrEqual(o.MinimumUsd)
}

// WithinBalance reports whether the payer holds enough to cover the required
// amount. Boundary included: exactly the balance is payable.
func (o PaymentOption) WithinBalance() bool {
	return o.Required.Usd.LessThanOrEqual(o.Balance.Usd)
}

// Selectable reports whether the option can be confirmed: it clears the rail
// minimum and fits the payer's balance. Only meaningful for balance-backed
// rails (EVM, Solana); external and deposit options gate on MeetsMinimum alone.
func (o PaymentOption) Selectable() bool {
	return o.MeetsMinimum() && o.WithinBalance()
}
