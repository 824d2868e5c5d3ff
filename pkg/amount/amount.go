// Package amount holds the USD-to-token conversion and rounding used by every
// amount-entry surface. Rounding direction is always explicit: a minimum shown
// to the payer rounds up so it is achievable, a maximum rounds down so it never
// exceeds what the wallet actually holds.
package amount

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/constants"
	"github.com/railhq/railpay/pkg/types"
)

// ErrPriceUnavailable is returned when a token has no usable USD price.
// Callers disable minimum/continue affordances instead of surfacing it.
var ErrPriceUnavailable = errors.New("token price unavailable")

// RoundDirection selects the rounding behavior at a given precision.
type RoundDirection int

const (
	// RoundUp is a true ceiling at the given decimal precision.
	RoundUp RoundDirection = iota
	// RoundDown is a true floor at the given decimal precision.
	RoundDown
	// RoundNearest is conventional half-away-from-zero rounding.
	RoundNearest
)

// RoundDecimals rounds v to the given number of decimal places in the given
// direction.
func RoundDecimals(v decimal.Decimal, places int32, dir RoundDirection) decimal.Decimal {
	switch dir {
	case RoundUp:
		return v.RoundCeil(places)
	case RoundDown:
		return v.RoundFloor(places)
	default:
		return v.Round(places)
	}
}

// UsdToTokenUnits converts a USD value into the token's base units, rounding
// in the given direction at base-unit precision.
func UsdToTokenUnits(usd decimal.Decimal, token types.Token, dir RoundDirection) (*big.Int, error) {
	if token.UsdPrice.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	units := RoundDecimals(usd.Shift(token.Decimals).Div(token.UsdPrice), 0, dir)
	return units.BigInt(), nil
}

// TokenUnitsToUsd converts base units into a USD value rounded to the USD
// display precision in the given direction.
func TokenUnitsToUsd(units *big.Int, token types.Token, dir RoundDirection) (decimal.Decimal, error) {
	if token.UsdPrice.Sign() <= 0 {
		return decimal.Zero, ErrPriceUnavailable
	}
	if units == nil {
		units = new(big.Int)
	}
	usd := decimal.NewFromBigInt(units, -token.Decimals).Mul(token.UsdPrice)
	return RoundDecimals(usd, constants.USDDisplayDecimals, dir), nil
}

// TokenUnitsToDisplay renders base units at the token's display precision,
// which is usually coarser than its on-chain precision.
func TokenUnitsToDisplay(units *big.Int, token types.Token, dir RoundDirection) decimal.Decimal {
	if units == nil {
		units = new(big.Int)
	}
	return RoundDecimals(decimal.NewFromBigInt(units, -token.Decimals), token.DisplayDecimals, dir)
}

// IsValidAmountInput reports whether a raw input string is an acceptable
// partial amount: digits, at most one decimal point, and at most
// maxFractionDigits after it. Invalid keystrokes are rejected outright rather
// than corrected, so this guard runs before any conversion.
func IsValidAmountInput(s string, maxFractionDigits int) bool {
	if s == "" || s == "." {
		return false
	}
	dots := strings.Count(s, ".")
	if dots > 1 {
		return false
	}
	intPart, fracPart := s, ""
	if dots == 1 {
		idx := strings.IndexByte(s, '.')
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if len(fracPart) > maxFractionDigits {
		return false
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
