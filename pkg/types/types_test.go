package types

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestStatusFulfilled(t *testing.T) {
	assert.False(t, DestStatusPending.Fulfilled())
	assert.False(t, DestStatus("").Fulfilled())

	// A submitted fast finish already counts as fulfilled: the destination
	// transfer is in flight and guaranteed to land.
	assert.True(t, DestStatusFastFinishSubmitted.Fulfilled())
	assert.True(t, DestStatusFastFinishSuccess.Fulfilled())
	assert.True(t, DestStatusClaimSuccess.Fulfilled())
}

func TestTokenIsNative(t *testing.T) {
	assert.True(t, Token{Address: ""}.IsNative())
	assert.True(t, Token{Address: "0x0000000000000000000000000000000000000000"}.IsNative())
	assert.False(t, Token{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"}.IsNative())
}

func TestTokenAmountCloneDoesNotAlias(t *testing.T) {
	original := TokenAmount{Amount: big.NewInt(1000)}
	clone := original.Clone()

	clone.Amount.SetInt64(9999)
	assert.Equal(t, int64(1000), original.Amount.Int64())
}

func TestPaymentOrderHydrated(t *testing.T) {
	var nilOrder *PaymentOrder
	assert.False(t, nilOrder.Hydrated())
	assert.False(t, (&PaymentOrder{Mode: ModePreview}).Hydrated())
	assert.True(t, (&PaymentOrder{Mode: ModeHydrated}).Hydrated())
}

func TestPaymentOrderSameID(t *testing.T) {
	a := &PaymentOrder{ID: big.NewInt(42)}
	b := &PaymentOrder{ID: big.NewInt(42)}
	c := &PaymentOrder{ID: big.NewInt(43)}

	assert.True(t, a.SameID(b))
	assert.False(t, a.SameID(c))
	assert.False(t, a.SameID(nil))
	assert.False(t, a.SameID(&PaymentOrder{}))

	var nilOrder *PaymentOrder
	assert.False(t, nilOrder.SameID(a))
}

func TestPaymentOrderClone(t *testing.T) {
	original := &PaymentOrder{
		ID:                     big.NewInt(7),
		Mode:                   ModePreview,
		DestinationTokenAmount: TokenAmount{Amount: big.NewInt(500)},
		Metadata: OrderMetadata{
			Items: []LineItem{{Name: "thing"}},
		},
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)

	clone.ID.SetInt64(8)
	clone.DestinationTokenAmount.Amount.SetInt64(999)
	clone.Metadata.Items[0].Name = "other"

	assert.Equal(t, int64(7), original.ID.Int64())
	assert.Equal(t, int64(500), original.DestinationTokenAmount.Amount.Int64())
	assert.Equal(t, "thing", original.Metadata.Items[0].Name)

	var nilOrder *PaymentOrder
	assert.Nil(t, nilOrder.Clone())
}

func usd(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestPaymentOptionSelectable(t *testing.T) {
	tests := []struct {
		name       string
		required   string
		balance    string
		minimum    string
		selectable bool
	}{
		{"comfortably payable", "5.00", "100.00", "1.00", true},
		{"exactly at minimum", "1.00", "100.00", "1.00", true},
		{"below minimum", "0.99", "100.00", "1.00", false},
		{"exactly at balance", "100.00", "100.00", "1.00", true},
		{"above balance", "100.01", "100.00", "1.00", false},
		{"zero minimum", "0.01", "1.00", "0", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opt := PaymentOption{
				Rail:       RailEVM,
				Required:   TokenAmount{Usd: usd(tc.required)},
				Balance:    TokenAmount{Usd: usd(tc.balance)},
				MinimumUsd: usd(tc.minimum),
			}
			assert.Equal(t, tc.selectable, opt.Selectable())
		})
	}
}

func TestPaymentOptionMeetsMinimum(t *testing.T) {
	opt := PaymentOption{
		Rail:       RailExternal,
		Required:   TokenAmount{Usd: usd("2.00")},
		MinimumUsd: usd("2.00"),
	}
	assert.True(t, opt.MeetsMinimum())

	opt.MinimumUsd = usd("2.01")
	assert.False(t, opt.MeetsMinimum())
}
