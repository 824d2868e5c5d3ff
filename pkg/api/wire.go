package api

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/types"
)

// Wire shapes for the order API. Amounts travel as strings: base units as
// decimal integers, USD values as decimal fractions.

type tokenJSON struct {
	ChainID         int64  `json:"chainId"`
	Address         string `json:"address"`
	Symbol          string `json:"symbol"`
	Decimals        int32  `json:"decimals"`
	DisplayDecimals int32  `json:"displayDecimals"`
	UsdPrice        string `json:"usdPrice"`
}

type tokenAmountJSON struct {
	Token  tokenJSON `json:"token"`
	Amount string    `json:"amount"`
	Usd    string    `json:"usd"`
}

type orderJSON struct {
	ID                     string              `json:"id"`
	Mode                   string              `json:"mode"`
	Metadata               types.OrderMetadata `json:"metadata"`
	DestinationTokenAmount tokenAmountJSON     `json:"destinationTokenAmount"`
	DestinationAddress     string              `json:"destinationAddress"`
	DestinationCalldata    string              `json:"destinationCalldata,omitempty"`
	IntentAddress          string              `json:"intentAddress,omitempty"`
	SourceStatus           string              `json:"sourceStatus,omitempty"`
	DestStatus             string              `json:"destStatus,omitempty"`
	IntentStatus           string              `json:"intentStatus,omitempty"`
	DestFastFinishTxHash   string              `json:"destFastFinishTxHash,omitempty"`
	DestClaimTxHash        string              `json:"destClaimTxHash,omitempty"`
}

type paymentOptionJSON struct {
	Required   tokenAmountJSON `json:"required"`
	Fees       tokenAmountJSON `json:"fees"`
	Balance    tokenAmountJSON `json:"balance"`
	MinimumUsd string          `json:"minimumUsd"`
}

type hydrateResultJSON struct {
	HydratedOrder             orderJSON                  `json:"hydratedOrder"`
	ExternalPaymentOptionData *types.ExternalPaymentData `json:"externalPaymentOptionData,omitempty"`
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

func parseBigInt(s, field string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

func (t tokenJSON) toToken() (types.Token, error) {
	price, err := parseDecimal(t.UsdPrice, "token usd price")
	if err != nil {
		return types.Token{}, err
	}
	return types.Token{
		ChainID:         t.ChainID,
		Address:         t.Address,
		Symbol:          t.Symbol,
		Decimals:        t.Decimals,
		DisplayDecimals: t.DisplayDecimals,
		UsdPrice:        price,
	}, nil
}

func fromToken(t types.Token) tokenJSON {
	return tokenJSON{
		ChainID:         t.ChainID,
		Address:         t.Address,
		Symbol:          t.Symbol,
		Decimals:        t.Decimals,
		DisplayDecimals: t.DisplayDecimals,
		UsdPrice:        t.UsdPrice.String(),
	}
}

func (a tokenAmountJSON) toTokenAmount() (types.TokenAmount, error) {
	token, err := a.Token.toToken()
	if err != nil {
		return types.TokenAmount{}, err
	}
	units, err := parseBigInt(a.Amount, "token amount")
	if err != nil {
		return types.TokenAmount{}, err
	}
	usd, err := parseDecimal(a.Usd, "token amount usd")
	if err != nil {
		return types.TokenAmount{}, err
	}
	return types.TokenAmount{Token: token, Amount: units, Usd: usd}, nil
}

func fromTokenAmount(a types.TokenAmount) tokenAmountJSON {
	amount := "0"
	if a.Amount != nil {
		amount = a.Amount.String()
	}
	return tokenAmountJSON{
		Token:  fromToken(a.Token),
		Amount: amount,
		Usd:    a.Usd.String(),
	}
}

func (o orderJSON) toOrder() (*types.PaymentOrder, error) {
	id, err := parseBigInt(o.ID, "order id")
	if err != nil {
		return nil, err
	}
	dest, err := o.DestinationTokenAmount.toTokenAmount()
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return &types.PaymentOrder{
		ID:                     id,
		Mode:                   types.OrderMode(o.Mode),
		Metadata:               o.Metadata,
		DestinationTokenAmount: dest,
		DestinationAddress:     o.DestinationAddress,
		DestinationCalldata:    o.DestinationCalldata,
		IntentAddress:          o.IntentAddress,
		SourceStatus:           types.SourceStatus(o.SourceStatus),
		DestStatus:             types.DestStatus(o.DestStatus),
		IntentStatus:           types.IntentStatus(o.IntentStatus),
		DestFastFinishTxHash:   o.DestFastFinishTxHash,
		DestClaimTxHash:        o.DestClaimTxHash,
	}, nil
}

func (p paymentOptionJSON) toOption(rail types.Rail) (types.PaymentOption, error) {
	required, err := p.Required.toTokenAmount()
	if err != nil {
		return types.PaymentOption{}, err
	}
	fees, err := p.Fees.toTokenAmount()
	if err != nil {
		return types.PaymentOption{}, err
	}
	balance, err := p.Balance.toTokenAmount()
	if err != nil {
		return types.PaymentOption{}, err
	}
	minUsd, err := parseDecimal(p.MinimumUsd, "option minimum usd")
	if err != nil {
		return types.PaymentOption{}, err
	}
	return types.PaymentOption{
		Rail:       rail,
		Required:   required,
		Fees:       fees,
		Balance:    balance,
		MinimumUsd: minUsd,
	}, nil
}

func (r hydrateResultJSON) toHydrateResult() (*types.HydrateResult, error) {
	order, err := r.HydratedOrder.toOrder()
	if err != nil {
		return nil, err
	}
	return &types.HydrateResult{
		Order:        order,
		ExternalData: r.ExternalPaymentOptionData,
	}, nil
}
