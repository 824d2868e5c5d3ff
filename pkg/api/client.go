// Package api is the typed client for the backend order API. It owns no
// payment logic: every method is a single request/response mapped onto the
// core types.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/logger"
	"github.com/railhq/railpay/pkg/payid"
	"github.com/railhq/railpay/pkg/types"
)

// DefaultBaseURL is the production order API.
const DefaultBaseURL = "https://api.railpay.xyz"

// Client talks to the order API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	// sessionID tags every mutating request for backend-side correlation.
	sessionID string
}

// NewClient creates an order API client. An empty or insecure baseURL falls
// back to the default.
func NewClient(baseURL string, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := ValidateBaseURL(baseURL); err != nil {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(),
		log:        logger.OrNoop(log),
		sessionID:  uuid.NewString(),
	}
}

// SessionID returns the client correlation ID attached to mutating requests.
func (c *Client) SessionID() string {
	return c.sessionID
}

type previewRequest struct {
	types.PayParams
	ToAmount  string `json:"toAmount"`
	SessionID string `json:"sessionId"`
}

// PreviewOrder asks the backend for a non-persisted preview order with the
// computed USD-equivalent destination amount.
func (c *Client) PreviewOrder(ctx context.Context, params *types.PayParams) (*types.PaymentOrder, error) {
	req := previewRequest{
		PayParams: *params,
		ToAmount:  params.ToAmount.String(),
		SessionID: c.sessionID,
	}
	resp, err := doJSON[orderJSON](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders/preview", c.baseURL), req, "preview")
	if err != nil {
		return nil, err
	}
	return resp.toOrder()
}

// GetOrder fetches the current state of an order by ID.
func (c *Client) GetOrder(ctx context.Context, id *big.Int) (*types.PaymentOrder, error) {
	encoded, err := payid.Encode(id)
	if err != nil {
		return nil, err
	}
	resp, err := doJSON[orderJSON](ctx, c.httpClient, http.MethodGet,
		fmt.Sprintf("%s/api/v1/orders/%s", c.baseURL, encoded), nil, "getOrder")
	if err != nil {
		return nil, err
	}
	return resp.toOrder()
}

// CreateOrderRequest carries the full original specification for an order the
// backend has never seen, plus the finalized destination amount.
type CreateOrderRequest struct {
	Params         *types.PayParams
	OrderID        *big.Int
	FinalAmount    types.TokenAmount
	RefundAddress  string
	ExternalOption string
	Metadata       types.OrderMetadata
}

type createOrderWire struct {
	AppID          string              `json:"appId"`
	OrderID        string              `json:"orderId"`
	PaymentInput   previewRequest      `json:"paymentInput"`
	FinalAmount    tokenAmountJSON     `json:"chosenFinalTokenAmount"`
	Metadata       types.OrderMetadata `json:"metadata"`
	Platform       string              `json:"platform"`
	RefundAddress  string              `json:"refundAddress,omitempty"`
	ExternalOption string              `json:"externalPaymentOption,omitempty"`
	SessionID      string              `json:"sessionId"`
}

// CreateOrder creates and hydrates an order in one step. The order ID is the
// idempotency key: repeating the call returns the same hydrated order.
func (c *Client) CreateOrder(ctx context.Context, platform string, req CreateOrderRequest) (*types.HydrateResult, error) {
	wire := createOrderWire{
		AppID:   req.Params.AppID,
		OrderID: req.OrderID.String(),
		PaymentInput: previewRequest{
			PayParams: *req.Params,
			ToAmount:  req.Params.ToAmount.String(),
			SessionID: c.sessionID,
		},
		FinalAmount:    fromTokenAmount(req.FinalAmount),
		Metadata:       req.Metadata,
		Platform:       platform,
		RefundAddress:  req.RefundAddress,
		ExternalOption: req.ExternalOption,
		SessionID:      c.sessionID,
	}
	resp, err := doJSON[hydrateResultJSON](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders", c.baseURL), wire, "createOrder")
	if err != nil {
		return nil, err
	}
	return resp.toHydrateResult()
}

type hydrateOrderWire struct {
	FinalAmount    tokenAmountJSON `json:"chosenFinalTokenAmount"`
	Platform       string          `json:"platform"`
	RefundAddress  string          `json:"refundAddress,omitempty"`
	ExternalOption string          `json:"externalPaymentOption,omitempty"`
	SessionID      string          `json:"sessionId"`
}

// HydrateOrder locks a known order server-side, producing its intent address.
// Idempotent: hydrating the same ID twice returns the same hydrated order.
func (c *Client) HydrateOrder(ctx context.Context, id *big.Int, finalAmount types.TokenAmount, platform, refundAddress, externalOption string) (*types.HydrateResult, error) {
	encoded, err := payid.Encode(id)
	if err != nil {
		return nil, err
	}
	wire := hydrateOrderWire{
		FinalAmount:    fromTokenAmount(finalAmount),
		Platform:       platform,
		RefundAddress:  refundAddress,
		ExternalOption: externalOption,
		SessionID:      c.sessionID,
	}
	resp, err := doJSON[hydrateResultJSON](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders/%s/hydrate", c.baseURL, encoded), wire, "hydrateOrder")
	if err != nil {
		return nil, err
	}
	return resp.toHydrateResult()
}

type optionListJSON struct {
	Options []paymentOptionJSON `json:"options"`
}

// GetWalletPaymentOptions returns normalized EVM wallet options for a payer.
func (c *Client) GetWalletPaymentOptions(ctx context.Context, payerAddress string, usdRequired decimal.Decimal, destChainID int64) ([]types.PaymentOption, error) {
	u := fmt.Sprintf("%s/api/v1/options/wallet?%s", c.baseURL, url.Values{
		"payerAddress": {payerAddress},
		"usdRequired":  {usdRequired.String()},
		"destChainId":  {fmt.Sprintf("%d", destChainID)},
	}.Encode())
	resp, err := doJSON[optionListJSON](ctx, c.httpClient, http.MethodGet, u, nil, "walletOptions")
	if err != nil {
		return nil, err
	}
	return toOptions(resp.Options, types.RailEVM)
}

// GetSolanaPaymentOptions returns normalized Solana token options for a payer.
func (c *Client) GetSolanaPaymentOptions(ctx context.Context, pubKey string, usdRequired decimal.Decimal) ([]types.PaymentOption, error) {
	u := fmt.Sprintf("%s/api/v1/options/solana?%s", c.baseURL, url.Values{
		"pubKey":      {pubKey},
		"usdRequired": {usdRequired.String()},
	}.Encode())
	resp, err := doJSON[optionListJSON](ctx, c.httpClient, http.MethodGet, u, nil, "solanaOptions")
	if err != nil {
		return nil, err
	}
	return toOptions(resp.Options, types.RailSolana)
}

func toOptions(wire []paymentOptionJSON, rail types.Rail) ([]types.PaymentOption, error) {
	options := make([]types.PaymentOption, 0, len(wire))
	for _, w := range wire {
		option, err := w.toOption(rail)
		if err != nil {
			return nil, err
		}
		options = append(options, option)
	}
	return options, nil
}

type externalOptionsJSON struct {
	Options []types.ExternalOptionMeta `json:"options"`
}

// GetExternalPaymentOptions lists exchange and on-ramp options for the amount.
func (c *Client) GetExternalPaymentOptions(ctx context.Context, usdRequired decimal.Decimal, platform string) ([]types.ExternalOptionMeta, error) {
	u := fmt.Sprintf("%s/api/v1/options/external?%s", c.baseURL, url.Values{
		"usdRequired": {usdRequired.String()},
		"platform":    {platform},
	}.Encode())
	resp, err := doJSON[externalOptionsJSON](ctx, c.httpClient, http.MethodGet, u, nil, "externalOptions")
	if err != nil {
		return nil, err
	}
	return resp.Options, nil
}

type depositOptionsJSON struct {
	Options []types.DepositAddressOptionMeta `json:"options"`
}

// GetDepositAddressOptions lists deposit-address chains for the amount.
func (c *Client) GetDepositAddressOptions(ctx context.Context, usdRequired decimal.Decimal) ([]types.DepositAddressOptionMeta, error) {
	u := fmt.Sprintf("%s/api/v1/options/deposit-address?%s", c.baseURL, url.Values{
		"usdRequired": {usdRequired.String()},
	}.Encode())
	resp, err := doJSON[depositOptionsJSON](ctx, c.httpClient, http.MethodGet, u, nil, "depositAddressOptions")
	if err != nil {
		return nil, err
	}
	return resp.Options, nil
}

// GetDepositAddressOptionData fetches the receive instructions for one
// deposit-address chain.
func (c *Client) GetDepositAddressOptionData(ctx context.Context, optionID string, usdRequired decimal.Decimal, toAddress string) (*types.DepositAddressDetails, error) {
	u := fmt.Sprintf("%s/api/v1/options/deposit-address/%s?%s", c.baseURL, url.PathEscape(optionID), url.Values{
		"usdRequired": {usdRequired.String()},
		"toAddress":   {toAddress},
	}.Encode())
	return doJSON[types.DepositAddressDetails](ctx, c.httpClient, http.MethodGet, u, nil, "depositAddressData")
}

type swapAndBurnTxJSON struct {
	SerializedTx string `json:"serializedTx"` // base64
}

// GetSolanaSwapAndBurnTx asks the backend to build the pre-signed swap-and-burn
// transaction for a Solana input token. Returns the base64-serialized tx.
func (c *Client) GetSolanaSwapAndBurnTx(ctx context.Context, orderID *big.Int, userPublicKey, inputTokenMint string) (string, error) {
	encoded, err := payid.Encode(orderID)
	if err != nil {
		return "", err
	}
	wire := map[string]string{
		"userPublicKey":  userPublicKey,
		"inputTokenMint": inputTokenMint,
	}
	resp, err := doJSON[swapAndBurnTxJSON](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders/%s/solana-swap-and-burn", c.baseURL, encoded), wire, "swapAndBurnTx")
	if err != nil {
		return "", err
	}
	return resp.SerializedTx, nil
}

// SourcePaymentReport describes a source-side payment submitted by the payer.
type SourcePaymentReport struct {
	TxHash       string `json:"txHash"`
	ChainID      int64  `json:"chainId"`
	PayerAddress string `json:"payerAddress"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	SessionID    string `json:"sessionId"`
}

// ProcessSourcePayment reports a submitted EVM source payment for backend
// reconciliation.
func (c *Client) ProcessSourcePayment(ctx context.Context, orderID *big.Int, report SourcePaymentReport) error {
	encoded, err := payid.Encode(orderID)
	if err != nil {
		return err
	}
	report.SessionID = c.sessionID
	_, err = doJSON[struct{}](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders/%s/source-payment", c.baseURL, encoded), report, "processSourcePayment")
	return err
}

// SolanaSourcePaymentReport describes a submitted Solana source payment.
type SolanaSourcePaymentReport struct {
	Signature   string `json:"signature"`
	PayerPubKey string `json:"payerPubKey"`
	TokenMint   string `json:"tokenMint"`
	Amount      string `json:"amount"`
	SessionID   string `json:"sessionId"`
}

// ProcessSolanaSourcePayment reports a submitted Solana source payment.
func (c *Client) ProcessSolanaSourcePayment(ctx context.Context, orderID *big.Int, report SolanaSourcePaymentReport) error {
	encoded, err := payid.Encode(orderID)
	if err != nil {
		return err
	}
	report.SessionID = c.sessionID
	_, err = doJSON[struct{}](ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders/%s/solana-source-payment", c.baseURL, encoded), report, "processSolanaSourcePayment")
	return err
}

type findSourcePaymentJSON struct {
	Found bool `json:"found"`
}

// FindSourcePayment reports whether the backend has observed a source payment
// for the order yet. Used by the waiting loops of rails with no push signal.
func (c *Client) FindSourcePayment(ctx context.Context, orderID *big.Int) (bool, error) {
	encoded, err := payid.Encode(orderID)
	if err != nil {
		return false, err
	}
	resp, err := doJSON[findSourcePaymentJSON](ctx, c.httpClient, http.MethodGet,
		fmt.Sprintf("%s/api/v1/orders/%s/source-payment", c.baseURL, encoded), nil, "findSourcePayment")
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}
