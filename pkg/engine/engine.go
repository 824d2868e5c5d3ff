// Package engine is the payment state machine: the single source of truth for
// what the payer is trying to pay with and whether payment was submitted. It
// drives the per-rail pay operations against the order manager and the host's
// wallets.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/api"
	"github.com/railhq/railpay/pkg/logger"
	"github.com/railhq/railpay/pkg/metrics"
	"github.com/railhq/railpay/pkg/order"
	"github.com/railhq/railpay/pkg/rails"
	"github.com/railhq/railpay/pkg/types"
)

// Engine coordinates selection, hydration, and the rail-specific pay actions.
type Engine struct {
	orders *order.Manager
	client *api.Client
	log    logger.Logger
	rec    metrics.Recorder

	evm    rails.EVMWallet
	solana rails.SolanaWallet
	opener rails.URLOpener

	refundAddress string

	mu sync.Mutex
	// At most one of these is non-nil at any time: selecting an option on any
	// rail clears the others so a stale selection can never feed the wrong
	// pay operation.
	selectedToken   *types.PaymentOption
	selectedSolana  *types.PaymentOption
	selectedExt     *types.PaymentOption
	selectedDeposit *types.PaymentOption

	// waitingMessage and redirectURL are supplied by external-rail hydration
	// for display while the payer completes the off-site flow. The URL is
	// retained even when an opener handles it, so headless hosts can present
	// it themselves.
	waitingMessage string
	redirectURL    string
	depositDetails *types.DepositAddressDetails
}

// Config wires an Engine.
type Config struct {
	Orders        *order.Manager
	Client        *api.Client
	EVMWallet     rails.EVMWallet
	SolanaWallet  rails.SolanaWallet
	URLOpener     rails.URLOpener
	RefundAddress string
	Logger        logger.Logger
	Metrics       metrics.Recorder
}

// New builds the engine. Orders and Client are required; wallets are optional
// capabilities and their rails report unavailable when absent.
func New(cfg Config) (*Engine, error) {
	if cfg.Orders == nil || cfg.Client == nil {
		return nil, fmt.Errorf("%w: engine requires an order manager and api client", order.ErrInvariant)
	}
	return &Engine{
		orders:        cfg.Orders,
		client:        cfg.Client,
		log:           logger.OrNoop(cfg.Logger),
		rec:           metrics.OrNoop(cfg.Metrics),
		evm:           cfg.EVMWallet,
		solana:        cfg.SolanaWallet,
		opener:        cfg.URLOpener,
		refundAddress: cfg.RefundAddress,
	}, nil
}

// Orders exposes the underlying order manager.
func (e *Engine) Orders() *order.Manager {
	return e.orders
}

// SelectTokenOption records an EVM wallet option as the payer's choice.
func (e *Engine) SelectTokenOption(o *types.PaymentOption) {
	e.setSelection(o, nil, nil, nil)
}

// SelectSolanaOption records a Solana token option as the payer's choice.
func (e *Engine) SelectSolanaOption(o *types.PaymentOption) {
	e.setSelection(nil, o, nil, nil)
}

// SelectExternalOption records an external provider as the payer's choice.
func (e *Engine) SelectExternalOption(o *types.PaymentOption) {
	e.setSelection(nil, nil, o, nil)
}

// SelectDepositAddressOption records a deposit-address chain as the choice.
func (e *Engine) SelectDepositAddressOption(o *types.PaymentOption) {
	e.setSelection(nil, nil, nil, o)
}

// ClearSelection drops whatever option was selected.
func (e *Engine) ClearSelection() {
	e.setSelection(nil, nil, nil, nil)
}

func (e *Engine) setSelection(token, sol, ext, deposit *types.PaymentOption) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedToken = token
	e.selectedSolana = sol
	e.selectedExt = ext
	e.selectedDeposit = deposit
}

// SelectedTokenOption returns the selected EVM option, if any.
func (e *Engine) SelectedTokenOption() *types.PaymentOption { return e.selected(&e.selectedToken) }

// SelectedSolanaOption returns the selected Solana option, if any.
func (e *Engine) SelectedSolanaOption() *types.PaymentOption { return e.selected(&e.selectedSolana) }

// SelectedExternalOption returns the selected external option, if any.
func (e *Engine) SelectedExternalOption() *types.PaymentOption { return e.selected(&e.selectedExt) }

// SelectedDepositAddressOption returns the selected deposit option, if any.
func (e *Engine) SelectedDepositAddressOption() *types.PaymentOption {
	return e.selected(&e.selectedDeposit)
}

func (e *Engine) selected(slot **types.PaymentOption) *types.PaymentOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *slot
}

// WaitingMessage returns the external-rail waiting text, if hydration
// supplied one.
func (e *Engine) WaitingMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitingMessage
}

// RedirectURL returns the external provider's payment URL, if hydration
// supplied one.
func (e *Engine) RedirectURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.redirectURL
}

// DepositDetails returns the receive instructions fetched for a
// deposit-address payment, if any.
func (e *Engine) DepositDetails() *types.DepositAddressDetails {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depositDetails
}

// SetChosenUSD updates the order's destination amount for variable-amount
// deposit flows. Fetched options are amount-keyed, so the owner of the option
// service must reset it after a successful change.
func (e *Engine) SetChosenUSD(usd decimal.Decimal) error {
	return e.orders.SetChosenUSD(usd)
}

// totalAmount is what the payer actually sends: required plus fees.
func totalAmount(o *types.PaymentOption) *big.Int {
	total := new(big.Int)
	if o.Required.Amount != nil {
		total.Add(total, o.Required.Amount)
	}
	if o.Fees.Amount != nil {
		total.Add(total, o.Fees.Amount)
	}
	return total
}

// PayWithToken hydrates the order and sends the EVM transfer for exactly
// required+fees to the intent address, then reports the transaction to the
// backend. A wallet chain mismatch triggers exactly one forced chain switch
// and retry; a second failure is terminal for this attempt.
func (e *Engine) PayWithToken(ctx context.Context, option *types.PaymentOption) (string, error) {
	if option == nil || option.Rail != types.RailEVM {
		return "", fmt.Errorf("%w: PayWithToken requires an evm option", order.ErrInvariant)
	}
	if e.evm == nil {
		return "", unavailable(fmt.Errorf("no EVM wallet configured"))
	}
	e.rec.IncCounter(metrics.MetricPayAttempts, map[string]string{"rail": string(types.RailEVM)})

	result, err := e.orders.CreateOrHydrate(ctx, e.refundAddress, "")
	if err != nil {
		return "", failed(err)
	}
	hydrated := result.Order
	if hydrated.IntentAddress == "" {
		return "", fmt.Errorf("%w: hydrated order has no intent address", order.ErrInvariant)
	}

	total := totalAmount(option)
	tx, err := rails.BuildTransfer(option.Required.Token, hydrated.IntentAddress, total)
	if err != nil {
		return "", failed(err)
	}

	payer, err := e.evm.Address()
	if err != nil {
		return "", failed(fmt.Errorf("failed to read wallet address: %w", err))
	}

	hash, err := e.evm.SendTransaction(ctx, tx)
	if rails.IsChainMismatch(err) {
		e.log.Info("chain mismatch, forcing switch and retrying once", map[string]any{
			"wantChainId": tx.ChainID,
		})
		if switchErr := e.evm.SwitchChain(ctx, tx.ChainID); switchErr != nil {
			return "", cancelled(switchErr)
		}
		hash, err = e.evm.SendTransaction(ctx, tx)
	}
	if err != nil {
		if rails.IsUserRejection(err) {
			return "", cancelled(err)
		}
		return "", failed(err)
	}

	report := api.SourcePaymentReport{
		TxHash:       hash.Hex(),
		ChainID:      option.Required.Token.ChainID,
		PayerAddress: payer.Hex(),
		Token:        option.Required.Token.Address,
		Amount:       total.String(),
	}
	if err := e.client.ProcessSourcePayment(ctx, hydrated.ID, report); err != nil {
		// The transfer is on-chain; the backend will also find it by
		// scanning. Log, do not fail the attempt.
		e.log.Warn("failed to report source payment", map[string]any{"error": err.Error()})
	}
	return hash.Hex(), nil
}

// PayWithSolanaToken hydrates the order, requests the backend-built
// swap-and-burn transaction for the chosen input token, has the wallet sign
// and send it, and reports the signature. A rejected signature surfaces as
// cancelled, not failed.
func (e *Engine) PayWithSolanaToken(ctx context.Context, inputTokenMint string) (string, error) {
	if e.solana == nil {
		return "", unavailable(fmt.Errorf("no Solana wallet configured"))
	}
	e.rec.IncCounter(metrics.MetricPayAttempts, map[string]string{"rail": string(types.RailSolana)})

	result, err := e.orders.CreateOrHydrate(ctx, e.refundAddress, "")
	if err != nil {
		return "", failed(err)
	}

	pubKey, err := e.solana.PublicKey()
	if err != nil {
		return "", failed(fmt.Errorf("failed to read solana pubkey: %w", err))
	}

	serialized, err := e.client.GetSolanaSwapAndBurnTx(ctx, result.Order.ID, pubKey.String(), inputTokenMint)
	if err != nil {
		return "", failed(err)
	}
	tx, err := rails.DecodeSolanaTransaction(serialized)
	if err != nil {
		return "", failed(err)
	}

	sig, err := e.solana.SignAndSend(ctx, tx)
	if err != nil {
		if rails.IsUserRejection(err) {
			return "", cancelled(err)
		}
		return "", failed(err)
	}

	amount := "0"
	if selected := e.SelectedSolanaOption(); selected != nil {
		amount = totalAmount(selected).String()
	}
	report := api.SolanaSourcePaymentReport{
		Signature:   sig.String(),
		PayerPubKey: pubKey.String(),
		TokenMint:   inputTokenMint,
		Amount:      amount,
	}
	if err := e.client.ProcessSolanaSourcePayment(ctx, result.Order.ID, report); err != nil {
		e.log.Warn("failed to report solana source payment", map[string]any{"error": err.Error()})
	}
	return sig.String(), nil
}

// PayWithExternal hydrates the order with the external option tag, opens the
// provider's redirect URL, and leaves the order in a polling wait state. The
// hydration response's waiting message is retained for display.
func (e *Engine) PayWithExternal(ctx context.Context, optionID string) error {
	if optionID == "" {
		return fmt.Errorf("%w: external option id is required", order.ErrInvariant)
	}
	e.rec.IncCounter(metrics.MetricPayAttempts, map[string]string{"rail": string(types.RailExternal)})

	result, err := e.orders.CreateOrHydrate(ctx, e.refundAddress, optionID)
	if err != nil {
		return failed(err)
	}
	if result.ExternalData == nil || result.ExternalData.RedirectURL == "" {
		return unavailable(fmt.Errorf("external option %s returned no redirect", optionID))
	}

	e.mu.Lock()
	e.waitingMessage = result.ExternalData.WaitingMessage
	e.redirectURL = result.ExternalData.RedirectURL
	e.mu.Unlock()

	// External providers deliver no push signal; the poll loop waits on the
	// source-payment probe from here.
	e.orders.WatchSourcePayment()

	if e.opener != nil {
		if err := e.opener.OpenURL(result.ExternalData.RedirectURL); err != nil {
			return failed(fmt.Errorf("failed to open external payment url: %w", err))
		}
	}
	return nil
}

// PayWithDepositAddress hydrates the order and fetches the rail-specific
// receive details for the chosen chain. Failure to obtain details is terminal
// for that rail: it is unavailable, pick another.
func (e *Engine) PayWithDepositAddress(ctx context.Context, optionID string) (*types.DepositAddressDetails, error) {
	if optionID == "" {
		return nil, fmt.Errorf("%w: deposit option id is required", order.ErrInvariant)
	}
	e.rec.IncCounter(metrics.MetricPayAttempts, map[string]string{"rail": string(types.RailDepositAddress)})

	result, err := e.orders.CreateOrHydrate(ctx, e.refundAddress, "")
	if err != nil {
		return nil, failed(err)
	}

	details, err := e.client.GetDepositAddressOptionData(ctx, optionID,
		result.Order.DestinationTokenAmount.Usd, result.Order.IntentAddress)
	if err != nil {
		return nil, unavailable(fmt.Errorf("deposit option %s unavailable: %w", optionID, err))
	}

	e.mu.Lock()
	e.depositDetails = details
	e.mu.Unlock()

	// Deposit chains deliver no push signal either; wait on the probe.
	e.orders.WatchSourcePayment()
	return details, nil
}
