// Package checkout is the public surface of the SDK: a Provider configured
// once per application, and Buttons that each own one payment order end to
// end.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/api"
	"github.com/railhq/railpay/pkg/engine"
	"github.com/railhq/railpay/pkg/logger"
	"github.com/railhq/railpay/pkg/metrics"
	"github.com/railhq/railpay/pkg/options"
	"github.com/railhq/railpay/pkg/order"
	"github.com/railhq/railpay/pkg/payid"
	"github.com/railhq/railpay/pkg/rails"
	"github.com/railhq/railpay/pkg/router"
	"github.com/railhq/railpay/pkg/types"
)

// Status is the coarse payment lifecycle state exposed to the host app.
type Status string

const (
	StatusPaymentPending   Status = "payment_pending"
	StatusPaymentStarted   Status = "payment_started"
	StatusPaymentCompleted Status = "payment_completed"
	StatusPaymentBounced   Status = "payment_bounced"
)

// ErrAlreadyInitialized is returned when a second Provider is constructed
// while one is live. The SDK holds per-app state (session correlation, wallet
// adapters) that must not be duplicated.
var ErrAlreadyInitialized = errors.New("checkout provider already initialized")

var validate = validator.New()

var providerLive atomic.Bool

// Config is the application-level SDK configuration, validated once at
// Provider construction.
type Config struct {
	// AppID identifies the merchant application to the order API.
	AppID string `validate:"required"`
	// APIURL overrides the production order API; empty means the default.
	APIURL string `validate:"omitempty,url"`

	// PaymentOptions restricts the external providers offered. Nil means all.
	PaymentOptions  []string
	PreferredChains []int64
	PreferredTokens []string
	// SupportedChains is the host wallet's chain allowlist; nil accepts all.
	SupportedChains []int64

	RefundAddress string

	EVMWallet    rails.EVMWallet
	SolanaWallet rails.SolanaWallet
	URLOpener    rails.URLOpener

	// ChainUnsupported reports a live wallet-on-wrong-chain condition. With
	// EnforceChainSupport set, checkout close is disabled while it holds.
	ChainUnsupported    func() bool
	EnforceChainSupport bool

	Logger  logger.Logger
	Metrics metrics.Recorder
}

// Provider is the per-application entry point. Construct exactly one.
type Provider struct {
	cfg    Config
	client *api.Client
	log    logger.Logger
	rec    metrics.Recorder
}

// NewProvider validates the config and claims the process-wide provider slot.
// Release it with Close before constructing another.
func NewProvider(cfg Config) (*Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid checkout config: %w", err)
	}
	if !providerLive.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}
	log := logger.OrNoop(cfg.Logger)
	return &Provider{
		cfg:    cfg,
		client: api.NewClient(cfg.APIURL, log),
		log:    log,
		rec:    metrics.OrNoop(cfg.Metrics),
	}, nil
}

// Close releases the provider slot.
func (p *Provider) Close() {
	providerLive.Store(false)
}

// ButtonConfig describes one checkout button. Exactly one of Params or PayID
// must be set: Params starts a fresh order, PayID resumes an existing one.
type ButtonConfig struct {
	Params *types.PayParams
	PayID  string

	// OnPaymentStarted fires once when the source payment is in flight.
	OnPaymentStarted func(payID string)
	// OnPaymentCompleted fires once when the destination side is fulfilled.
	OnPaymentCompleted func(o *types.PaymentOrder)
	// OnPaymentBounced fires once if the payment is refunded instead.
	OnPaymentBounced func(o *types.PaymentOrder)
}

// Button owns one payment order and the machinery around it.
type Button struct {
	provider *Provider
	orders   *order.Manager
	engine   *engine.Engine
	options  *options.Service
	routes   *router.Controller

	cfg ButtonConfig

	mu        sync.Mutex
	status    Status
	started   bool
	completed bool
	bounced   bool
}

// NewButton builds a button and resolves its order: previews fresh params or
// loads an existing order by pay ID.
func (p *Provider) NewButton(ctx context.Context, cfg ButtonConfig) (*Button, error) {
	if (cfg.Params == nil) == (cfg.PayID == "") {
		return nil, fmt.Errorf("%w: exactly one of Params or PayID must be set", order.ErrInvariant)
	}

	orders := order.NewManager(p.client, p.log, p.rec)
	eng, err := engine.New(engine.Config{
		Orders:        orders,
		Client:        p.client,
		EVMWallet:     p.cfg.EVMWallet,
		SolanaWallet:  p.cfg.SolanaWallet,
		URLOpener:     p.cfg.URLOpener,
		RefundAddress: p.cfg.RefundAddress,
		Logger:        p.log,
		Metrics:       p.rec,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Params != nil {
		params := *cfg.Params
		if params.AppID == "" {
			params.AppID = p.cfg.AppID
		}
		if err := orders.InitFromParams(ctx, &params); err != nil {
			return nil, err
		}
	} else {
		if err := orders.LoadByID(ctx, cfg.PayID); err != nil {
			return nil, err
		}
		if orders.Order() == nil {
			return nil, fmt.Errorf("order %s not found", cfg.PayID)
		}
	}

	b := &Button{
		provider: p,
		orders:   orders,
		engine:   eng,
		options:  options.NewService(p.client, p.cfg.SupportedChains, p.cfg.PreferredChains, p.cfg.PreferredTokens, p.log, p.rec),
		routes:   router.NewController(eng, p.cfg.ChainUnsupported, p.cfg.EnforceChainSupport),
		cfg:      cfg,
		status:   StatusPaymentPending,
	}
	b.observe(orders.Order())
	return b, nil
}

// Engine exposes the payment state machine.
func (b *Button) Engine() *engine.Engine { return b.engine }

// Options exposes the option service.
func (b *Button) Options() *options.Service { return b.options }

// Routes exposes the screen controller.
func (b *Button) Routes() *router.Controller { return b.routes }

// AllowedPaymentOptions returns the configured external-provider allowlist.
func (b *Button) AllowedPaymentOptions() []string {
	return b.provider.cfg.PaymentOptions
}

// PayID returns the compact encoding of the order ID, or "" before an order
// exists.
func (b *Button) PayID() string {
	o := b.orders.Order()
	if o == nil || o.ID == nil {
		return ""
	}
	encoded, err := payid.Encode(o.ID)
	if err != nil {
		return ""
	}
	return encoded
}

// Status returns the coarse lifecycle state and the pay ID.
func (b *Button) Status() (Status, string) {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	return status, b.PayID()
}

// SetChosenUSD updates the variable-amount order and resets fetched options,
// which are keyed by amount and stale the moment it changes.
func (b *Button) SetChosenUSD(usd decimal.Decimal) error {
	if err := b.engine.SetChosenUSD(usd); err != nil {
		return err
	}
	b.options.Reset()
	return nil
}

// Watch polls the order until it reaches a terminal state or ctx is
// cancelled, firing the lifecycle callbacks along the way.
func (b *Button) Watch(ctx context.Context) error {
	return b.orders.Poll(ctx, b.observe)
}

// observe derives the coarse status from an order snapshot and fires each
// lifecycle callback at most once.
func (b *Button) observe(o *types.PaymentOrder) {
	if o == nil {
		return
	}

	b.mu.Lock()
	b.status = statusOf(o)
	fireStarted := b.status != StatusPaymentPending && !b.started
	if fireStarted {
		b.started = true
	}
	fireCompleted := b.status == StatusPaymentCompleted && !b.completed
	if fireCompleted {
		b.completed = true
	}
	fireBounced := b.status == StatusPaymentBounced && !b.bounced
	if fireBounced {
		b.bounced = true
	}
	b.mu.Unlock()

	if fireStarted && b.cfg.OnPaymentStarted != nil {
		b.cfg.OnPaymentStarted(b.PayID())
	}
	if fireCompleted && b.cfg.OnPaymentCompleted != nil {
		b.cfg.OnPaymentCompleted(o)
	}
	if fireBounced && b.cfg.OnPaymentBounced != nil {
		b.cfg.OnPaymentBounced(o)
	}
}

func statusOf(o *types.PaymentOrder) Status {
	switch {
	case o.IntentStatus == types.IntentStatusRefunded:
		return StatusPaymentBounced
	case o.DestStatus.Fulfilled() || o.IntentStatus == types.IntentStatusSuccessful:
		return StatusPaymentCompleted
	case o.Hydrated() && o.SourceStatus != "" && o.SourceStatus != types.SourceStatusWaitingPayment:
		return StatusPaymentStarted
	default:
		return StatusPaymentPending
	}
}
