// Package order owns the in-memory payment order: creating previews, loading
// by ID, committing via hydration, refreshing, and polling to completion.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/amount"
	"github.com/railhq/railpay/pkg/api"
	"github.com/railhq/railpay/pkg/constants"
	"github.com/railhq/railpay/pkg/logger"
	"github.com/railhq/railpay/pkg/metrics"
	"github.com/railhq/railpay/pkg/payid"
	"github.com/railhq/railpay/pkg/types"
)

// ErrInvariant wraps violations that indicate a core-integration bug rather
// than a user-facing condition. These halt the operation loudly.
var ErrInvariant = errors.New("invariant violation")

// ErrOrderLocked is returned when a preview-only mutation is attempted on a
// hydrated order.
var ErrOrderLocked = errors.New("order is hydrated and locked")

var validate = validator.New()

var maxOrderID = new(big.Int).Lsh(big.NewInt(1), 256)

// newOrderID draws a random 256-bit order ID. The ID doubles as the
// idempotency key for create and hydrate.
func newOrderID() (*big.Int, error) {
	id, err := rand.Int(rand.Reader, maxOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order id: %w", err)
	}
	return id, nil
}

// Manager holds the single in-memory PaymentOrder and all operations on it.
// The order is replaced wholesale on every update, never mutated in place.
type Manager struct {
	mu       sync.Mutex
	client   *api.Client
	log      logger.Logger
	rec      metrics.Recorder
	platform string

	order *types.PaymentOrder
	// params is set only when the order was born from explicit PayParams and
	// has never been persisted. It selects the create-vs-hydrate path.
	params  *types.PayParams
	created bool
	// watchSource is set for rails that deliver no push signal (external
	// providers, deposit addresses). While the source side is still waiting,
	// the poll loop probes for an observed source payment instead of
	// re-fetching the full order on every tick.
	watchSource bool
}

// NewManager builds an order manager around the given API client.
func NewManager(client *api.Client, log logger.Logger, rec metrics.Recorder) *Manager {
	return &Manager{
		client:   client,
		log:      logger.OrNoop(log),
		rec:      metrics.OrNoop(rec),
		platform: constants.PlatformSDK,
	}
}

// Order returns the current order, or nil if none is set. The returned value
// is never mutated by the manager; updates swap in a fresh instance.
func (m *Manager) Order() *types.PaymentOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order
}

// PayParams returns the originating params, or nil for orders loaded by ID.
func (m *Manager) PayParams() *types.PayParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// InitFromParams validates the caller's pay parameters, generates the order
// ID, and fetches a preview order for them.
func (m *Manager) InitFromParams(ctx context.Context, params *types.PayParams) error {
	if params == nil {
		return fmt.Errorf("%w: nil pay params", ErrInvariant)
	}
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("invalid pay params: %w", err)
	}

	preview, err := m.client.PreviewOrder(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to preview order: %w", err)
	}
	if preview.ID == nil || preview.ID.Sign() == 0 {
		id, err := newOrderID()
		if err != nil {
			return err
		}
		preview.ID = id
	}
	preview.Mode = types.ModePreview

	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
	m.created = false
	m.watchSource = false
	m.order = preview
	return nil
}

// LoadByID decodes a compact pay ID and fetches the order. A backend
// not-found is logged and leaves the order unset: callers treat "still nil
// after load" as the not-found signal. A cache check skips the fetch when the
// in-memory order already has the same ID.
func (m *Manager) LoadByID(ctx context.Context, payID string) error {
	id, err := payid.Decode(payID)
	if err != nil {
		return fmt.Errorf("invalid pay id: %w", err)
	}

	m.mu.Lock()
	if m.order != nil && m.order.ID != nil && m.order.ID.Cmp(id) == 0 {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	fetched, err := m.client.GetOrder(ctx, id)
	if err != nil {
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			m.log.Warn("order not found", map[string]any{"payId": payID})
			return nil
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	m.adopt(fetched)
	return nil
}

// adopt installs a freshly loaded order unless an order with the same ID is
// already present. The guard prevents redundant overwrites when multiple load
// triggers fire close together.
func (m *Manager) adopt(o *types.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order.SameID(o) {
		return
	}
	m.order = o
	m.params = nil
	m.created = false
	m.watchSource = false
}

// replace installs an updated snapshot of the current order.
func (m *Manager) replace(o *types.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = o
}

// CreateOrHydrate commits the order server-side. Orders born from PayParams
// and never persisted go through create-and-hydrate in one step, carrying the
// full original specification; orders loaded by ID hydrate only. The order ID
// makes both paths idempotent: repeating the call returns the same hydrated
// order and never derives a new amount.
func (m *Manager) CreateOrHydrate(ctx context.Context, refundAddress, externalOption string) (*types.HydrateResult, error) {
	m.mu.Lock()
	current := m.order
	params := m.params
	created := m.created
	m.mu.Unlock()

	if current == nil {
		return nil, fmt.Errorf("%w: no order to hydrate", ErrInvariant)
	}

	var result *types.HydrateResult
	var err error
	if params != nil && !created {
		result, err = m.client.CreateOrder(ctx, m.platform, api.CreateOrderRequest{
			Params:         params,
			OrderID:        current.ID,
			FinalAmount:    current.DestinationTokenAmount,
			RefundAddress:  refundAddress,
			ExternalOption: externalOption,
			Metadata:       current.Metadata,
		})
	} else {
		result, err = m.client.HydrateOrder(ctx, current.ID,
			current.DestinationTokenAmount, m.platform, refundAddress, externalOption)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate order: %w", err)
	}
	if result.Order == nil || !result.Order.Hydrated() {
		return nil, fmt.Errorf("%w: hydration returned a non-hydrated order", ErrInvariant)
	}

	m.mu.Lock()
	m.created = true
	m.order = result.Order
	m.mu.Unlock()
	return result, nil
}

// Refresh re-fetches the current order. Idempotent; safe to call on a timer.
func (m *Manager) Refresh(ctx context.Context) error {
	current := m.Order()
	if current == nil {
		return fmt.Errorf("%w: no order to refresh", ErrInvariant)
	}
	fetched, err := m.client.GetOrder(ctx, current.ID)
	if err != nil {
		return err
	}
	m.replace(fetched)
	return nil
}

// SetChosenUSD recomputes the destination token amount from the given USD
// value using the live token price. Used by variable-amount deposit flows;
// the next hydrate call is what commits it server-side. Each call derives
// purely from the price at call time, never from a prior chosen amount.
func (m *Manager) SetChosenUSD(usd decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.order == nil {
		return fmt.Errorf("%w: no order", ErrInvariant)
	}
	if m.order.Hydrated() {
		return ErrOrderLocked
	}

	token := m.order.DestinationTokenAmount.Token
	units, err := amount.UsdToTokenUnits(usd, token, amount.RoundNearest)
	if err != nil {
		return err
	}

	next := m.order.Clone()
	next.DestinationTokenAmount = types.TokenAmount{
		Token:  token,
		Amount: units,
		Usd:    amount.RoundDecimals(usd, constants.USDDisplayDecimals, amount.RoundNearest),
	}
	m.order = next
	return nil
}

// RegeneratePreview discards the current preview and fetches a fresh one from
// the original params under a new order ID. Used when a deposit flow
// abandons a chosen amount: previews are regenerated, not patched.
func (m *Manager) RegeneratePreview(ctx context.Context) error {
	m.mu.Lock()
	params := m.params
	hydrated := m.order.Hydrated()
	m.mu.Unlock()

	if params == nil {
		return fmt.Errorf("%w: cannot regenerate a preview without pay params", ErrInvariant)
	}
	if hydrated {
		return ErrOrderLocked
	}

	preview, err := m.client.PreviewOrder(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to regenerate preview: %w", err)
	}
	id, err := newOrderID()
	if err != nil {
		return err
	}
	preview.ID = id
	preview.Mode = types.ModePreview

	m.replace(preview)
	return nil
}

// FindSourcePayment asks the backend whether a source payment has been
// observed for the current order.
func (m *Manager) FindSourcePayment(ctx context.Context) (bool, error) {
	current := m.Order()
	if current == nil {
		return false, fmt.Errorf("%w: no order", ErrInvariant)
	}
	return m.client.FindSourcePayment(ctx, current.ID)
}

// WatchSourcePayment marks the order as funded through a rail with no push
// signal. The poll loop then waits on FindSourcePayment while the source
// status is still waiting_payment.
func (m *Manager) WatchSourcePayment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchSource = true
}

// WatchingSourcePayment reports whether the source-payment probe is active.
func (m *Manager) WatchingSourcePayment() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchSource
}
