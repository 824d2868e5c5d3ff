// Package options fetches and normalizes payment options across rails. Each
// rail's result set is keyed by the query that triggered it, so responses
// that arrive after the payer changed identity or amount are discarded
// instead of clobbering a fresher list.
package options

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railhq/railpay/pkg/api"
	"github.com/railhq/railpay/pkg/constants"
	"github.com/railhq/railpay/pkg/logger"
	"github.com/railhq/railpay/pkg/metrics"
	"github.com/railhq/railpay/pkg/types"
)

// LoadState distinguishes "not asked yet" from "asked, empty answer". Screens
// render a skeleton for the former and an insufficient-balance message for
// the latter.
type LoadState int

const (
	StateNotLoaded LoadState = iota
	StateLoading
	StateLoaded
)

// Query is the identity-and-amount key a fetch runs under.
type Query struct {
	PayerAddress string
	SolanaPubKey string
	UsdRequired  decimal.Decimal
	DestChainID  int64
}

func (q Query) key() string {
	return fmt.Sprintf("%s|%s|%s|%d", q.PayerAddress, q.SolanaPubKey, q.UsdRequired.String(), q.DestChainID)
}

// RailOptions is one rail's current result set.
type RailOptions struct {
	State   LoadState
	Options []types.PaymentOption
}

type railState struct {
	key     string
	state   LoadState
	options []types.PaymentOption
}

// Service normalizes rail-specific balance and quote data into uniform
// PaymentOptions.
type Service struct {
	mu     sync.Mutex
	client *api.Client
	log    logger.Logger
	rec    metrics.Recorder

	// supportedChains is the host app's wallet chain configuration. Options
	// on other chains are dropped before display.
	supportedChains map[int64]bool
	preferredChains []int64
	preferredTokens []string

	wallet  railState
	solana  railState
	ext     railState
	deposit railState
}

// NewService builds an option service. supportedChains may be nil, meaning
// every chain is accepted.
func NewService(client *api.Client, supportedChains []int64, preferredChains []int64, preferredTokens []string, log logger.Logger, rec metrics.Recorder) *Service {
	var supported map[int64]bool
	if supportedChains != nil {
		supported = make(map[int64]bool, len(supportedChains))
		for _, id := range supportedChains {
			supported[id] = true
		}
	}
	return &Service{
		client:          client,
		log:             logger.OrNoop(log),
		rec:             metrics.OrNoop(rec),
		supportedChains: supported,
		preferredChains: preferredChains,
		preferredTokens: preferredTokens,
	}
}

// Reset clears every rail back to not-loaded. Called when the order amount
// changes: options are replaced wholesale, never patched.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = railState{}
	s.solana = railState{}
	s.ext = railState{}
	s.deposit = railState{}
}

// FetchWalletOptions loads EVM wallet options for the query. Requires payer
// address and destination chain; without them the rail stays not-loaded.
func (s *Service) FetchWalletOptions(ctx context.Context, q Query) error {
	if q.PayerAddress == "" || q.DestChainID == 0 {
		return nil
	}
	return s.fetch(ctx, &s.wallet, q, string(types.RailEVM), func() ([]types.PaymentOption, error) {
		opts, err := s.client.GetWalletPaymentOptions(ctx, q.PayerAddress, q.UsdRequired, q.DestChainID)
		if err != nil {
			return nil, err
		}
		return s.filterSupported(opts), nil
	})
}

// FetchSolanaOptions loads Solana token options for the query. Requires a
// connected Solana pubkey.
func (s *Service) FetchSolanaOptions(ctx context.Context, q Query) error {
	if q.SolanaPubKey == "" {
		return nil
	}
	return s.fetch(ctx, &s.solana, q, string(types.RailSolana), func() ([]types.PaymentOption, error) {
		return s.client.GetSolanaPaymentOptions(ctx, q.SolanaPubKey, q.UsdRequired)
	})
}

// FetchExternalOptions loads exchange/on-ramp options for the amount.
func (s *Service) FetchExternalOptions(ctx context.Context, q Query, allowed []string) error {
	return s.fetch(ctx, &s.ext, q, string(types.RailExternal), func() ([]types.PaymentOption, error) {
		metas, err := s.client.GetExternalPaymentOptions(ctx, q.UsdRequired, constants.PlatformSDK)
		if err != nil {
			return nil, err
		}
		allowedSet := toSet(allowed)
		opts := make([]types.PaymentOption, 0, len(metas))
		for i := range metas {
			meta := metas[i]
			if allowedSet != nil && !allowedSet[meta.ID] {
				continue
			}
			opts = append(opts, types.PaymentOption{
				Rail:       types.RailExternal,
				Required:   types.TokenAmount{Usd: q.UsdRequired},
				MinimumUsd: meta.MinimumUsd,
				External:   &meta,
			})
		}
		return opts, nil
	})
}

// FetchDepositAddressOptions loads deposit-address chains for the amount.
func (s *Service) FetchDepositAddressOptions(ctx context.Context, q Query) error {
	return s.fetch(ctx, &s.deposit, q, string(types.RailDepositAddress), func() ([]types.PaymentOption, error) {
		metas, err := s.client.GetDepositAddressOptions(ctx, q.UsdRequired)
		if err != nil {
			return nil, err
		}
		opts := make([]types.PaymentOption, 0, len(metas))
		for i := range metas {
			meta := metas[i]
			opts = append(opts, types.PaymentOption{
				Rail:           types.RailDepositAddress,
				Required:       types.TokenAmount{Usd: q.UsdRequired},
				MinimumUsd:     meta.MinimumUsd,
				DepositAddress: &meta,
			})
		}
		return opts, nil
	})
}

// fetch runs one rail load under the query key. A result for a key that is no
// longer current is discarded: the payer has already moved on.
func (s *Service) fetch(ctx context.Context, rail *railState, q Query, railName string, load func() ([]types.PaymentOption, error)) error {
	key := q.key()

	s.mu.Lock()
	rail.key = key
	rail.state = StateLoading
	s.mu.Unlock()

	start := time.Now()
	opts, err := load()
	s.rec.ObserveLatency(metrics.MetricOptionFetches, time.Since(start), map[string]string{"rail": railName})

	s.mu.Lock()
	defer s.mu.Unlock()
	if rail.key != key {
		s.log.Debug("discarding stale option fetch", map[string]any{"rail": railName, "key": key})
		return nil
	}
	if err != nil {
		// Back to not-loaded means no options either; a stale list must not
		// survive under a state that says nothing was asked.
		rail.state = StateNotLoaded
		rail.options = nil
		return fmt.Errorf("failed to fetch %s options: %w", railName, err)
	}

	s.sortOptions(opts)
	rail.state = StateLoaded
	rail.options = opts
	return nil
}

// filterSupported drops options on chains the host wallet configuration
// cannot reach. The count is logged for diagnostics, not surfaced.
func (s *Service) filterSupported(opts []types.PaymentOption) []types.PaymentOption {
	if s.supportedChains == nil {
		return opts
	}
	kept := opts[:0]
	dropped := 0
	for _, o := range opts {
		if s.supportedChains[o.Required.Token.ChainID] {
			kept = append(kept, o)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Debug("dropped options on unsupported chains", map[string]any{"count": dropped})
	}
	return kept
}

// sortOptions ranks preferred chains/tokens first, preserves backend order
// otherwise, and moves unselectable options to the end regardless of
// preference.
func (s *Service) sortOptions(opts []types.PaymentOption) {
	preferredChain := make(map[int64]bool, len(s.preferredChains))
	for _, id := range s.preferredChains {
		preferredChain[id] = true
	}
	preferredToken := toSet(s.preferredTokens)

	rank := func(o types.PaymentOption) int {
		// Balance-backed rails gate on full selectability; quote-only rails
		// have no visible balance, so only the minimum applies.
		enabled := o.MeetsMinimum()
		if o.Rail == types.RailEVM || o.Rail == types.RailSolana {
			enabled = o.Selectable()
		}
		if !enabled {
			return 2
		}
		if preferredChain[o.Required.Token.ChainID] || (preferredToken != nil && preferredToken[o.Required.Token.Symbol]) {
			return 0
		}
		return 1
	}

	sort.SliceStable(opts, func(i, j int) bool {
		return rank(opts[i]) < rank(opts[j])
	})
}

func toSet(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// WalletOptions returns the EVM rail's current result set.
func (s *Service) WalletOptions() RailOptions { return s.snapshot(&s.wallet) }

// SolanaOptions returns the Solana rail's current result set.
func (s *Service) SolanaOptions() RailOptions { return s.snapshot(&s.solana) }

// ExternalOptions returns the external rail's current result set.
func (s *Service) ExternalOptions() RailOptions { return s.snapshot(&s.ext) }

// DepositAddressOptions returns the deposit-address rail's current result set.
func (s *Service) DepositAddressOptions() RailOptions { return s.snapshot(&s.deposit) }

func (s *Service) snapshot(rail *railState) RailOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RailOptions{
		State:   rail.state,
		Options: append([]types.PaymentOption(nil), rail.options...),
	}
}
