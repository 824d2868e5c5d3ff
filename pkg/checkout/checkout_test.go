package checkout

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railhq/railpay/pkg/payid"
	"github.com/railhq/railpay/pkg/types"
)

type orderState struct {
	mu           sync.Mutex
	mode         string
	sourceStatus string
	destStatus   string
	intentStatus string
}

// orderServer serves a preview endpoint and a get-order endpoint whose
// statuses advance one step per fetch.
func orderServer(t *testing.T, state *orderState, steps []func(*orderState)) *httptest.Server {
	t.Helper()
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()

		switch {
		case r.URL.Path == "/api/v1/orders/preview":
			// preview orders carry no status fields
		case strings.HasPrefix(r.URL.Path, "/api/v1/orders/"):
			if fetches < len(steps) {
				steps[fetches](state)
				fetches++
			}
		default:
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"id":   "777",
			"mode": state.mode,
			"destinationTokenAmount": map[string]any{
				"token": map[string]any{
					"chainId":  8453,
					"address":  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
					"symbol":   "USDC",
					"decimals": 6, "displayDecimals": 2,
					"usdPrice": "1",
				},
				"amount": "120000",
				"usd":    "0.12",
			},
			"destinationAddress": "0x000000000000000000000000000000000000dEaD",
			"intentAddress":      "0x1111111111111111111111111111111111111111",
			"sourceStatus":       state.sourceStatus,
			"destStatus":         state.destStatus,
			"intentStatus":       state.intentStatus,
		})
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, apiURL string) *Provider {
	t.Helper()
	provider, err := NewProvider(Config{AppID: "demo-app", APIURL: apiURL})
	require.NoError(t, err)
	t.Cleanup(provider.Close)
	return provider
}

func testParams() *types.PayParams {
	return &types.PayParams{
		ToChain:   8453,
		ToToken:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ToAmount:  big.NewInt(120000),
		ToAddress: "0x000000000000000000000000000000000000dEaD",
	}
}

func TestProviderSingleInit(t *testing.T) {
	first, err := NewProvider(Config{AppID: "demo-app"})
	require.NoError(t, err)

	_, err = NewProvider(Config{AppID: "demo-app"})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	first.Close()

	second, err := NewProvider(Config{AppID: "demo-app"})
	require.NoError(t, err)
	second.Close()
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(Config{})
	require.Error(t, err)

	_, err = NewProvider(Config{AppID: "demo-app", APIURL: "not a url"})
	require.Error(t, err)
}

func TestNewButtonFromParams(t *testing.T) {
	server := orderServer(t, &orderState{mode: "preview"}, nil)
	provider := newTestProvider(t, server.URL)

	button, err := provider.NewButton(context.Background(), ButtonConfig{Params: testParams()})
	require.NoError(t, err)

	status, payID := button.Status()
	assert.Equal(t, StatusPaymentPending, status)
	assert.NotEmpty(t, payID)

	decoded, err := payid.Decode(payID)
	require.NoError(t, err)
	assert.Equal(t, int64(777), decoded.Int64())
}

func TestNewButtonRequiresExactlyOneSource(t *testing.T) {
	server := orderServer(t, &orderState{mode: "preview"}, nil)
	provider := newTestProvider(t, server.URL)

	_, err := provider.NewButton(context.Background(), ButtonConfig{})
	require.Error(t, err)

	encoded, err := payid.Encode(big.NewInt(777))
	require.NoError(t, err)
	_, err = provider.NewButton(context.Background(), ButtonConfig{Params: testParams(), PayID: encoded})
	require.Error(t, err)
}

func TestWatchFiresCallbacksOnce(t *testing.T) {
	state := &orderState{
		mode:         "hydrated",
		sourceStatus: "pending_processing",
		destStatus:   "pending",
		intentStatus: "pending",
	}
	steps := []func(*orderState){
		func(s *orderState) {}, // initial load by ID
		func(s *orderState) { s.sourceStatus = "processed" },
		func(s *orderState) { s.destStatus = "fast_finish_successful" },
	}
	server := orderServer(t, state, steps)
	provider := newTestProvider(t, server.URL)

	var mu sync.Mutex
	var startedCalls, completedCalls, bouncedCalls int

	encoded, err := payid.Encode(big.NewInt(777))
	require.NoError(t, err)

	button, err := provider.NewButton(context.Background(), ButtonConfig{
		PayID: encoded,
		OnPaymentStarted: func(payID string) {
			mu.Lock()
			startedCalls++
			mu.Unlock()
			assert.Equal(t, encoded, payID)
		},
		OnPaymentCompleted: func(o *types.PaymentOrder) {
			mu.Lock()
			completedCalls++
			mu.Unlock()
			assert.True(t, o.DestStatus.Fulfilled())
		},
		OnPaymentBounced: func(o *types.PaymentOrder) {
			mu.Lock()
			bouncedCalls++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, button.Watch(ctx))

	status, _ := button.Status()
	assert.Equal(t, StatusPaymentCompleted, status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, startedCalls)
	assert.Equal(t, 1, completedCalls)
	assert.Equal(t, 0, bouncedCalls)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name  string
		order types.PaymentOrder
		want  Status
	}{
		{"preview", types.PaymentOrder{Mode: types.ModePreview}, StatusPaymentPending},
		{"hydrated waiting", types.PaymentOrder{
			Mode: types.ModeHydrated, SourceStatus: types.SourceStatusWaitingPayment,
		}, StatusPaymentPending},
		{"source in flight", types.PaymentOrder{
			Mode: types.ModeHydrated, SourceStatus: types.SourceStatusPendingProcessing,
		}, StatusPaymentStarted},
		{"fast finish submitted", types.PaymentOrder{
			Mode: types.ModeHydrated, DestStatus: types.DestStatusFastFinishSubmitted,
		}, StatusPaymentCompleted},
		{"claim success", types.PaymentOrder{
			Mode: types.ModeHydrated, DestStatus: types.DestStatusClaimSuccess,
		}, StatusPaymentCompleted},
		{"refunded", types.PaymentOrder{
			Mode: types.ModeHydrated, IntentStatus: types.IntentStatusRefunded,
		}, StatusPaymentBounced},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.order
			assert.Equal(t, statusOf(&o), tc.want)
		})
	}
}
