package router

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railhq/railpay/pkg/api"
	"github.com/railhq/railpay/pkg/engine"
	"github.com/railhq/railpay/pkg/order"
	"github.com/railhq/railpay/pkg/types"
)

func previewServer(t *testing.T) *httptest.Server {
	t.Helper()
	var previews int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/orders/preview":
			previews++
			w.Header().Set("Content-Type", "application/json")
			err := json.NewEncoder(w).Encode(map[string]any{
				"id":   "12345",
				"mode": "preview",
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
			})
			require.NoError(t, err)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestEngine(t *testing.T, depositFlow bool) *engine.Engine {
	t.Helper()
	server := previewServer(t)
	client := api.NewClient(server.URL, nil)
	orders := order.NewManager(client, nil, nil)

	params := &types.PayParams{
		AppID:         "demo-app",
		ToChain:       8453,
		ToToken:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ToAmount:      big.NewInt(120000),
		ToAddress:     "0x000000000000000000000000000000000000dEaD",
		IsDepositFlow: depositFlow,
	}
	require.NoError(t, orders.InitFromParams(context.Background(), params))

	eng, err := engine.New(engine.Config{Orders: orders, Client: client})
	require.NoError(t, err)
	return eng
}

func evmOption() *types.PaymentOption {
	return &types.PaymentOption{
		Rail: types.RailEVM,
		Required: types.TokenAmount{
			Token:  types.Token{ChainID: 8453, Symbol: "USDC", Decimals: 6},
			Amount: big.NewInt(120000),
		},
	}
}

func TestNextTransitions(t *testing.T) {
	withOrder := Snapshot{HasOrder: true}

	tests := []struct {
		name    string
		from    Route
		event   Event
		snap    Snapshot
		want    Route
		wantErr bool
	}{
		{"evm method", RouteSelectMethod, EventChooseEVM, withOrder, RouteSelectToken, false},
		{"solana method", RouteSelectMethod, EventChooseSolana, withOrder, RouteSolanaConnect, false},
		{"deposit method", RouteSelectMethod, EventChooseDepositAddress, withOrder, RouteSelectDepositAddressChain, false},
		{"external fixed amount", RouteSelectMethod, EventChooseExternal, withOrder, RouteWaitingExternal, false},
		{"external deposit flow", RouteSelectMethod, EventChooseExternal, Snapshot{HasOrder: true, IsDepositFlow: true}, RouteSelectExternalAmount, false},
		{"no order yet", RouteSelectMethod, EventChooseEVM, Snapshot{}, RouteSelectMethod, true},
		{"token picked", RouteSelectToken, EventOptionSelected, Snapshot{HasOrder: true, SelectedRail: types.RailEVM}, RoutePayWithToken, false},
		{"token picked deposit flow", RouteSelectToken, EventOptionSelected, Snapshot{HasOrder: true, IsDepositFlow: true, SelectedRail: types.RailEVM}, RouteSelectAmount, false},
		{"token picked wrong rail", RouteSelectToken, EventOptionSelected, Snapshot{HasOrder: true, SelectedRail: types.RailSolana}, RouteSelectToken, true},
		{"solana token picked", RouteSolanaConnect, EventOptionSelected, Snapshot{HasOrder: true, SelectedRail: types.RailSolana}, RoutePayWithSolanaToken, false},
		{"deposit chain picked", RouteSelectDepositAddressChain, EventOptionSelected, Snapshot{HasOrder: true, SelectedRail: types.RailDepositAddress}, RouteWaitingDepositAddress, false},
		{"external amount confirmed", RouteSelectExternalAmount, EventAmountConfirmed, withOrder, RouteWaitingExternal, false},
		{"deposit amount confirmed", RouteSelectAmount, EventAmountConfirmed, Snapshot{HasOrder: true, SelectedRail: types.RailEVM}, RoutePayWithToken, false},
		{"fulfilled from waiting", RouteWaitingExternal, EventOrderFulfilled, Snapshot{HasOrder: true, DestFulfilled: true}, RouteConfirmation, false},
		{"fulfilled from pay screen", RoutePayWithToken, EventOrderFulfilled, Snapshot{HasOrder: true, DestFulfilled: true}, RouteConfirmation, false},
		{"fulfilled event without fulfillment", RoutePayWithToken, EventOrderFulfilled, withOrder, RoutePayWithToken, true},
		{"no transition from terminal", RouteConfirmation, EventChooseEVM, withOrder, RouteConfirmation, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.from, tc.event, tc.snap)
			if tc.wantErr {
				require.Error(t, err)
				var noTransition *ErrNoTransition
				require.ErrorAs(t, err, &noTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBackTargets(t *testing.T) {
	_, ok := BackTarget(RouteSelectMethod)
	assert.False(t, ok, "initial route must not be back-navigable")

	_, ok = BackTarget(RouteConfirmation)
	assert.False(t, ok, "terminal route must not be back-navigable")

	target, ok := BackTarget(RoutePayWithToken)
	require.True(t, ok)
	assert.Equal(t, RouteSelectToken, target)

	target, ok = BackTarget(RouteWaitingDepositAddress)
	require.True(t, ok)
	assert.Equal(t, RouteSelectDepositAddressChain, target)
}

func TestBackFromPayScreenClearsSelection(t *testing.T) {
	eng := newTestEngine(t, false)
	ctrl := NewController(eng, nil, false)

	require.NoError(t, ctrl.Go(EventChooseEVM))
	require.Equal(t, RouteSelectToken, ctrl.Current())

	eng.SelectTokenOption(evmOption())
	require.NoError(t, ctrl.Go(EventOptionSelected))
	require.Equal(t, RoutePayWithToken, ctrl.Current())

	require.NoError(t, ctrl.Back(context.Background()))
	assert.Equal(t, RouteSelectToken, ctrl.Current())
	assert.Nil(t, eng.SelectedTokenOption(), "back from the pay screen must clear the selection")
}

func TestBackFromInitialRouteFails(t *testing.T) {
	eng := newTestEngine(t, false)
	ctrl := NewController(eng, nil, false)

	require.Error(t, ctrl.Back(context.Background()))
	assert.Equal(t, RouteSelectMethod, ctrl.Current())
}

func TestDepositFlowBackRegeneratesPreview(t *testing.T) {
	eng := newTestEngine(t, true)
	ctrl := NewController(eng, nil, false)

	before := eng.Orders().Order()
	require.NotNil(t, before)

	require.NoError(t, ctrl.Go(EventChooseEVM))
	eng.SelectTokenOption(evmOption())
	require.NoError(t, ctrl.Go(EventOptionSelected))
	require.Equal(t, RouteSelectAmount, ctrl.Current())

	require.NoError(t, ctrl.Back(context.Background()))
	assert.Equal(t, RouteSelectToken, ctrl.Current())
	assert.Nil(t, eng.SelectedTokenOption())

	after := eng.Orders().Order()
	require.NotNil(t, after)
	assert.False(t, before.SameID(after), "abandoning the amount screen must regenerate the preview order")
}

func TestCloseDisabled(t *testing.T) {
	eng := newTestEngine(t, false)

	unsupported := true
	ctrl := NewController(eng, func() bool { return unsupported }, true)
	assert.True(t, ctrl.CloseDisabled())

	unsupported = false
	assert.False(t, ctrl.CloseDisabled())

	// Without enforcement the flag is ignored entirely.
	relaxed := NewController(eng, func() bool { return true }, false)
	assert.False(t, relaxed.CloseDisabled())
}
