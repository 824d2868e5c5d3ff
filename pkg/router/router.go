// Package router maps (current screen, event, payment-state snapshot) to the
// next screen. Transitions are pure; the Controller adds the side effects
// back-navigation requires (clearing selections, regenerating previews).
package router

import (
	"context"
	"fmt"

	"github.com/railhq/railpay/pkg/engine"
	"github.com/railhq/railpay/pkg/types"
)

// Route names one screen of the checkout flow.
type Route string

const (
	RouteSelectMethod              Route = "SELECT_METHOD"
	RouteSelectToken               Route = "SELECT_TOKEN"
	RouteSolanaConnect             Route = "SOLANA_CONNECT"
	RouteSelectDepositAddressChain Route = "SELECT_DEPOSIT_ADDRESS_CHAIN"
	RouteSelectExternalAmount      Route = "SELECT_EXTERNAL_AMOUNT"
	RouteSelectAmount              Route = "SELECT_AMOUNT"
	RoutePayWithToken              Route = "PAY_WITH_TOKEN"
	RoutePayWithSolanaToken        Route = "PAY_WITH_SOLANA_TOKEN"
	RouteWaitingDepositAddress     Route = "WAITING_DEPOSIT_ADDRESS"
	RouteWaitingExternal           Route = "WAITING_EXTERNAL"
	RouteConfirmation              Route = "CONFIRMATION"
)

// Event is a navigation trigger, either a user choice or a payment-state
// change.
type Event string

const (
	EventChooseEVM            Event = "choose_evm"
	EventChooseSolana         Event = "choose_solana"
	EventChooseExternal       Event = "choose_external"
	EventChooseDepositAddress Event = "choose_deposit_address"
	EventOptionSelected       Event = "option_selected"
	EventAmountConfirmed      Event = "amount_confirmed"
	EventOrderFulfilled       Event = "order_fulfilled"
)

// Snapshot is the slice of payment state the transition function reads.
type Snapshot struct {
	HasOrder      bool
	Hydrated      bool
	IsDepositFlow bool
	SelectedRail  types.Rail
	DestFulfilled bool
}

// ErrNoTransition is returned for an event that has no meaning on the
// current route or whose preconditions do not hold.
type ErrNoTransition struct {
	From  Route
	Event Event
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("no transition from %s on %s", e.From, e.Event)
}

// Next computes the forward transition. Pure: no side effects.
func Next(current Route, event Event, snap Snapshot) (Route, error) {
	// Fulfillment preempts everything except the terminal screen itself.
	if event == EventOrderFulfilled {
		if snap.DestFulfilled && current != RouteConfirmation {
			return RouteConfirmation, nil
		}
		return current, &ErrNoTransition{From: current, Event: event}
	}

	switch current {
	case RouteSelectMethod:
		if !snap.HasOrder {
			return current, &ErrNoTransition{From: current, Event: event}
		}
		switch event {
		case EventChooseEVM:
			return RouteSelectToken, nil
		case EventChooseSolana:
			return RouteSolanaConnect, nil
		case EventChooseDepositAddress:
			return RouteSelectDepositAddressChain, nil
		case EventChooseExternal:
			// Fixed-amount orders go straight to the provider; deposit flows
			// ask for the amount first.
			if snap.IsDepositFlow {
				return RouteSelectExternalAmount, nil
			}
			return RouteWaitingExternal, nil
		}

	case RouteSelectToken:
		if event == EventOptionSelected && snap.SelectedRail == types.RailEVM {
			if snap.IsDepositFlow {
				return RouteSelectAmount, nil
			}
			return RoutePayWithToken, nil
		}

	case RouteSolanaConnect:
		if event == EventOptionSelected && snap.SelectedRail == types.RailSolana {
			return RoutePayWithSolanaToken, nil
		}

	case RouteSelectDepositAddressChain:
		if event == EventOptionSelected && snap.SelectedRail == types.RailDepositAddress {
			return RouteWaitingDepositAddress, nil
		}

	case RouteSelectExternalAmount:
		if event == EventAmountConfirmed {
			return RouteWaitingExternal, nil
		}

	case RouteSelectAmount:
		if event == EventAmountConfirmed && snap.SelectedRail == types.RailEVM {
			return RoutePayWithToken, nil
		}
	}

	return current, &ErrNoTransition{From: current, Event: event}
}

// backTargets is the table of single back destinations. Routes absent here
// (SELECT_METHOD as initial state, CONFIRMATION as terminal) are not
// back-navigable.
var backTargets = map[Route]Route{
	RouteSelectToken:               RouteSelectMethod,
	RouteSolanaConnect:             RouteSelectMethod,
	RouteSelectDepositAddressChain: RouteSelectMethod,
	RouteSelectExternalAmount:      RouteSelectMethod,
	RouteSelectAmount:              RouteSelectToken,
	RoutePayWithToken:              RouteSelectToken,
	RoutePayWithSolanaToken:        RouteSolanaConnect,
	RouteWaitingDepositAddress:     RouteSelectDepositAddressChain,
	RouteWaitingExternal:           RouteSelectMethod,
}

// BackTarget returns the back destination for a route, if it has one.
func BackTarget(current Route) (Route, bool) {
	target, ok := backTargets[current]
	return target, ok
}

// Controller owns the current route and applies back-navigation side effects
// against the payment engine.
type Controller struct {
	current Route
	engine  *engine.Engine

	// chainUnsupported reports whether the host flagged the connected chain
	// as unsupported. With enforcement on, close is disabled to force a
	// chain switch first.
	chainUnsupported func() bool
	enforceChain     bool
}

// NewController starts at SELECT_METHOD.
func NewController(eng *engine.Engine, chainUnsupported func() bool, enforceChain bool) *Controller {
	return &Controller{
		current:          RouteSelectMethod,
		engine:           eng,
		chainUnsupported: chainUnsupported,
		enforceChain:     enforceChain,
	}
}

// Current returns the active route.
func (c *Controller) Current() Route {
	return c.current
}

// Go applies a forward event against the engine's current state.
func (c *Controller) Go(event Event) error {
	next, err := Next(c.current, event, c.snapshot())
	if err != nil {
		return err
	}
	c.current = next
	return nil
}

// Back navigates to the route's single back target, clearing the selection
// made in the forward direction. Leaving the deposit-flow amount screen also
// regenerates a fresh preview order: the one built for the abandoned amount
// is not reused.
func (c *Controller) Back(ctx context.Context) error {
	target, ok := backTargets[c.current]
	if !ok {
		return fmt.Errorf("route %s is not back-navigable", c.current)
	}

	switch c.current {
	case RoutePayWithToken, RoutePayWithSolanaToken, RouteWaitingDepositAddress, RouteWaitingExternal:
		c.engine.ClearSelection()
	case RouteSelectAmount:
		c.engine.ClearSelection()
		if c.snapshot().IsDepositFlow {
			if err := c.engine.Orders().RegeneratePreview(ctx); err != nil {
				return err
			}
		}
	}

	c.current = target
	return nil
}

// CloseDisabled reports whether the close affordance must be suppressed to
// force a chain switch first.
func (c *Controller) CloseDisabled() bool {
	return c.enforceChain && c.chainUnsupported != nil && c.chainUnsupported()
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{}
	if c.engine == nil {
		return snap
	}
	if o := c.engine.Orders().Order(); o != nil {
		snap.HasOrder = true
		snap.Hydrated = o.Hydrated()
		snap.DestFulfilled = o.DestStatus.Fulfilled()
	}
	if p := c.engine.Orders().PayParams(); p != nil {
		snap.IsDepositFlow = p.IsDepositFlow
	}
	switch {
	case c.engine.SelectedTokenOption() != nil:
		snap.SelectedRail = types.RailEVM
	case c.engine.SelectedSolanaOption() != nil:
		snap.SelectedRail = types.RailSolana
	case c.engine.SelectedExternalOption() != nil:
		snap.SelectedRail = types.RailExternal
	case c.engine.SelectedDepositAddressOption() != nil:
		snap.SelectedRail = types.RailDepositAddress
	}
	return snap
}
