package order

import (
	"context"
	"fmt"
	"time"

	"github.com/railhq/railpay/pkg/constants"
	"github.com/railhq/railpay/pkg/metrics"
	"github.com/railhq/railpay/pkg/types"
)

// pollInterval picks the interval from the order's current state. Re-read on
// every tick: status can cross from waiting-source to pending-intent while a
// loop is running, and the cadence must follow it.
func pollInterval(o *types.PaymentOrder) time.Duration {
	if o != nil && o.SourceStatus == types.SourceStatusWaitingPayment {
		return constants.SlowPollInterval
	}
	return constants.FastPollInterval
}

// done reports whether polling can stop: the destination side is fulfilled or
// the overall intent reached a terminal outcome.
func done(o *types.PaymentOrder) bool {
	if o == nil {
		return false
	}
	return o.DestStatus.Fulfilled() ||
		o.IntentStatus == types.IntentStatusSuccessful ||
		o.IntentStatus == types.IntentStatusRefunded
}

// Poll refreshes the order until the destination status reaches a terminal
// value or ctx is cancelled. Polling only makes sense post-hydration.
//
// Transient backend errors are logged and swallowed: a blip must not
// interrupt a multi-minute payment wait. onUpdate receives every fresh
// snapshot, including the terminal one.
func (m *Manager) Poll(ctx context.Context, onUpdate func(*types.PaymentOrder)) error {
	current := m.Order()
	if current == nil || !current.Hydrated() {
		return fmt.Errorf("%w: polling requires a hydrated order", ErrInvariant)
	}

	timer := time.NewTimer(pollInterval(current))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		m.rec.IncCounter(metrics.MetricPollTicks, nil)

		// Rails without a push signal wait on the cheap source-payment probe
		// first; the full order refresh starts once a payment is observed.
		if m.WatchingSourcePayment() {
			if waitMore, err := m.probeSourcePayment(ctx); err != nil {
				return err
			} else if waitMore {
				timer.Reset(pollInterval(m.Order()))
				continue
			}
		}

		if err := m.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warn("order poll failed, will retry", map[string]any{"error": err.Error()})
		} else {
			snapshot := m.Order()
			if onUpdate != nil {
				onUpdate(snapshot)
			}
			if done(snapshot) {
				return nil
			}
		}

		timer.Reset(pollInterval(m.Order()))
	}
}

// probeSourcePayment asks whether a source payment has been observed yet.
// Returns waitMore=true while the source side is still waiting and nothing
// has arrived; probe errors are swallowed like refresh errors.
func (m *Manager) probeSourcePayment(ctx context.Context) (waitMore bool, err error) {
	current := m.Order()
	if current == nil || current.SourceStatus != types.SourceStatusWaitingPayment {
		return false, nil
	}

	found, err := m.FindSourcePayment(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.log.Warn("source payment check failed, will retry", map[string]any{"error": err.Error()})
		return true, nil
	}
	return !found, nil
}
