package metrics

import "time"

// Recorder receives SDK-level counters and latencies: pay attempts per rail,
// poll ticks, option-fetch durations.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Metric names emitted by the SDK.
const (
	MetricPayAttempts   = "railpay_pay_attempts_total"
	MetricPollTicks     = "railpay_order_poll_ticks_total"
	MetricOptionFetches = "railpay_option_fetch_duration_seconds"
)

// OrNoop returns r, or a NoopRecorder if r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
