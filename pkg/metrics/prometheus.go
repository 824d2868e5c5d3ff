package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers and returns a prometheus-backed Recorder.
// Labels are collapsed onto a fixed {type, rail} / {operation, rail} schema.
func NewPrometheusRecorder() Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railpay",
			Name:      "events_total",
			Help:      "railpay event counters",
		},
		[]string{"type", "rail"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "railpay",
			Name:      "latency_seconds",
			Help:      "railpay operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "rail"},
	)

	prometheus.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type": name,
		"rail": labels["rail"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"rail":      labels["rail"],
	}).Observe(d.Seconds())
}
