package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder registers two vectors at construction time: an event
// counter and an operation-latency histogram, both dimensioned by domain
// (the asset pair or event id) and rail (lightning-channel or
// stablecoin-evm, empty for domain-internal events like feed fetches).
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

func NewPrometheusRecorder() Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slo",
			Name:      "events_total",
			Help:      "oracle event counters",
		},
		[]string{"type", "domain", "rail"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slo",
			Name:      "latency_seconds",
			Help:      "oracle operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "domain", "rail"},
	)

	prometheus.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":   name,
		"domain": labels["domain"],
		"rail":   labels["rail"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"domain":    labels["domain"],
		"rail":      labels["rail"],
	}).Observe(d.Seconds())
}
