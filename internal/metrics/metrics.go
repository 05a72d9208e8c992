// Package metrics provides the recorder interface used across feed
// fetchers, the aggregation engine, and the payment-gating proxy.
package metrics

import "time"

// Recorder is the shared metrics contract. Labels are free-form; callers
// pass whatever dimensions make sense for the event ("domain", "rail",
// "source", "code").
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
