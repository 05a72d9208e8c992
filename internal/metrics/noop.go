package metrics

import "time"

// NoopRecorder discards everything. Used in tests and as a safe zero value.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
