package stablecoin

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/feeds"
	"github.com/myceliasignal/slo/internal/logging"
)

// DepegState is the outcome of the most recent peg check.
type DepegState struct {
	Pegged  bool
	Rate    decimal.Decimal
	Sources int
}

// DepegBreaker is a process-wide circuit breaker recomputed on a fixed
// cadence, per spec §4.4/§9: while the median USDC/USD rate across a
// quorum of venues deviates from 1.0 by more than tolerance, every paid
// route on the stablecoin rail responds 503 instead of accepting payment.
// Grounded on original_source/sho/x402_proxy.py's check_depeg(), which
// this generalizes from a lazily-recomputed globals pair into a ticking
// background goroutine so a slow venue can never stall a request path.
type DepegBreaker struct {
	engine    *aggregate.Engine
	tolerance decimal.Decimal
	minQuorum int
	interval  time.Duration
	logger    logging.Logger

	mu    sync.RWMutex
	state DepegState
	tripped atomic.Bool
}

func NewDepegBreaker(tolerance decimal.Decimal, minQuorum int, interval, fetchDeadline time.Duration, logger logging.Logger) *DepegBreaker {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	fetchers := feeds.USDCUSDSources()
	engine := aggregate.New(aggregate.Config{
		Domain:    "USDCUSD",
		Currency:  "USD",
		Decimals:  4,
		Kind:      aggregate.KindDirectMedian,
		Fetchers:  fetchers,
		MinQuorum: minQuorum,
	}, fetchDeadline, logger, nil)

	b := &DepegBreaker{
		engine:    engine,
		tolerance: tolerance,
		minQuorum: minQuorum,
		interval:  interval,
		logger:    logger,
		state:     DepegState{Pegged: true},
	}
	return b
}

// Run recomputes the peg state on b.interval until ctx is canceled. Call it
// once from the process's background goroutine set.
func (b *DepegBreaker) Run(ctx context.Context) {
	b.recompute(ctx)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.recompute(ctx)
		}
	}
}

func (b *DepegBreaker) recompute(ctx context.Context) {
	a, err := b.engine.Aggregate(ctx)
	if err != nil {
		// Insufficient quorum: fail safe by keeping the last known state,
		// per spec — an unreadable peg is not proof of a depeg.
		b.logger.Warn("depeg check: insufficient quorum, holding prior state", nil)
		return
	}

	deviation := a.Value.Sub(decimal.NewFromInt(1)).Abs()
	pegged := deviation.LessThanOrEqual(b.tolerance)

	b.mu.Lock()
	wasPegged := b.state.Pegged
	b.state = DepegState{Pegged: pegged, Rate: a.Value, Sources: len(a.Sources)}
	b.mu.Unlock()
	b.tripped.Store(!pegged)

	if wasPegged && !pegged {
		b.logger.Warn("depeg circuit breaker tripped", map[string]any{"rate": a.Value.String()})
	} else if !wasPegged && pegged {
		b.logger.Info("depeg circuit breaker cleared", map[string]any{"rate": a.Value.String()})
	}
}

// State returns the last computed peg state without blocking on a fetch.
func (b *DepegBreaker) State() DepegState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Tripped reports whether the stablecoin rail should currently refuse
// payment. Safe to call from a request-handling goroutine.
func (b *DepegBreaker) Tripped() bool {
	return b.tripped.Load()
}
