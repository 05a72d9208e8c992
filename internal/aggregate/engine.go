package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/myceliasignal/slo/internal/domain"
	"github.com/myceliasignal/slo/internal/feeds"
	"github.com/myceliasignal/slo/internal/logging"
	"github.com/myceliasignal/slo/internal/metrics"
)

// Kind selects which of spec §4.2's statistics an Engine computes.
type Kind string

const (
	KindDirectMedian  Kind = "direct_median"
	KindStablecoinUSD Kind = "stablecoin_tier"
	KindVWAP          Kind = "vwap"
	KindCross         Kind = "cross"
	KindHybrid        Kind = "hybrid"
)

// Config is the static, per-asset wiring an Engine runs against.
type Config struct {
	Domain   string
	Currency string
	Decimals int32
	Kind     Kind

	// KindDirectMedian / KindStablecoinUSD / KindHybrid's direct leg.
	Fetchers  []feeds.Fetcher
	MinQuorum int

	// KindStablecoinUSD only.
	StablecoinFetchers []feeds.Fetcher
	RateFetchers       []feeds.Fetcher
	MinQuorumDropped   int

	// KindVWAP only.
	TradeFetchers   []feeds.TradeFetcher
	MinTrades       int
	MinTradeSources int

	// KindCross / KindHybrid only.
	Base  *Engine
	Quote *Engine
}

// Engine is one instance per asset pair, per spec §4.2.
type Engine struct {
	cfg      Config
	deadline time.Duration
	logger   logging.Logger
	metrics  metrics.Recorder
	nonce    atomic.Uint64
}

// New builds an Engine. deadline is the wall-clock fan-out budget spec §4.2
// step 1 and §6's fetch_deadline default to.
func New(cfg Config, deadline time.Duration, logger logging.Logger, rec metrics.Recorder) *Engine {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Engine{cfg: cfg, deadline: deadline, logger: logger, metrics: rec}
}

// Aggregate runs one fan-out/reduce cycle and returns a freshly minted
// Assertion, or a *domain.OracleError with code InsufficientQuorum.
func (e *Engine) Aggregate(ctx context.Context) (domain.Assertion, error) {
	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	switch e.cfg.Kind {
	case KindDirectMedian:
		return e.aggregateDirect(ctx)
	case KindStablecoinUSD:
		return e.aggregateStablecoin(ctx)
	case KindVWAP:
		return e.aggregateVWAP(ctx)
	case KindCross:
		return e.aggregateCross(ctx, domain.MethodCross)
	case KindHybrid:
		return e.aggregateHybrid(ctx)
	default:
		return domain.Assertion{}, fmt.Errorf("aggregate: unknown kind %q", e.cfg.Kind)
	}
}

// fetchAll fans Fetchers out across goroutines bounded by ctx's deadline,
// logging but never surfacing individual failures (spec §4.2 step 2).
func (e *Engine) fetchAll(ctx context.Context, fetchers []feeds.Fetcher) []domain.Sample {
	var mu sync.Mutex
	samples := make([]domain.Sample, 0, len(fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetchers {
		f := f
		g.Go(func() error {
			s, err := f.Fetch(gctx)
			if err != nil {
				e.logger.Debug("feed fetch failed", map[string]any{
					"domain": e.cfg.Domain, "source": f.Source(), "error": err.Error(),
				})
				e.metrics.IncCounter("fetch_failure", map[string]string{"domain": e.cfg.Domain})
				return nil
			}
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // fetchAll never fails the group; failures are per-sample
	// A canceled caller (as opposed to the fan-out deadline expiring) gets
	// nothing: samples gathered before the cancellation are discarded.
	if ctx.Err() == context.Canceled {
		return nil
	}
	return samples
}

func (e *Engine) quorumFailure(have, need int) error {
	e.metrics.IncCounter("quorum_failure", map[string]string{"domain": e.cfg.Domain})
	return domain.NewOracleError(domain.ErrInsufficientQuorum,
		fmt.Sprintf("%s: %d of %d required sources succeeded", e.cfg.Domain, have, need),
		map[string]any{"have": have, "need": need})
}

func (e *Engine) nextNonce() string {
	return fmt.Sprintf("%s-%d", e.cfg.Domain, e.nonce.Add(1))
}

func sourceNames(samples []domain.Sample) []string {
	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.Source
	}
	sort.Strings(names)
	return names
}

func values(samples []domain.Sample) []decimal.Decimal {
	out := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

func (e *Engine) aggregateDirect(ctx context.Context) (domain.Assertion, error) {
	samples := e.fetchAll(ctx, e.cfg.Fetchers)
	if len(samples) < e.cfg.MinQuorum {
		return domain.Assertion{}, e.quorumFailure(len(samples), e.cfg.MinQuorum)
	}
	return domain.Assertion{
		Domain:    e.cfg.Domain,
		Value:     median(values(samples)),
		Currency:  e.cfg.Currency,
		Decimals:  e.cfg.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     e.nextNonce(),
		Sources:   sourceNames(samples),
		Method:    domain.MethodMedian,
	}, nil
}

func (e *Engine) aggregateStablecoin(ctx context.Context) (domain.Assertion, error) {
	var usdSamples, stableSamples, rateSamples []domain.Sample

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { usdSamples = e.fetchAll(gctx, e.cfg.Fetchers); return nil })
	g.Go(func() error { stableSamples = e.fetchAll(gctx, e.cfg.StablecoinFetchers); return nil })
	g.Go(func() error { rateSamples = e.fetchAll(gctx, e.cfg.RateFetchers); return nil })
	_ = g.Wait()

	rate := decimal.NewFromInt(1)
	if len(rateSamples) > 0 {
		rate = median(values(rateSamples))
	}

	merged, dropped := rebaseStablecoinTier(values(usdSamples), values(stableSamples), rate)

	minRequired := e.cfg.MinQuorum
	if dropped {
		minRequired = e.cfg.MinQuorumDropped
	}
	if len(merged) < minRequired {
		return domain.Assertion{}, e.quorumFailure(len(merged), minRequired)
	}

	sources := sourceNames(usdSamples)
	if !dropped {
		sources = sourceNames(append(append([]domain.Sample{}, usdSamples...), stableSamples...))
	}

	e.metrics.IncCounter("stablecoin_tier_dropped", map[string]string{"domain": e.cfg.Domain, "dropped": fmt.Sprint(dropped)})

	return domain.Assertion{
		Domain:    e.cfg.Domain,
		Value:     median(merged),
		Currency:  e.cfg.Currency,
		Decimals:  e.cfg.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     e.nextNonce(),
		Sources:   sources,
		Method:    domain.MethodMedian,
	}, nil
}

func (e *Engine) aggregateVWAP(ctx context.Context) (domain.Assertion, error) {
	var mu sync.Mutex
	sourceSet := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	allTrades := make([][]feeds.Trade, len(e.cfg.TradeFetchers))
	for i, f := range e.cfg.TradeFetchers {
		i, f := i, f
		g.Go(func() error {
			trades, err := f.FetchTrades(gctx)
			if err != nil {
				e.logger.Debug("trade fetch failed", map[string]any{"domain": e.cfg.Domain, "source": f.Source()})
				return nil
			}
			allTrades[i] = trades
			mu.Lock()
			sourceSet[f.Source()] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	value, tradeCount := vwap(allTrades)
	if tradeCount < e.cfg.MinTrades || len(sourceSet) < e.cfg.MinTradeSources {
		return domain.Assertion{}, e.quorumFailure(len(sourceSet), e.cfg.MinTradeSources)
	}

	names := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		names = append(names, s)
	}
	sort.Strings(names)

	return domain.Assertion{
		Domain:    e.cfg.Domain,
		Value:     value,
		Currency:  e.cfg.Currency,
		Decimals:  e.cfg.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     e.nextNonce(),
		Sources:   names,
		Method:    domain.MethodVWAP,
	}, nil
}

func (e *Engine) aggregateCross(ctx context.Context, method domain.Method) (domain.Assertion, error) {
	var base, quote domain.Assertion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { base, err = e.cfg.Base.Aggregate(gctx); return })
	g.Go(func() (err error) { quote, err = e.cfg.Quote.Aggregate(gctx); return })
	if err := g.Wait(); err != nil {
		return domain.Assertion{}, err
	}

	value, sources := crossRate(base, quote)
	return domain.Assertion{
		Domain:    e.cfg.Domain,
		Value:     value,
		Currency:  e.cfg.Currency,
		Decimals:  e.cfg.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     e.nextNonce(),
		Sources:   sources,
		Method:    method,
	}, nil
}

// aggregateHybrid implements spec §4.2 step 7: direct-quoted samples plus a
// derived cross-rate sample treated as one additional synthetic source,
// reduced via the ordinary direct-median rule.
func (e *Engine) aggregateHybrid(ctx context.Context) (domain.Assertion, error) {
	var direct []domain.Sample
	var cross domain.Assertion
	var crossErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { direct = e.fetchAll(gctx, e.cfg.Fetchers); return nil })
	g.Go(func() error {
		cross, crossErr = e.aggregateCross(gctx, domain.MethodCross)
		return nil
	})
	_ = g.Wait()

	samples := append([]domain.Sample{}, direct...)
	if crossErr == nil {
		samples = append(samples, domain.Sample{
			Source: HybridCrossSourceName,
			Value:  cross.Value,
		})
	}

	if len(samples) < e.cfg.MinQuorum {
		return domain.Assertion{}, e.quorumFailure(len(samples), e.cfg.MinQuorum)
	}

	return domain.Assertion{
		Domain:    e.cfg.Domain,
		Value:     median(values(samples)),
		Currency:  e.cfg.Currency,
		Decimals:  e.cfg.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     e.nextNonce(),
		Sources:   sourceNames(samples),
		Method:    domain.MethodHybrid,
	}, nil
}
