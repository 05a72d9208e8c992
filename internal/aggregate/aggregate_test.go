package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myceliasignal/slo/internal/domain"
	"github.com/myceliasignal/slo/internal/feeds"
)

type fakeFetcher struct {
	source string
	value  string
	err    error
}

func (f fakeFetcher) Source() string { return f.source }

func (f fakeFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	if f.err != nil {
		return domain.Sample{}, f.err
	}
	v, err := decimal.NewFromString(f.value)
	if err != nil {
		return domain.Sample{}, err
	}
	return domain.Sample{Source: f.source, Value: v, CapturedAt: time.Now().UTC()}, nil
}

type fakeTradeFetcher struct {
	source string
	trades []feeds.Trade
	err    error
}

func (f fakeTradeFetcher) Source() string { return f.source }

func (f fakeTradeFetcher) FetchTrades(ctx context.Context) ([]feeds.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trades, nil
}

func trade(price, volume string) feeds.Trade {
	return feeds.Trade{Price: decimal.RequireFromString(price), Volume: decimal.RequireFromString(volume)}
}

func decStr(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestMedian_OddCountReturnsMiddleValue(t *testing.T) {
	got := median([]decimal.Decimal{decStr(t, "69001.00"), decStr(t, "69010.00"), decStr(t, "69003.00")})
	assert.True(t, got.Equal(decStr(t, "69003.00")), "got %s", got)
}

func TestMedian_EvenCountReturnsLowerNeighbor(t *testing.T) {
	got := median([]decimal.Decimal{decStr(t, "100.00"), decStr(t, "100.10")})
	assert.True(t, got.Equal(decStr(t, "100.00")), "got %s", got)
}

func TestMedian_OrderIndependent(t *testing.T) {
	a := median([]decimal.Decimal{decStr(t, "3"), decStr(t, "1"), decStr(t, "2"), decStr(t, "4")})
	b := median([]decimal.Decimal{decStr(t, "4"), decStr(t, "2"), decStr(t, "1"), decStr(t, "3")})
	assert.True(t, a.Equal(b))
}

func TestVWAP_PooledAcrossSources(t *testing.T) {
	got, count := vwap([][]feeds.Trade{
		{trade("100", "2"), trade("101", "3")},
		{trade("99", "5")},
	})
	assert.Equal(t, 3, count)
	assert.True(t, got.Equal(decStr(t, "99.8")), "got %s", got)
}

func TestVWAP_ZeroVolumeIgnored(t *testing.T) {
	got, count := vwap([][]feeds.Trade{{trade("100", "0")}, {trade("50", "2")}})
	assert.Equal(t, 1, count)
	assert.True(t, got.Equal(decStr(t, "50")))
}

func TestVWAP_AllZeroVolumeReturnsZero(t *testing.T) {
	got, count := vwap([][]feeds.Trade{{trade("100", "0")}})
	assert.Equal(t, 0, count)
	assert.True(t, got.IsZero())
}

func TestRebaseStablecoinTier_MergesWhenWithinThreshold(t *testing.T) {
	usd := []decimal.Decimal{decStr(t, "100.00"), decStr(t, "100.02")}
	stable := []decimal.Decimal{decStr(t, "99.99"), decStr(t, "100.00")}
	merged, dropped := rebaseStablecoinTier(usd, stable, decimal.NewFromInt(1))
	assert.False(t, dropped)
	assert.Len(t, merged, 4)
}

func TestRebaseStablecoinTier_DropsWhenDivergenceExceedsThreshold(t *testing.T) {
	usd := []decimal.Decimal{decStr(t, "100.00"), decStr(t, "100.02")}
	stable := []decimal.Decimal{decStr(t, "102.00"), decStr(t, "102.05")}
	merged, dropped := rebaseStablecoinTier(usd, stable, decimal.NewFromInt(1))
	assert.True(t, dropped)
	assert.Equal(t, usd, merged)
}

func TestRebaseStablecoinTier_DropsWhenTierEmpty(t *testing.T) {
	usd := []decimal.Decimal{decStr(t, "100.00"), decStr(t, "100.02")}
	merged, dropped := rebaseStablecoinTier(usd, nil, decimal.NewFromInt(1))
	assert.True(t, dropped)
	assert.Equal(t, usd, merged)
}

func TestCrossRate_DerivesQuotientAndUnionsSources(t *testing.T) {
	base := domain.Assertion{Value: decStr(t, "69000"), Sources: []string{"kraken", "coinbase"}}
	quote := domain.Assertion{Value: decStr(t, "1.10"), Sources: []string{"ecb", "kraken"}}

	value, sources := crossRate(base, quote)
	assert.True(t, value.Equal(decStr(t, "69000").Div(decStr(t, "1.10"))))
	assert.Equal(t, []string{"coinbase", "ecb", "kraken"}, sources)
}

func TestEngine_AggregateDirect_ComputesMedianAndSortsSources(t *testing.T) {
	eng := New(Config{
		Domain:    "BTCUSD",
		Currency:  "USD",
		Decimals:  2,
		Kind:      KindDirectMedian,
		MinQuorum: 3,
		Fetchers: []feeds.Fetcher{
			fakeFetcher{source: "kraken", value: "69001.00"},
			fakeFetcher{source: "coinbase", value: "69010.00"},
			fakeFetcher{source: "bitstamp", value: "69003.00"},
		},
	}, time.Second, nil, nil)

	a, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Value.Equal(decStr(t, "69003.00")), "got %s", a.Value)
	assert.Equal(t, []string{"bitstamp", "coinbase", "kraken"}, a.Sources)
	assert.Equal(t, domain.MethodMedian, a.Method)
	assert.NotEmpty(t, a.Nonce)
}

func TestEngine_AggregateDirect_FailsQuorumBelowMinimum(t *testing.T) {
	eng := New(Config{
		Domain:    "BTCUSD",
		Currency:  "USD",
		Decimals:  2,
		Kind:      KindDirectMedian,
		MinQuorum: 3,
		Fetchers: []feeds.Fetcher{
			fakeFetcher{source: "kraken", value: "69001.00"},
			fakeFetcher{source: "coinbase", err: assert.AnError},
		},
	}, time.Second, nil, nil)

	_, err := eng.Aggregate(context.Background())
	require.Error(t, err)
	oe, ok := err.(*domain.OracleError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInsufficientQuorum, oe.Code)
}

func TestEngine_AggregateStablecoin_UsesMergedTierWhenWithinThreshold(t *testing.T) {
	eng := New(Config{
		Domain:           "BTCUSD",
		Currency:         "USD",
		Decimals:         2,
		Kind:             KindStablecoinUSD,
		MinQuorum:        2,
		MinQuorumDropped: 2,
		Fetchers: []feeds.Fetcher{
			fakeFetcher{source: "coinbase", value: "100.00"},
			fakeFetcher{source: "kraken", value: "100.02"},
		},
		StablecoinFetchers: []feeds.Fetcher{
			fakeFetcher{source: "binance", value: "99.99"},
		},
		RateFetchers: []feeds.Fetcher{
			fakeFetcher{source: "kraken-usdt", value: "1.00"},
		},
	}, time.Second, nil, nil)

	a, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Sources, 3)
}

func TestEngine_AggregateStablecoin_FallsBackToUSDOnlyWhenDiverged(t *testing.T) {
	eng := New(Config{
		Domain:           "BTCUSD",
		Currency:         "USD",
		Decimals:         2,
		Kind:             KindStablecoinUSD,
		MinQuorum:        2,
		MinQuorumDropped: 2,
		Fetchers: []feeds.Fetcher{
			fakeFetcher{source: "coinbase", value: "100.00"},
			fakeFetcher{source: "kraken", value: "100.02"},
		},
		StablecoinFetchers: []feeds.Fetcher{
			fakeFetcher{source: "binance", value: "105.00"},
		},
		RateFetchers: []feeds.Fetcher{
			fakeFetcher{source: "kraken-usdt", value: "1.00"},
		},
	}, time.Second, nil, nil)

	a, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"coinbase", "kraken"}, a.Sources)
}

func TestEngine_AggregateVWAP_MatchesPooledCalculation(t *testing.T) {
	eng := New(Config{
		Domain:          "BTCUSD-VWAP",
		Currency:        "USD",
		Decimals:        2,
		Kind:            KindVWAP,
		MinTrades:       1,
		MinTradeSources: 1,
		TradeFetchers: []feeds.TradeFetcher{
			fakeTradeFetcher{source: "coinbase", trades: []feeds.Trade{trade("100", "2"), trade("101", "3")}},
			fakeTradeFetcher{source: "kraken", trades: []feeds.Trade{trade("99", "5")}},
		},
	}, time.Second, nil, nil)

	a, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Value.Equal(decStr(t, "99.8")), "got %s", a.Value)
	assert.Equal(t, domain.MethodVWAP, a.Method)
}

func TestEngine_AggregateVWAP_FailsQuorumWithTooFewSources(t *testing.T) {
	eng := New(Config{
		Domain:          "BTCUSD-VWAP",
		Currency:        "USD",
		Decimals:        2,
		Kind:            KindVWAP,
		MinTrades:       1,
		MinTradeSources: 2,
		TradeFetchers: []feeds.TradeFetcher{
			fakeTradeFetcher{source: "coinbase", trades: []feeds.Trade{trade("100", "2")}},
		},
	}, time.Second, nil, nil)

	_, err := eng.Aggregate(context.Background())
	require.Error(t, err)
}

func TestEngine_AggregateCross_DerivesFromTwoLegs(t *testing.T) {
	base := New(Config{
		Domain: "BTCUSD", Currency: "USD", Decimals: 2, Kind: KindDirectMedian, MinQuorum: 1,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "kraken", value: "69000.00"}},
	}, time.Second, nil, nil)
	quote := New(Config{
		Domain: "EURUSD", Currency: "USD", Decimals: 4, Kind: KindDirectMedian, MinQuorum: 1,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "ecb", value: "1.1000"}},
	}, time.Second, nil, nil)

	cross := New(Config{
		Domain: "BTCEUR", Currency: "EUR", Decimals: 2, Kind: KindCross,
		Base: base, Quote: quote,
	}, time.Second, nil, nil)

	a, err := cross.Aggregate(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Value.Equal(decStr(t, "69000.00").Div(decStr(t, "1.1000"))), "got %s", a.Value)
	assert.Equal(t, domain.MethodCross, a.Method)
	assert.ElementsMatch(t, []string{"kraken", "ecb"}, a.Sources)
}

func TestEngine_AggregateHybrid_IncludesCrossDerivedSyntheticSource(t *testing.T) {
	base := New(Config{
		Domain: "BTCUSD", Currency: "USD", Decimals: 2, Kind: KindDirectMedian, MinQuorum: 1,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "kraken", value: "69000.00"}},
	}, time.Second, nil, nil)
	quote := New(Config{
		Domain: "EURUSD", Currency: "USD", Decimals: 4, Kind: KindDirectMedian, MinQuorum: 1,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "ecb", value: "1.1000"}},
	}, time.Second, nil, nil)

	hybrid := New(Config{
		Domain: "BTCEUR", Currency: "EUR", Decimals: 2, Kind: KindHybrid, MinQuorum: 1,
		Base: base, Quote: quote,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "bitstamp-eur", value: "62727.27"}},
	}, time.Second, nil, nil)

	a, err := hybrid.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MethodHybrid, a.Method)
	assert.Contains(t, a.Sources, HybridCrossSourceName)
	assert.Contains(t, a.Sources, "bitstamp-eur")
}

func TestEngine_Aggregate_NoncesAreUniquePerCall(t *testing.T) {
	eng := New(Config{
		Domain: "BTCUSD", Currency: "USD", Decimals: 2, Kind: KindDirectMedian, MinQuorum: 1,
		Fetchers: []feeds.Fetcher{fakeFetcher{source: "kraken", value: "69000.00"}},
	}, time.Second, nil, nil)

	a1, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	a2, err := eng.Aggregate(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a1.Nonce, a2.Nonce)
}
