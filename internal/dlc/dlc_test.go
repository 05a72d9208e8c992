package dlc

import (
	"context"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/domain"
	"github.com/myceliasignal/slo/internal/feeds"
	"github.com/myceliasignal/slo/internal/signer"
)

type fixedFetcher struct{ value string }

func (fixedFetcher) Source() string { return "fixed" }

func (f fixedFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	v, err := decimal.NewFromString(f.value)
	if err != nil {
		return domain.Sample{}, err
	}
	return domain.Sample{Source: "fixed", Value: v, CapturedAt: time.Now().UTC()}, nil
}

func testPriceEngine(price string) *aggregate.Engine {
	return aggregate.New(aggregate.Config{
		Domain:    "BTCUSD",
		Currency:  "USD",
		Kind:      aggregate.KindDirectMedian,
		Fetchers:  []feeds.Fetcher{fixedFetcher{value: price}},
		MinQuorum: 1,
	}, time.Second, nil, nil)
}

func TestPriceDigits_PadsToDigitCount(t *testing.T) {
	digits, err := priceDigits(123, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 2, 3}, digits)
}

func TestPriceDigits_RejectsOverflow(t *testing.T) {
	_, err := priceDigits(123456, 5)
	assert.Error(t, err)
}

func TestScheduler_AnnounceUpcomingCreatesEventsWithinHorizon(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	store := NewStore()
	sched := NewScheduler(priv, nil, "BTCUSD", 5, 3*time.Hour, store, nil)

	created, err := sched.AnnounceUpcoming(3 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Len(t, store.List(), 3)

	createdAgain, err := sched.AnnounceUpcoming(3 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, createdAgain, "already-announced events are skipped")
}

func TestScheduler_AttestCurrentHourProducesVerifiableSValues(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	store := NewStore()
	engine := testPriceEngine("68867")
	sched := NewScheduler(priv, engine, "BTCUSD", 5, time.Hour, store, nil)

	event, err := sched.AttestCurrentHour(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event.AttestedAt)
	require.Len(t, event.SValues, 5)
	assert.Equal(t, int64(68867), *event.Price)

	pub := priv.PubKey().SerializeCompressed()
	digits, err := priceDigits(68867, 5)
	require.NoError(t, err)
	for i, d := range digits {
		ok, err := signer.VerifyDigit(event.EventID, i, d, event.SValues[i], event.RPoints[i], pub)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestScheduler_AttestCurrentHourIsIdempotent(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	store := NewStore()
	engine := testPriceEngine("100")
	sched := NewScheduler(priv, engine, "BTCUSD", 5, time.Hour, store, nil)

	first, err := sched.AttestCurrentHour(context.Background())
	require.NoError(t, err)
	second, err := sched.AttestCurrentHour(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.AttestedAt, second.AttestedAt)
}
