package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func sampleAssertion(t *testing.T, sources []string) Assertion {
	return Assertion{
		Domain:    "BTCUSD",
		Value:     mustDecimal(t, "69004.50"),
		Currency:  "USD",
		Decimals:  2,
		Timestamp: time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
		Nonce:     "abc123",
		Sources:   sources,
		Method:    MethodMedian,
	}
}

func TestCanonicalize_SortAndFormatDeterminism(t *testing.T) {
	a := sampleAssertion(t, []string{"C", "a", "B"})
	b := sampleAssertion(t, []string{"b", "C", "A"})

	assert.Equal(t, Canonicalize(a), Canonicalize(b))
	assert.Equal(t,
		"v1|BTCUSD|69004.50|USD|2|2026-08-03T12:00:00Z|abc123|a,b,c|median",
		Canonicalize(a),
	)
}

func TestCanonicalize_ValueFormattedWithExactDecimals(t *testing.T) {
	a := sampleAssertion(t, []string{"a"})
	a.Value = mustDecimal(t, "100")
	a.Decimals = 5

	got := Canonicalize(a)
	assert.Contains(t, got, "|100.00000|")
}

func TestCanonicalize_IsPure(t *testing.T) {
	a := sampleAssertion(t, []string{"a", "b"})
	first := Canonicalize(a)
	second := Canonicalize(a)
	assert.Equal(t, first, second)
}
