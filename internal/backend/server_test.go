package backend

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type fakeFetcher struct {
	source string
	value  string
}

func (f fakeFetcher) Source() string { return f.source }

func (f fakeFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	v, err := decimal.NewFromString(f.value)
	if err != nil {
		return domain.Sample{}, err
	}
	return domain.Sample{Source: f.source, Value: v, CapturedAt: time.Now().UTC()}, nil
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	ecdsaPriv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	seed := make([]byte, ed25519.SeedSize)
	edPriv := ed25519.NewKeyFromSeed(seed)
	return signer.New(ecdsaPriv, edPriv)
}

func testEngine() *aggregate.Engine {
	return aggregate.New(aggregate.Config{
		Domain: "BTC/USD",
		Currency: "USD",
		Decimals: 2,
		Kind:     aggregate.KindDirectMedian,
		Fetchers: []feeds.Fetcher{
			fakeFetcher{source: "a", value: "50000.00"},
			fakeFetcher{source: "b", value: "50010.00"},
			fakeFetcher{source: "c", value: "50005.00"},
		},
		MinQuorum: 2,
	}, time.Second, nil, nil)
}

func TestServer_StationRouteReturnsSignedBundle(t *testing.T) {
	s := New([]Station{{Path: "/btc/usd", Engine: testEngine(), Scheme: signer.SchemeEd25519}}, testSigner(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/btc/usd", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var bundle signer.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "BTC/USD", bundle.Domain)
	assert.NotEmpty(t, bundle.Signature)
	assert.Equal(t, signer.SchemeEd25519, bundle.SigningScheme)
}

func TestServer_HealthzReportsOK(t *testing.T) {
	s := New(nil, testSigner(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_UnknownRouteReturns404(t *testing.T) {
	s := New(nil, testSigner(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
