package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTickerField_ParsesStringField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"last":"69004.50"}`))
	}))
	defer srv.Close()

	f := newTickerField("testsrc", "127.0.0.1:test", srv.URL, "last")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sample, err := f.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "69004.5", sample.Value.String())
	assert.Equal(t, "testsrc", sample.Source)
}

func TestNewTickerField_HTTPErrorSurfacesAsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTickerField("testsrc", "127.0.0.1:test2", srv.URL, "last")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.Fetch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_status")
}

func TestNewTickerField_MalformedBodySurfacesAsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	f := newTickerField("testsrc", "127.0.0.1:test3", srv.URL, "last")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.Fetch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestDecodeTrades_BuildsPoolableTrades(t *testing.T) {
	raw := []coinbaseTrade{
		{Price: "100", Size: "2"},
		{Price: "101", Size: "3"},
	}
	trades, err := decodeTrades("coinbase", raw, func(t coinbaseTrade) (string, string) { return t.Price, t.Size })
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "100", trades[0].Price.String())
	assert.Equal(t, "2", trades[0].Volume.String())
}
