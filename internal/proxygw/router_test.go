package proxygw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myceliasignal/slo/internal/domain"
)

func testRoutes() ([]domain.Route, []string, []domain.PrefixRoute) {
	routes := []domain.Route{
		{Path: "/btc/usd", Backend: "http://127.0.0.1:9100", PriceNative: "100", Rail: domain.RailLightning},
		{Path: "/eth/usd", Backend: "http://127.0.0.1:9101", PriceNative: "0.05", Rail: domain.RailStablecoin},
	}
	free := []string{"/health"}
	prefixes := []domain.PrefixRoute{
		{Prefix: "/dlc/oracle/attestations/", Backend: "http://127.0.0.1:9104", PriceNative: "500", Rail: domain.RailLightning},
	}
	return routes, free, prefixes
}

func TestTable_ResolveExactRoute(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)

	route, ok := table.Resolve("/btc/usd")
	require.True(t, ok)
	assert.Equal(t, domain.RailLightning, route.Rail)
	assert.Equal(t, "http://127.0.0.1:9100", route.Backend)
}

func TestTable_ResolvePrefixRouteForUnmatchedExactPath(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)

	route, ok := table.Resolve("/dlc/oracle/attestations/evt-123")
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:9104", route.Backend)
	assert.Equal(t, domain.RailLightning, route.Rail)
}

func TestTable_ResolveUnknownPathFails(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)

	_, ok := table.Resolve("/nope")
	assert.False(t, ok)
}

func TestTable_IsFreeReportsConfiguredFreeRoutes(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)

	assert.True(t, table.IsFree("/health"))
	assert.False(t, table.IsFree("/btc/usd"))
}

func TestTable_SupportedListsExactRoutesSorted(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)

	assert.Equal(t, []string{"/btc/usd", "/eth/usd"}, table.Supported())
}

func TestDispatcher_SupportedRouteIsServedWithoutAnyGate(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)
	d := NewDispatcher(table, nil, nil, nil, nil, nil, nil, nil, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/supported", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatcher_UnknownRouteReturns404(t *testing.T) {
	routes, free, prefixes := testRoutes()
	table := NewTable(routes, free, prefixes)
	d := NewDispatcher(table, nil, nil, nil, nil, nil, nil, nil, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
