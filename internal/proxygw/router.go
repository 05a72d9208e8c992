// Package proxygw implements the payment-gated reverse proxy: it matches an
// inbound request's path against the route table, issues or checks a
// payment challenge on the rail the matched route names, and forwards
// admitted requests to the route's backend. Grounded on
// original_source/l402-proxy/main.go's handler (route lookup by exact path
// then longest prefix) generalized from one hardcoded rail to both.
package proxygw

import (
	"sort"
	"strings"

	"github.com/myceliasignal/slo/internal/domain"
)

// Table resolves a request path to the route that should gate it.
type Table struct {
	exact     map[string]domain.Route
	free      map[string]struct{}
	prefix    []domain.PrefixRoute
	supported []string
}

// NewTable builds a Table from config-loaded routes, sorting prefix entries
// longest-first so the first match is always the most specific one.
func NewTable(routes []domain.Route, freePaths []string, prefixes []domain.PrefixRoute) *Table {
	exact := make(map[string]domain.Route, len(routes))
	supported := make([]string, 0, len(routes))
	for _, r := range routes {
		exact[r.Path] = r
		supported = append(supported, r.Path)
	}
	sort.Strings(supported)

	free := make(map[string]struct{}, len(freePaths))
	for _, p := range freePaths {
		free[p] = struct{}{}
	}

	sorted := append([]domain.PrefixRoute{}, prefixes...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })

	return &Table{exact: exact, free: free, prefix: sorted, supported: supported}
}

// Supported lists every gated path, served on the free /supported route.
func (t *Table) Supported() []string { return t.supported }

// IsFree reports whether path is served without a payment challenge.
func (t *Table) IsFree(path string) bool {
	_, ok := t.free[path]
	return ok
}

// Resolve finds the route gating path: an exact match first, then the
// longest matching prefix route.
func (t *Table) Resolve(path string) (domain.Route, bool) {
	if r, ok := t.exact[path]; ok {
		return r, true
	}
	for _, pr := range t.prefix {
		if strings.HasPrefix(path, pr.Prefix) {
			return domain.Route{Path: path, Backend: pr.Backend, PriceNative: pr.PriceNative, Rail: pr.Rail}, true
		}
	}
	return domain.Route{}, false
}
