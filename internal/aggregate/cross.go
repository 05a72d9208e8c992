package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/domain"
)

// crossRate derives a pair's value from two base assertions (e.g.
// BTCEUR = BTCUSD / EURUSD), inheriting the union of sources, per spec
// §4.2 step 6.
func crossRate(base, quote domain.Assertion) (value decimal.Decimal, sources []string) {
	return base.Value.Div(quote.Value), unionSources(base.Sources, quote.Sources)
}

// hybridSamples appends a synthetic cross-rate sample to a set of direct
// samples, to be fed through the ordinary direct-median rule per spec §4.2
// step 7. The synthetic sample's source name is a fixed sentinel so callers
// can recognize and attribute it distinctly in logs/metrics.
const HybridCrossSourceName = "cross-derived"

func unionSources(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
