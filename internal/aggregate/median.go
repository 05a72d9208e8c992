// Package aggregate implements the per-asset aggregation engine spec §4.2
// describes: bounded parallel fan-out to a feed set, the domain's
// deterministic statistic, quorum enforcement, and Assertion construction.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
)

// median computes the statistical median of values, with the even-count
// tie-break spec §3/§8 pins down: the LOWER of the two middle values, so
// two independent implementations agree bit-exactly regardless of input
// order. values is not mutated.
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	// even count: lower-neighbor tie-break, i.e. the average of the two
	// middle values would break the "bit-exact" requirement under
	// arbitrary-precision division, so spec §3 pins the lower neighbor
	// directly rather than averaging.
	return sorted[n/2-1]
}
