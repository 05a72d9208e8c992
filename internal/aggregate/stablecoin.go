package aggregate

import (
	"github.com/shopspring/decimal"
)

// divergenceThreshold is the 0.5% divergence gate spec §4.2 step 4 and §8
// fix for the USD/stablecoin-tier rebase.
var divergenceThreshold = decimal.NewFromFloat(0.005)

// rebaseStablecoinTier implements spec §4.2 step 4: given the USD-tier
// values, the stablecoin-tier values (still in the stablecoin's own quote),
// and the independently computed stablecoin/USD rate, decide whether the
// stablecoin tier participates.
//
// Returns the merged value set to take the overall median of, and whether
// the stablecoin tier was dropped (for diagnostics/metrics).
func rebaseStablecoinTier(usdValues, stablecoinValues []decimal.Decimal, rate decimal.Decimal) (merged []decimal.Decimal, dropped bool) {
	if len(usdValues) < 2 || len(stablecoinValues) == 0 {
		return usdValues, true
	}

	usdMedian := median(usdValues)
	rebased := make([]decimal.Decimal, len(stablecoinValues))
	for i, v := range stablecoinValues {
		rebased[i] = v.Mul(rate)
	}
	stablecoinMedian := median(rebased)

	divergence := usdMedian.Sub(stablecoinMedian).Abs().Div(usdMedian)
	if divergence.GreaterThan(divergenceThreshold) {
		return usdValues, true
	}

	merged = make([]decimal.Decimal, 0, len(usdValues)+len(rebased))
	merged = append(merged, usdValues...)
	merged = append(merged, rebased...)
	return merged, false
}
