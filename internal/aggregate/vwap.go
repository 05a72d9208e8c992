package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/feeds"
)

// vwap pools trades across every source's reported trade list and computes
// Σ(p·v)/Σv over the pool, per spec §4.2 step 5. A source contributing zero
// total volume is simply ignored; it neither inflates nor corrupts the
// denominator.
func vwap(allTrades [][]feeds.Trade) (decimal.Decimal, int) {
	sumPV := decimal.Zero
	sumV := decimal.Zero
	tradeCount := 0

	for _, trades := range allTrades {
		for _, t := range trades {
			if t.Volume.IsZero() {
				continue
			}
			sumPV = sumPV.Add(t.Price.Mul(t.Volume))
			sumV = sumV.Add(t.Volume)
			tradeCount++
		}
	}

	if sumV.IsZero() {
		return decimal.Zero, 0
	}
	return sumPV.Div(sumV), tradeCount
}
