package feeds

import (
	"context"

	"github.com/shopspring/decimal"
)

// BTCUSDVWAPSources returns the trade-history fetchers the VWAP domain
// pools across, grounded on original_source/oracle/feeds/btcusd_vwap.py.
// The source set is fixed to these two venues and is not configurable.
// Trades are returned as each endpoint reports its recent history; no
// lookback-window filter is applied.
func BTCUSDVWAPSources() []TradeFetcher {
	return []TradeFetcher{
		coinbaseTradesFetcher{},
		krakenTradesFetcher{},
	}
}

type coinbaseTradesFetcher struct{}

func (coinbaseTradesFetcher) Source() string { return "coinbase" }

type coinbaseTrade struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (coinbaseTradesFetcher) FetchTrades(ctx context.Context) ([]Trade, error) {
	const url = "https://api.exchange.coinbase.com/products/BTC-USD/trades"
	var raw []coinbaseTrade
	if err := getJSON(ctx, "coinbase", "api.exchange.coinbase.com", url, &raw); err != nil {
		return nil, err
	}
	return decodeTrades("coinbase", raw, func(t coinbaseTrade) (string, string) { return t.Price, t.Size })
}

type krakenTradesFetcher struct{}

func (krakenTradesFetcher) Source() string { return "kraken" }

type krakenTradesResponse struct {
	Result map[string][][3]any `json:"result"`
}

func (krakenTradesFetcher) FetchTrades(ctx context.Context) ([]Trade, error) {
	const url = "https://api.kraken.com/0/public/Trades?pair=XBTUSD"
	var resp krakenTradesResponse
	if err := getJSON(ctx, "kraken", "api.kraken.com", url, &resp); err != nil {
		return nil, err
	}
	for _, rows := range resp.Result {
		trades := make([]Trade, 0, len(rows))
		for _, row := range rows {
			priceStr, ok1 := row[0].(string)
			sizeStr, ok2 := row[1].(string)
			if !ok1 || !ok2 {
				continue
			}
			price, err := decimal.NewFromString(priceStr)
			if err != nil {
				continue
			}
			size, err := decimal.NewFromString(sizeStr)
			if err != nil {
				continue
			}
			trades = append(trades, Trade{Price: price, Volume: size})
		}
		return trades, nil
	}
	return nil, parseErr("kraken", errMissingPath("result"))
}

func decodeTrades[T any](source string, raw []T, fields func(T) (price, size string)) ([]Trade, error) {
	trades := make([]Trade, 0, len(raw))
	for _, t := range raw {
		priceStr, sizeStr := fields(t)
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, parseErr(source, err)
		}
		size, err := decimal.NewFromString(sizeStr)
		if err != nil {
			return nil, parseErr(source, err)
		}
		trades = append(trades, Trade{Price: price, Volume: size})
	}
	return trades, nil
}
