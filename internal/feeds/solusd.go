package feeds

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SOLUSDUSDSources returns the five USD-native fetchers, grounded on
// original_source/oracle/feeds/solusd.py's USD_SOURCES list.
func SOLUSDUSDSources() []Fetcher {
	return []Fetcher{
		newTickerField("coinbase", "api.exchange.coinbase.com",
			"https://api.exchange.coinbase.com/products/SOL-USD/ticker", "price"),
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=SOLUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/solusd/", "last"),
		newTickerField("gemini", "api.gemini.com",
			"https://api.gemini.com/v1/pubticker/solusd", "last"),
		newBitfinexTicker("bitfinex", "api-pub.bitfinex.com",
			"https://api-pub.bitfinex.com/v2/ticker/tSOLUSD"),
	}
}

// SOLUSDUSDTSources returns the four USDT-quoted fetchers requiring
// rebasing to USD, grounded on the same file's USDT_SOURCES list.
func SOLUSDUSDTSources() []Fetcher {
	return []Fetcher{
		newTickerField("binance", "data-api.binance.vision",
			"https://data-api.binance.vision/api/v3/ticker/price?symbol=SOLUSDT", "price"),
		newOKXTicker("okx", "www.okx.com",
			"https://www.okx.com/api/v5/market/ticker?instId=SOL-USDT"),
		newGateioTicker("gateio", "api.gateio.ws",
			"https://api.gateio.ws/api/v4/spot/tickers?currency_pair=SOL_USDT"),
		newBybitTicker("bybit", "api.bybit.com",
			"https://api.bybit.com/v5/market/tickers?category=spot&symbol=SOLUSDT"),
	}
}

type bybitTickerResponse struct {
	Result struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	} `json:"result"`
}

func newBybitTicker(source, host, url string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var resp bybitTickerResponse
			if err := getJSON(ctx, source, host, url, &resp); err != nil {
				return decimal.Decimal{}, err
			}
			if len(resp.Result.List) == 0 {
				return decimal.Decimal{}, parseErr(source, fmt.Errorf("empty bybit ticker list"))
			}
			return decimal.NewFromString(resp.Result.List[0].LastPrice)
		},
	}
}
