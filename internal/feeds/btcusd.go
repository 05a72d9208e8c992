package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/domain"
)

// jsonFetcher is a venue-specific last-trade fetcher: its fetch closure GETs
// url, decodes the venue's JSON shape and returns the last price. Every
// crypto-spot fetcher in this package is one of these with a different
// url/fetch pair.
type jsonFetcher struct {
	source  string
	rateKey string
	url     string
	fetch   func(ctx context.Context) (decimal.Decimal, error)
}

func (f jsonFetcher) Source() string { return f.source }

func (f jsonFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	v, err := f.fetch(ctx)
	if err != nil {
		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			err = parseErr(f.source, err)
		}
		return domain.Sample{}, err
	}
	return domain.Sample{Source: f.source, Value: v, CapturedAt: time.Now().UTC()}, nil
}

// BTCUSDUSDSources returns the six USD-native last-trade fetchers spec
// §4.1's crypto-spot pattern describes, grounded on
// original_source/oracle/feeds/btcusd.py's USD_SOURCES list.
func BTCUSDUSDSources() []Fetcher {
	return []Fetcher{
		newTickerField("coinbase", "api.exchange.coinbase.com",
			"https://api.exchange.coinbase.com/products/BTC-USD/ticker", "price"),
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=XBTUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/btcusd/", "last"),
		newTickerField("gemini", "api.gemini.com",
			"https://api.gemini.com/v1/pubticker/btcusd", "last"),
		newBitfinexTicker("bitfinex", "api-pub.bitfinex.com",
			"https://api-pub.bitfinex.com/v2/ticker/tBTCUSD"),
		newTickerField("binance_us", "api.binance.us",
			"https://api.binance.us/api/v3/ticker/price?symbol=BTCUSD", "price"),
	}
}

// BTCUSDUSDTSources returns the three USDT-quoted fetchers whose raw value
// must be rebased to USD via the USDT/USD rate before joining the USD tier
// (grounded on the same file's USDT_SOURCES list).
func BTCUSDUSDTSources() []Fetcher {
	return []Fetcher{
		newTickerField("binance", "data-api.binance.vision",
			"https://data-api.binance.vision/api/v3/ticker/price?symbol=BTCUSDT", "price"),
		newOKXTicker("okx", "www.okx.com",
			"https://www.okx.com/api/v5/market/ticker?instId=BTC-USDT"),
		newGateioTicker("gateio", "api.gateio.ws",
			"https://api.gateio.ws/api/v4/spot/tickers?currency_pair=BTC_USDT"),
	}
}

// USDTRateSources returns the two venues the USDT/USD reference rate is
// computed from (median of the two), grounded on get_usdt_rate() in the
// same file.
func USDTRateSources() []Fetcher {
	return []Fetcher{
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=USDTZUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/usdtusd/", "last"),
	}
}

// --- shared venue decode shapes ---

func newTickerField(source, host, url, field string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var raw map[string]any
			if err := getJSON(ctx, source, host, url, &raw); err != nil {
				return decimal.Decimal{}, err
			}
			return decimalFromAny(source, raw[field])
		},
	}
}

// krakenTickerResponse is Kraken's {"result": {"<PAIR>": {"c": ["price", "lot volume"]}}} shape.
type krakenTickerResponse struct {
	Result map[string]struct {
		Close []string `json:"c"`
	} `json:"result"`
}

func newKrakenTicker(source, host, url string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var resp krakenTickerResponse
			if err := getJSON(ctx, source, host, url, &resp); err != nil {
				return decimal.Decimal{}, err
			}
			for _, pair := range resp.Result {
				if len(pair.Close) > 0 {
					return decimal.NewFromString(pair.Close[0])
				}
			}
			return decimal.Decimal{}, parseErr(source, fmt.Errorf("no pairs in kraken response"))
		},
	}
}

// bitfinex's ticker returns a bare JSON array; index 6 is LAST_PRICE.
func newBitfinexTicker(source, host, url string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var arr []any
			if err := getJSON(ctx, source, host, url, &arr); err != nil {
				return decimal.Decimal{}, err
			}
			if len(arr) < 7 {
				return decimal.Decimal{}, parseErr(source, fmt.Errorf("ticker array too short"))
			}
			return decimalFromAny(source, arr[6])
		},
	}
}

// okxTickerResponse is OKX's {"data":[{"last":"..."}]} shape.
type okxTickerResponse struct {
	Data []struct {
		Last string `json:"last"`
	} `json:"data"`
}

func newOKXTicker(source, host, url string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var resp okxTickerResponse
			if err := getJSON(ctx, source, host, url, &resp); err != nil {
				return decimal.Decimal{}, err
			}
			if len(resp.Data) == 0 {
				return decimal.Decimal{}, parseErr(source, fmt.Errorf("empty data array"))
			}
			return decimal.NewFromString(resp.Data[0].Last)
		},
	}
}

// Gate.io returns a bare JSON array of objects with a "last" field.
func newGateioTicker(source, host, url string) Fetcher {
	return jsonFetcher{
		source: source, rateKey: host, url: url,
		fetch: func(ctx context.Context) (decimal.Decimal, error) {
			var arr []struct {
				Last string `json:"last"`
			}
			if err := getJSON(ctx, source, host, url, &arr); err != nil {
				return decimal.Decimal{}, err
			}
			if len(arr) == 0 {
				return decimal.Decimal{}, parseErr(source, fmt.Errorf("empty tickers array"))
			}
			return decimal.NewFromString(arr[0].Last)
		},
	}
}

func decimalFromAny(source string, v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, parseErr(source, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Decimal{}, parseErr(source, fmt.Errorf("unexpected field type %T", v))
	}
}
