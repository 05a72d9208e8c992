package feeds

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/domain"
)

// EURUSDSources returns the official-rate and crypto-exchange fetchers for
// the EURUSD cross, grounded on original_source/oracle/feeds/eurusd.py.
// Four of that file's seven sources are kept (ecb, bankofcanada, kraken,
// bitstamp); rba/norgesbank/cnb are omitted here since they depend on
// scraping bespoke XML/delimited central-bank release formats rather than a
// stable JSON contract — see DESIGN.md.
func EURUSDSources() []Fetcher {
	return []Fetcher{
		ecbFetcher{},
		bankOfCanadaFetcher{},
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=EURUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/eurusd/", "last"),
	}
}

// ecbFetcher reads frankfurter.dev's {"rates":{"USD":1.234}} mirror of the
// ECB daily reference rate, grounded on fetch_ecb in the same file.
type ecbFetcher struct{}

func (ecbFetcher) Source() string { return "ecb" }

type frankfurterResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (ecbFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	const url = "https://api.frankfurter.dev/v1/latest?symbols=USD"
	var resp frankfurterResponse
	if err := getJSON(ctx, "ecb", "api.frankfurter.dev", url, &resp); err != nil {
		return domain.Sample{}, err
	}
	usd, ok := resp.Rates["USD"]
	if !ok {
		return domain.Sample{}, parseErr("ecb", errMissingPath("rates.USD"))
	}
	return domain.Sample{Source: "ecb", Value: decimal.NewFromFloat(usd)}, nil
}

func errMissingPath(path string) error { return missingPathError(path) }

type missingPathError string

func (e missingPathError) Error() string { return "missing path " + string(e) }

// bankOfCanadaFetcher derives EURUSD = EURCAD / USDCAD from two Valet API
// observations, grounded on fetch_bank_of_canada in the same file.
type bankOfCanadaFetcher struct{}

func (bankOfCanadaFetcher) Source() string { return "bankofcanada" }

type valetObservation struct {
	Observations []map[string]struct {
		Value string `json:"v"`
	} `json:"observations"`
}

func (bankOfCanadaFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	const eurcadURL = "https://www.bankofcanada.ca/valet/observations/FXEURCAD/json?recent=1"
	const usdcadURL = "https://www.bankofcanada.ca/valet/observations/FXUSDCAD/json?recent=1"

	eurcad, err := fetchValetRate(ctx, "bankofcanada", eurcadURL, "FXEURCAD")
	if err != nil {
		return domain.Sample{}, err
	}
	usdcad, err := fetchValetRate(ctx, "bankofcanada", usdcadURL, "FXUSDCAD")
	if err != nil {
		return domain.Sample{}, err
	}
	if usdcad.IsZero() {
		return domain.Sample{}, parseErr("bankofcanada", errMissingPath("USDCAD"))
	}
	return domain.Sample{Source: "bankofcanada", Value: eurcad.Div(usdcad)}, nil
}

func fetchValetRate(ctx context.Context, source, url, series string) (decimal.Decimal, error) {
	var resp valetObservation
	if err := getJSON(ctx, source, "www.bankofcanada.ca", url, &resp); err != nil {
		return decimal.Decimal{}, err
	}
	if len(resp.Observations) == 0 {
		return decimal.Decimal{}, parseErr(source, errMissingPath(series))
	}
	obs, ok := resp.Observations[0][series]
	if !ok {
		return decimal.Decimal{}, parseErr(source, errMissingPath(series))
	}
	v, err := decimal.NewFromString(obs.Value)
	if err != nil {
		return decimal.Decimal{}, parseErr(source, err)
	}
	return v, nil
}
