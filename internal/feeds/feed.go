// Package feeds implements the per-source adapters spec §4.1 describes:
// each fetcher is a pure function from a deadline to a Sample or a typed
// FetchError. Fetchers never retry internally and never surface partial
// failures past their own call; the aggregation engine alone decides
// quorum and fallback policy.
package feeds

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myceliasignal/slo/internal/domain"
)

// Fetcher retrieves one source's current observation of a domain. ctx
// carries the wall-clock deadline spec §4.2 step 1 imposes on the whole
// fan-out; a Fetcher must respect ctx's cancellation rather than run past
// it. Returned errors are always *domain.FetchError.
type Fetcher interface {
	// Source is the lowercase identifier placed into Assertion.Sources.
	Source() string
	Fetch(ctx context.Context) (domain.Sample, error)
}

// Trade is one venue-reported execution used by VWAP fetchers.
type Trade struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// TradeFetcher retrieves one source's recent trade history as the venue's
// endpoint returns it; trades are not filtered by age, so the span covered
// is whatever the venue serves. The aggregation engine pools trades across
// sources before computing Σ(p·v)/Σv (spec §4.2 step 5).
type TradeFetcher interface {
	Source() string
	FetchTrades(ctx context.Context) ([]Trade, error)
}

func transportErr(source string, err error) *domain.FetchError {
	return &domain.FetchError{Source: source, Kind: domain.FetchErrTransport, Err: err}
}

func statusErr(source string, status int) *domain.FetchError {
	return &domain.FetchError{Source: source, Kind: domain.FetchErrHTTPStatus, Err: errStatusf(status)}
}

func parseErr(source string, err error) *domain.FetchError {
	return &domain.FetchError{Source: source, Kind: domain.FetchErrParse, Err: err}
}

func staleErr(source string, age time.Duration) *domain.FetchError {
	return &domain.FetchError{Source: source, Kind: domain.FetchErrStale, Err: errStalef(age)}
}
