// Package domain holds the types shared by every oracle component: samples
// produced by feed fetchers, assertions produced by aggregation engines, the
// route table the proxy serves, and the error taxonomy spec'd across rails.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one fetcher's observation of a domain at a point in time.
type Sample struct {
	Source     string
	Value      decimal.Decimal
	Volume     *decimal.Decimal
	CapturedAt time.Time
}

// Method names the statistic an Assertion was produced by.
type Method string

const (
	MethodMedian Method = "median"
	MethodVWAP   Method = "vwap"
	MethodCross  Method = "cross"
	MethodHybrid Method = "hybrid"
)

// Assertion is the signed statement of a single metric at a single point in
// time. Canonicalize is the sole input to every signature scheme.
type Assertion struct {
	Domain    string
	Value     decimal.Decimal
	Currency  string
	Decimals  int32
	Timestamp time.Time
	Nonce     string
	Sources   []string
	Method    Method
}

// Rail names a payment mechanism the proxy supports.
type Rail string

const (
	RailLightning  Rail = "lightning-channel"
	RailStablecoin Rail = "stablecoin-evm"
)

// Route is static per-path proxy configuration.
type Route struct {
	Path        string
	Backend     string
	PriceNative string
	Rail        Rail
}

// PrefixRoute matches templated paths (e.g. per-event DLC attestations) by
// longest-prefix instead of exact path.
type PrefixRoute struct {
	Prefix      string
	Backend     string
	PriceNative string
	Rail        Rail
}

// ErrorCode enumerates the abstract error taxonomy of spec §7. FetchError is
// intentionally absent: per-source fetch failures are never surfaced past
// the aggregation engine's quorum check.
type ErrorCode string

const (
	ErrChallengeFailed    ErrorCode = "challenge_failed"
	ErrTokenInvalid       ErrorCode = "token_invalid"
	ErrTokenReplayed      ErrorCode = "token_replayed"
	ErrAdmissionDenied    ErrorCode = "admission_denied"
	ErrInsufficientQuorum ErrorCode = "insufficient_quorum"
	ErrSignerFailure      ErrorCode = "signer_failure"
	ErrSettlementFailure  ErrorCode = "settlement_failure"
)

// statusByCode maps each ErrorCode to the HTTP status spec §7 assigns it.
// AdmissionDenied is special-cased by callers since it splits 403/503.
var statusByCode = map[ErrorCode]int{
	ErrChallengeFailed:    500,
	ErrTokenInvalid:       401,
	ErrTokenReplayed:      400,
	ErrAdmissionDenied:    403,
	ErrInsufficientQuorum: 503,
	ErrSignerFailure:      500,
	ErrSettlementFailure:  500,
}

// OracleError is the sum-type-via-tagged-error spec §9 asks for in place of
// exception-for-flow-control: every condition that changes user-visible
// semantics carries one of these codes through to the HTTP layer.
type OracleError struct {
	Code    ErrorCode
	Message string
	Data    map[string]any
}

func (e *OracleError) Error() string {
	return e.Message
}

// NewOracleError builds an OracleError, optionally attaching machine-readable
// Data (e.g. a replay cause or a cooldown duration).
func NewOracleError(code ErrorCode, message string, data map[string]any) *OracleError {
	return &OracleError{Code: code, Message: message, Data: data}
}

// HTTPStatus returns the status code spec §7 assigns this error's code.
// AdmissionDenied defaults to 403; callers that need the 503 depeg variant
// should set it directly rather than relying on this table.
func (e *OracleError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return 500
}

// FetchErrorKind enumerates the four recognized per-source fetch failure
// kinds. Fetchers must not retry internally; the aggregator alone decides
// retry/fallback policy by simply counting failures toward quorum.
type FetchErrorKind string

const (
	FetchErrTransport  FetchErrorKind = "transport"
	FetchErrHTTPStatus FetchErrorKind = "http_status"
	FetchErrParse      FetchErrorKind = "parse"
	FetchErrStale      FetchErrorKind = "stale"
)

// FetchError is the typed error every Fetcher returns on failure.
type FetchError struct {
	Source string
	Kind   FetchErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return e.Source + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }
