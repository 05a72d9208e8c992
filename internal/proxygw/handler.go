package proxygw

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/myceliasignal/slo/internal/domain"
	"github.com/myceliasignal/slo/internal/logging"
	"github.com/myceliasignal/slo/internal/rails/lightning"
	"github.com/myceliasignal/slo/internal/rails/stablecoin"
	"github.com/myceliasignal/slo/internal/x402types"
)

// Dispatcher gates each inbound request on its route's rail and forwards
// admitted requests to the matched backend. Grounded on
// original_source/l402-proxy/main.go's handler (lightning path) and
// original_source/sho/x402_proxy.py's main_handler (stablecoin path),
// unified behind one route table and one response shape instead of two
// standalone proxies listening on separate ports.
type Dispatcher struct {
	table *Table

	challenger *stablecoin.Challenger
	verifier   *stablecoin.Verifier
	settler    *stablecoin.Settler
	enforcer   *stablecoin.Enforcer
	depeg      *stablecoin.DepegBreaker
	nonces     *stablecoin.NonceStore

	lightningGW     *lightning.Gateway
	lightningExpiry time.Duration

	logger logging.Logger
}

func NewDispatcher(
	table *Table,
	challenger *stablecoin.Challenger,
	verifier *stablecoin.Verifier,
	settler *stablecoin.Settler,
	enforcer *stablecoin.Enforcer,
	depeg *stablecoin.DepegBreaker,
	nonces *stablecoin.NonceStore,
	lightningGW *lightning.Gateway,
	lightningExpiry time.Duration,
	logger logging.Logger,
) *Dispatcher {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Dispatcher{
		table: table, challenger: challenger, verifier: verifier, settler: settler,
		enforcer: enforcer, depeg: depeg, nonces: nonces, lightningGW: lightningGW,
		lightningExpiry: lightningExpiry, logger: logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/supported" {
		writeJSON(w, http.StatusOK, map[string]any{"routes": d.table.Supported()})
		return
	}

	route, ok := d.table.Resolve(path)
	if !ok {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "not found", nil), http.StatusNotFound)
		return
	}

	switch route.Rail {
	case domain.RailLightning:
		d.serveLightning(w, r, route)
	case domain.RailStablecoin:
		d.serveStablecoin(w, r, route)
	default:
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "unsupported rail", nil), http.StatusInternalServerError)
	}
}

func (d *Dispatcher) serveLightning(w http.ResponseWriter, r *http.Request, route domain.Route) {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		if oracleErr, err := d.lightningGW.Admit(auth); err != nil || oracleErr != nil {
			if oracleErr == nil {
				oracleErr = domain.NewOracleError(domain.ErrTokenInvalid, err.Error(), nil)
			}
			writeOracleError(w, oracleErr, oracleErr.HTTPStatus())
			return
		}
		proxyTo(route.Backend, w, r)
		return
	}

	priceSats, err := strconv.ParseInt(route.PriceNative, 10, 64)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "misconfigured route price", nil), http.StatusInternalServerError)
		return
	}
	challenge, err := d.lightningGW.Challenge(r.Context(), priceSats, "slo "+route.Path, d.lightningExpiry)
	if err != nil {
		d.logger.Error("lightning challenge failed", map[string]any{"path": route.Path, "error": err.Error()})
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, err.Error(), nil), http.StatusInternalServerError)
		return
	}
	w.Header().Set("WWW-Authenticate", challenge.WWWAuthenticate())
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "payment required"})
}

func (d *Dispatcher) serveStablecoin(w http.ResponseWriter, r *http.Request, route domain.Route) {
	if d.depeg != nil && d.depeg.Tripped() {
		state := d.depeg.State()
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     "depeg_circuit_breaker",
			"message":   "USDC payment suspended — stablecoin deviation exceeds threshold",
			"usdc_rate": state.Rate,
		})
		return
	}

	header := r.Header.Get("X-PAYMENT")
	if header == "" {
		header = r.Header.Get("X-Payment")
	}
	if header == "" {
		resp, _, err := d.challenger.Build(route.Path, route.PriceNative, "Signed price attestation")
		if err != nil {
			writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, err.Error(), nil), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	}

	// The header is base64(JSON); a bare JSON value is accepted as well.
	raw := []byte(header)
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		raw = decoded
	}
	var req x402types.VerifyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrTokenInvalid, "invalid X-PAYMENT header", nil), http.StatusBadRequest)
		return
	}

	nonce := nonceFrom(req)
	mintedReqs, ok := d.nonces.Resolve(nonce)
	if nonce == "" || !ok {
		writeOracleError(w, domain.NewOracleError(domain.ErrTokenReplayed, "nonce missing, unknown, expired, or already used", nil), http.StatusBadRequest)
		return
	}
	// From here on req.PaymentRequirements is the server-minted record, not
	// whatever the client echoed back — a client can't pass admission by
	// presenting its own amount/asset/payTo.
	req.PaymentRequirements = mintedReqs

	status := d.enforcer.Check(authFrom(req))
	if !status.Allowed {
		writeOracleError(w, domain.NewOracleError(domain.ErrAdmissionDenied, status.Reason, map[string]any{"tier": int(status.Tier)}), http.StatusForbidden)
		return
	}

	result, err := d.verifier.Verify(r.Context(), req)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrSignerFailure, err.Error(), nil), http.StatusInternalServerError)
		return
	}
	if !result.IsValid {
		d.enforcer.RecordFailure(authFrom(req))
		oracleErr := domain.NewOracleError(domain.ErrTokenInvalid, result.InvalidReason, nil)
		writeOracleError(w, oracleErr, oracleErr.HTTPStatus())
		return
	}

	settlement, err := d.settler.Submit(r.Context(), req, decodeAuth(req), decodeSig(req))
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrSettlementFailure, err.Error(), nil), http.StatusInternalServerError)
		return
	}
	if !settlement.Success {
		writeOracleError(w, domain.NewOracleError(domain.ErrSettlementFailure, settlement.Error, nil), http.StatusInternalServerError)
		return
	}

	proxyToWithPayment(route.Backend, w, r, settlement)
}

// nonceFrom pulls the server-minted nonce back out of the client's echoed
// paymentRequirements.extra.nonce, matching how Challenger.Build embeds it.
func nonceFrom(req x402types.VerifyRequest) string {
	if req.PaymentRequirements.Extra == nil {
		return ""
	}
	nonce, _ := req.PaymentRequirements.Extra["nonce"].(string)
	return nonce
}

func authFrom(req x402types.VerifyRequest) string {
	auth, _, err := decodePayload(req)
	if err != nil {
		return "unknown"
	}
	return auth.From
}

func decodeAuth(req x402types.VerifyRequest) x402types.EIP3009Authorization {
	auth, _, _ := decodePayload(req)
	return auth
}

func decodeSig(req x402types.VerifyRequest) string {
	_, sig, _ := decodePayload(req)
	return sig
}

func decodePayload(req x402types.VerifyRequest) (x402types.EIP3009Authorization, string, error) {
	raw, err := base64.StdEncoding.DecodeString(req.PaymentPayload.Payload)
	if err != nil {
		return x402types.EIP3009Authorization{}, "", err
	}
	var payload x402types.EIP3009Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return x402types.EIP3009Authorization{}, "", err
	}
	return payload.Authorization, payload.Signature, nil
}

func proxyTo(backend string, w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(backend)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "misconfigured backend", nil), http.StatusInternalServerError)
		return
	}
	httputil.NewSingleHostReverseProxy(target).ServeHTTP(w, r)
}

// proxyToWithPayment forwards to the backend and stitches the settlement
// receipt into the JSON response body, matching
// original_source/sho/x402_proxy.py's main_handler, which returns the
// backend's attestation alongside a "payment" object describing the tx.
func proxyToWithPayment(backend string, w http.ResponseWriter, r *http.Request, settlement x402types.SettlementResult) {
	target, err := url.Parse(backend)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "misconfigured backend", nil), http.StatusInternalServerError)
		return
	}

	backendReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "misconfigured backend", nil), http.StatusInternalServerError)
		return
	}
	resp, err := http.DefaultClient.Do(backendReq)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "backend unreachable", nil), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeOracleError(w, domain.NewOracleError(domain.ErrChallengeFailed, "backend read failed", nil), http.StatusBadGateway)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = map[string]any{"raw": string(body)}
	}
	payload["payment"] = map[string]any{
		"protocol":  "x402",
		"tx_hash":   settlement.TxHash,
		"confirmed": settlement.Confirmed,
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOracleError(w http.ResponseWriter, oe *domain.OracleError, status int) {
	writeJSON(w, status, map[string]any{"error": oe.Code, "message": oe.Message, "data": oe.Data})
}
