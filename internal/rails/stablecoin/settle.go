package stablecoin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/myceliasignal/slo/internal/evmclient"
	"github.com/myceliasignal/slo/internal/logging"
	"github.com/myceliasignal/slo/internal/x402types"
)

// ChainSubmitter is satisfied by *evmclient.Client. A Settler falls back to
// it when no facilitatorURL is configured, so a self-hosted deployment can
// act as its own facilitator instead of depending on an external one.
type ChainSubmitter interface {
	SubmitTransferWithAuthorization(ctx context.Context, token string, auth x402types.EIP3009Authorization, v uint8, r, s [32]byte) (txHash string, err error)
}

// pendingSettlement is one submitted-but-unconfirmed facilitator settlement.
type pendingSettlement struct {
	txHash    string
	payer     string
	createdAt time.Time
}

// facilitatorSettleResponse is the facilitator's synchronous reply to a
// /settle call: it may already carry a confirmed tx, or hand back a hash to
// poll.
type facilitatorSettleResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error"`
}

type facilitatorStatusResponse struct {
	Confirmed bool `json:"confirmed"`
	Success   bool `json:"success"`
}

// Settler settles a verified authorization: with a facilitatorURL it posts
// the payment to that facilitator's /settle endpoint, without one it
// broadcasts transferWithAuthorization itself through selfChain. Submission
// happens inside the request: the proxy serves the route only after Submit
// reports success, and a rejected submission records a payer failure and
// is answered with a 500 instead of the attestation. Only confirmation is
// reconciled afterward (RunConfirmations), feeding the outcome into payer
// enforcement. Grounded on settlement/settle.go's per-network
// dispatch shape (collapsed to one HTTP call instead of one chain client
// per network) and original_source/sho/x402_proxy.py's
// process_pending_confirmations loop for the async reconciliation.
type Settler struct {
	http           *resty.Client
	facilitatorURL string
	selfChain      ChainSubmitter
	enforcer       *Enforcer
	timeout        time.Duration
	logger         logging.Logger

	mu      sync.Mutex
	pending []pendingSettlement
}

// NewSettler submits settlements to facilitatorURL over HTTP. Pass
// selfChain (typically an *evmclient.Client) to fall back to broadcasting
// directly when facilitatorURL is empty — a self-hosted deployment acting
// as its own facilitator rather than depending on an external one.
func NewSettler(facilitatorURL string, selfChain ChainSubmitter, enforcer *Enforcer, timeout time.Duration, logger logging.Logger) *Settler {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Settler{
		http:           resty.New().SetTimeout(10 * time.Second),
		facilitatorURL: facilitatorURL,
		selfChain:      selfChain,
		enforcer:       enforcer,
		timeout:        timeout,
		logger:         logger,
	}
}

// Submit hands the verified authorization off for settlement — to the
// configured facilitator if one is set, otherwise by broadcasting directly
// via selfChain — and queues the resulting tx hash for confirmation. It
// returns as soon as submission is acknowledged; callers respond to the
// client optimistically rather than block on confirmation.
func (s *Settler) Submit(ctx context.Context, req x402types.VerifyRequest, auth x402types.EIP3009Authorization, sigHex string) (x402types.SettlementResult, error) {
	if s.facilitatorURL == "" {
		return s.submitSelf(ctx, req, auth, sigHex)
	}
	return s.submitFacilitator(ctx, req, auth.From)
}

func (s *Settler) submitFacilitator(ctx context.Context, req x402types.VerifyRequest, payer string) (x402types.SettlementResult, error) {
	var out facilitatorSettleResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(s.facilitatorURL + "/settle")
	if err != nil {
		s.enforcer.RecordFailure(payer)
		return x402types.SettlementResult{Success: false, Error: err.Error()}, nil
	}
	if resp.IsError() {
		s.enforcer.RecordFailure(payer)
		return x402types.SettlementResult{Success: false, Error: fmt.Sprintf("facilitator returned %d", resp.StatusCode())}, nil
	}
	if !out.Success {
		s.enforcer.RecordFailure(payer)
		return x402types.SettlementResult{Success: false, Error: out.Error}, nil
	}

	if out.Confirmed {
		s.enforcer.RecordSuccess(payer)
		return x402types.SettlementResult{Success: true, TxHash: out.TxHash, Confirmed: true}, nil
	}
	s.enqueue(out.TxHash, payer)
	return x402types.SettlementResult{Success: true, TxHash: out.TxHash, Confirmed: false}, nil
}

func (s *Settler) submitSelf(ctx context.Context, req x402types.VerifyRequest, auth x402types.EIP3009Authorization, sigHex string) (x402types.SettlementResult, error) {
	v, r, sBytes, err := evmclient.SplitSignature(sigHex)
	if err != nil {
		return x402types.SettlementResult{Success: false, Error: x402types.ReasonInvalidPayload}, nil
	}
	txHash, err := s.selfChain.SubmitTransferWithAuthorization(ctx, req.PaymentRequirements.Asset, auth, v, r, sBytes)
	if err != nil {
		s.enforcer.RecordFailure(auth.From)
		return x402types.SettlementResult{Success: false, Error: err.Error()}, nil
	}
	s.enqueue(txHash, auth.From)
	return x402types.SettlementResult{Success: true, TxHash: txHash, Confirmed: false}, nil
}

func (s *Settler) enqueue(txHash, payer string) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingSettlement{txHash: txHash, payer: payer, createdAt: time.Now()})
	s.mu.Unlock()
}

// RunConfirmations periodically reconciles outstanding settlements until
// ctx is canceled. When a facilitator is configured, confirmation status is
// polled from it directly; selfCheck is used instead (and may be nil,
// leaving pending entries to age out via timeout) when self-settling.
func (s *Settler) RunConfirmations(ctx context.Context, interval time.Duration, selfCheck func(ctx context.Context, txHash string) (confirmed, success bool, err error)) {
	check := selfCheck
	if s.facilitatorURL != "" {
		check = s.pollFacilitator
	}
	if check == nil {
		check = func(context.Context, string) (bool, bool, error) { return false, false, nil }
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx, check)
		}
	}
}

func (s *Settler) pollFacilitator(ctx context.Context, txHash string) (confirmed, success bool, err error) {
	var out facilitatorStatusResponse
	resp, err := s.http.R().SetContext(ctx).SetResult(&out).Get(s.facilitatorURL + "/settle/" + txHash)
	if err != nil {
		return false, false, err
	}
	if resp.IsError() {
		return false, false, fmt.Errorf("facilitator status returned %d", resp.StatusCode())
	}
	return out.Confirmed, out.Success, nil
}

func (s *Settler) reconcile(ctx context.Context, checkConfirmed func(ctx context.Context, txHash string) (confirmed, success bool, err error)) {
	s.mu.Lock()
	remaining := s.pending[:0]
	batch := append([]pendingSettlement{}, s.pending...)
	s.mu.Unlock()

	for _, p := range batch {
		if time.Since(p.createdAt) > s.timeout {
			s.enforcer.RecordFailure(p.payer)
			s.logger.Warn("settlement timed out", map[string]any{"tx_hash": p.txHash, "payer": p.payer})
			continue
		}

		confirmed, success, err := checkConfirmed(ctx, p.txHash)
		if err != nil || !confirmed {
			remaining = append(remaining, p)
			continue
		}
		if success {
			s.enforcer.RecordSuccess(p.payer)
		} else {
			s.enforcer.RecordFailure(p.payer)
		}
	}

	s.mu.Lock()
	s.pending = remaining
	s.mu.Unlock()
}
