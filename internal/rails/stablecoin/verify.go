package stablecoin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/myceliasignal/slo/internal/evmclient"
	"github.com/myceliasignal/slo/internal/x402types"
)

// ChainReader is the subset of *evmclient.Client the Verifier needs,
// pulled out as an interface so tests can stand in a fake instead of
// dialing a live chain.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	AuthorizationState(ctx context.Context, token, authorizer string, nonce [32]byte) (bool, error)
	BalanceOf(ctx context.Context, token, owner string) (*big.Int, error)
	SimulateTransferWithAuthorization(ctx context.Context, token string, auth x402types.EIP3009Authorization, v uint8, r, s [32]byte) (bool, error)
}

// Verifier checks a submitted EIP-3009 authorization against payment
// requirements and current chain state, grounded on
// clients/ethereum.go's VerifyPayment (cleaned of its debug prints and the
// "panic(\"OOPS\")" on signature mismatch) and generalized to a single
// injected ChainReader rather than a hardcoded USDC domain.
type Verifier struct {
	evm    ChainReader
	domain evmclient.TokenDomain
	now    func() time.Time
}

func NewVerifier(evm ChainReader, domain evmclient.TokenDomain) *Verifier {
	return &Verifier{evm: evm, domain: domain, now: time.Now}
}

// Verify performs the full pre-settlement check spec §4.4 requires before a
// request is let through: signature recovery, amount/window checks, nonce
// freshness, balance sufficiency, and an eth_call simulation of the
// transfer itself.
func (v *Verifier) Verify(ctx context.Context, req x402types.VerifyRequest) (x402types.VerificationResult, error) {
	reqs := req.PaymentRequirements

	raw, err := base64.StdEncoding.DecodeString(req.PaymentPayload.Payload)
	if err != nil {
		return invalid(x402types.ReasonInvalidPayload), nil
	}
	var payload x402types.EIP3009Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return invalid(x402types.ReasonInvalidPayload), nil
	}
	auth := payload.Authorization

	chainID, err := v.evm.ChainID(ctx)
	if err != nil {
		return x402types.VerificationResult{}, fmt.Errorf("stablecoin: chain id: %w", err)
	}

	signer, err := evmclient.RecoverEIP3009Signer(v.domain, chainID, reqs.Asset, auth, payload.Signature)
	if err != nil || !strings.EqualFold(signer, auth.From) {
		return invalid(x402types.ReasonBadSignature), nil
	}

	amount, ok := new(big.Int).SetString(reqs.MaxAmountRequired, 10)
	if !ok {
		return x402types.VerificationResult{}, fmt.Errorf("stablecoin: invalid maxAmountRequired %q", reqs.MaxAmountRequired)
	}
	authValue, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok || authValue.Cmp(amount) < 0 {
		return invalid(x402types.ReasonInsufficientAmount), nil
	}

	validAfter, ok1 := new(big.Int).SetString(auth.ValidAfter, 10)
	validBefore, ok2 := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok1 || !ok2 {
		return invalid(x402types.ReasonInvalidPayload), nil
	}
	now := big.NewInt(v.now().Unix())
	if now.Cmp(validAfter) < 0 {
		return invalid(x402types.ReasonNotYetValid), nil
	}
	if now.Cmp(validBefore) > 0 {
		return invalid(x402types.ReasonExpired), nil
	}

	nonce, err := evmclient.NonceBytes32(auth.Nonce)
	if err != nil {
		return invalid(x402types.ReasonInvalidPayload), nil
	}
	used, err := v.evm.AuthorizationState(ctx, reqs.Asset, auth.From, nonce)
	if err != nil {
		return x402types.VerificationResult{}, fmt.Errorf("stablecoin: authorization state: %w", err)
	}
	if used {
		return invalid(x402types.ReasonNonceUsed), nil
	}

	bal, err := v.evm.BalanceOf(ctx, reqs.Asset, auth.From)
	if err != nil {
		return x402types.VerificationResult{}, fmt.Errorf("stablecoin: balance: %w", err)
	}
	if bal.Cmp(amount) < 0 {
		return invalid(x402types.ReasonInsufficientBalance), nil
	}

	sigV, r, s, err := evmclient.SplitSignature(payload.Signature)
	if err != nil {
		return invalid(x402types.ReasonInvalidPayload), nil
	}
	ok, err = v.evm.SimulateTransferWithAuthorization(ctx, reqs.Asset, auth, sigV, r, s)
	if err != nil {
		return x402types.VerificationResult{}, fmt.Errorf("stablecoin: simulate transfer: %w", err)
	}
	if !ok {
		return invalid(x402types.ReasonSimulationFailed), nil
	}

	ts := v.now().UTC()
	return x402types.VerificationResult{IsValid: true, Payer: auth.From, Timestamp: &ts}, nil
}

func invalid(reason string) x402types.VerificationResult {
	return x402types.VerificationResult{IsValid: false, InvalidReason: reason}
}
