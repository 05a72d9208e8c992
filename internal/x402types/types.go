// Package x402types holds the wire vocabulary of the x402 HTTP payment
// protocol, narrowed to the single scheme/network/asset combination this
// oracle's stablecoin rail actually serves: "exact" scheme, EIP-3009
// transferWithAuthorization, on a single EVM chain. The multi-chain
// (EVM/Solana/Cosmos) polymorphism of the wider x402 ecosystem has no
// component here to exercise it — see DESIGN.md.
package x402types

import (
	"fmt"
	"time"
)

// Version is the x402 protocol version this oracle speaks.
const Version = 1

// PaymentRequirements is the "accepts" entry of a 402 response: what a
// client must present to be let through.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource"`
	Description       string                 `json:"description"`
	MimeType          string                 `json:"mimeType"`
	PayTo             string                 `json:"payTo"`
	Asset             string                 `json:"asset"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

func (r PaymentRequirements) Validate() error {
	switch {
	case r.Scheme == "":
		return fmt.Errorf("x402types: scheme is required")
	case r.Network == "":
		return fmt.Errorf("x402types: network is required")
	case r.MaxAmountRequired == "":
		return fmt.Errorf("x402types: maxAmountRequired is required")
	case r.PayTo == "":
		return fmt.Errorf("x402types: payTo is required")
	case r.Asset == "":
		return fmt.Errorf("x402types: asset is required")
	case r.MaxTimeoutSeconds <= 0:
		return fmt.Errorf("x402types: maxTimeoutSeconds must be positive")
	}
	return nil
}

// Response is the full HTTP 402 body.
type Response struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// EIP3009Authorization is the signed struct behind transferWithAuthorization.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// EIP3009Payload is the decoded PaymentPayload.Payload for the exact scheme.
type EIP3009Payload struct {
	Signature     string               `json:"signature"`
	Authorization EIP3009Authorization `json:"authorization"`
}

// PaymentPayload is the undecoded client-submitted payment envelope;
// Payload is base64(json(EIP3009Payload)).
type PaymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     string `json:"payload"`
}

// VerifyRequest bundles a payload with the requirements it's checked against.
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerificationResult is the outcome of checking a payload against
// requirements, independent of whether it has been broadcast/settled yet.
type VerificationResult struct {
	IsValid       bool       `json:"isValid"`
	InvalidReason string     `json:"invalidReason,omitempty"`
	Payer         string     `json:"payer,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// SettlementResult is the outcome of broadcasting (or having already
// observed) the on-chain transferWithAuthorization call.
type SettlementResult struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash,omitempty"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

// Error codes surfaced in InvalidReason/Error fields.
const (
	ReasonInvalidPayload      = "invalid_payload"
	ReasonBadSignature        = "bad_signature"
	ReasonInsufficientAmount  = "insufficient_amount"
	ReasonExpired             = "authorization_expired"
	ReasonNotYetValid         = "authorization_not_yet_valid"
	ReasonNonceUsed           = "authorization_nonce_used"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonSimulationFailed    = "simulation_failed"
)
