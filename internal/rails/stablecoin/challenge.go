package stablecoin

import (
	"math/big"
	"time"

	"github.com/myceliasignal/slo/internal/x402types"
)

// ChallengeConfig names the fixed parts of every 402 response this rail
// issues: the chain/asset the proxy accepts payment on and the address
// funds settle to. Grounded on original_source/sho/x402_proxy.py's
// USDC_CONTRACT/PAYMENT_ADDRESS module-level constants, made per-instance
// configuration instead.
type ChallengeConfig struct {
	Network       string
	AssetContract string
	PayTo         string
	BaseURL       string
	NonceTTL      time.Duration
}

// Challenger builds 402 Payment Required bodies for unpaid requests to a
// stablecoin-gated route.
type Challenger struct {
	cfg   ChallengeConfig
	nonce *NonceStore
}

func NewChallenger(cfg ChallengeConfig, nonce *NonceStore) *Challenger {
	return &Challenger{cfg: cfg, nonce: nonce}
}

// Build issues a fresh nonce and assembles the accepts[] entry for
// resourcePath, pricing it at priceUSD (a decimal string, e.g. "0.01").
// Grounded on main_handler's payment_body construction.
func (c *Challenger) Build(resourcePath, priceUSD, description string) (x402types.Response, string, error) {
	nonce, err := c.nonce.Create()
	if err != nil {
		return x402types.Response{}, "", err
	}

	atomicAmount, err := usdToAtomic(priceUSD)
	if err != nil {
		return x402types.Response{}, "", err
	}

	resource := c.cfg.BaseURL + resourcePath
	req := x402types.PaymentRequirements{
		Scheme:            "exact",
		Network:           c.cfg.Network,
		MaxAmountRequired: atomicAmount,
		Resource:          resource,
		Description:       description,
		MimeType:          "application/json",
		PayTo:             c.cfg.PayTo,
		Asset:             c.cfg.AssetContract,
		MaxTimeoutSeconds: int(c.cfg.NonceTTL.Seconds()),
		OutputSchema: map[string]interface{}{
			"input":  map[string]interface{}{"type": "http", "method": "GET", "url": resource},
			"output": map[string]interface{}{"type": "object", "description": "signed price attestation"},
		},
		Extra: map[string]interface{}{
			"nonce":      nonce,
			"expires_in": int(c.cfg.NonceTTL.Seconds()),
		},
	}

	c.nonce.Bind(nonce, req)

	return x402types.Response{
		X402Version: x402types.Version,
		Accepts:     []x402types.PaymentRequirements{req},
		Error:       "X-PAYMENT header is required",
	}, nonce, nil
}

// usdToAtomic converts a decimal USD price string into a 6-decimal atomic
// unit amount (USDC's native decimals), matching the original's
// int(float(price_usd) * 1_000_000) without floating-point rounding.
func usdToAtomic(priceUSD string) (string, error) {
	amount, ok := new(big.Rat).SetString(priceUSD)
	if !ok {
		return "", errInvalidPrice(priceUSD)
	}
	scaled := new(big.Rat).Mul(amount, big.NewRat(1_000_000, 1))
	return new(big.Int).Div(scaled.Num(), scaled.Denom()).String(), nil
}

type errInvalidPrice string

func (e errInvalidPrice) Error() string { return "stablecoin: invalid price " + string(e) }
