package lightning

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/myceliasignal/slo/internal/domain"
)

// Challenge is the 402 state a client must redeem: pay Invoice, then present
// the macaroon back together with the payment preimage.
type Challenge struct {
	Macaroon    string // base64, as embedded in WWW-Authenticate
	Invoice     string // BOLT-11 payment request
	PaymentHash []byte
	PriceSats   int64
	IssuedAt    time.Time
}

// Token is a redeemed Challenge: a macaroon whose payment hash the presented
// preimage actually hashes to.
type Token struct {
	Macaroon []byte
	Preimage []byte
}

// WWWAuthenticate renders the header value a 402 response carries, matching
// original_source/l402-proxy/main.go's `L402 macaroon="...", invoice="..."`.
func (c Challenge) WWWAuthenticate() string {
	return fmt.Sprintf(`L402 macaroon="%s", invoice="%s"`, c.Macaroon, c.Invoice)
}

// Gateway issues Lightning payment challenges and admits requests bearing a
// redeemed token, grounded on original_source/l402-proxy/main.go's
// createInvoice+mintMacaroon (challenge issuance) and verifyL402 (admission).
type Gateway struct {
	invoices *InvoiceClient
	minter   *Minter
}

func NewGateway(invoices *InvoiceClient, minter *Minter) *Gateway {
	return &Gateway{invoices: invoices, minter: minter}
}

// Challenge issues a fresh invoice for priceSats and mints a macaroon bound
// to its payment hash.
func (g *Gateway) Challenge(ctx context.Context, priceSats int64, memo string, expiry time.Duration) (Challenge, error) {
	invoice, hash, err := g.invoices.Create(ctx, priceSats, memo, int64(expiry.Seconds()))
	if err != nil {
		return Challenge{}, fmt.Errorf("lightning: challenge: %w", err)
	}
	mac, err := g.minter.Mint(hash)
	if err != nil {
		return Challenge{}, fmt.Errorf("lightning: challenge: %w", err)
	}
	encoded, err := mac.MarshalBinary()
	if err != nil {
		return Challenge{}, fmt.Errorf("lightning: marshal macaroon: %w", err)
	}
	return Challenge{
		Macaroon:    encodeMacaroon(encoded),
		Invoice:     invoice,
		PaymentHash: hash,
		PriceSats:   priceSats,
		IssuedAt:    time.Now(),
	}, nil
}

// Admit verifies the Authorization header of an incoming request: the
// macaroon must be one this rail minted, and the presented preimage must
// hash to the payment hash bound into it. A verified macaroon alone is not
// sufficient — original_source/l402-proxy/main.go's verifyL402 checks only
// macaroon validity and never the preimage, which would let a client reuse
// an unpaid macaroon it observed on the wire; this rail closes that gap.
func (g *Gateway) Admit(authHeader string) (*domain.OracleError, error) {
	paymentHash, preimage, err := g.minter.Verify(authHeader)
	if err != nil {
		return domain.NewOracleError(domain.ErrTokenInvalid, err.Error(), nil), nil
	}
	if len(preimage) != 32 {
		return domain.NewOracleError(domain.ErrTokenInvalid, "malformed preimage", nil), nil
	}
	computed := sha256.Sum256(preimage)
	if subtle.ConstantTimeCompare(computed[:], paymentHash) != 1 {
		return domain.NewOracleError(domain.ErrTokenInvalid, "preimage does not match payment hash", nil), nil
	}
	return nil, nil
}
