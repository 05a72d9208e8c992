// Package lightning implements the L402 payment rail: LND invoice
// issuance, macaroon minting/verification bound to a payment hash, and the
// WWW-Authenticate challenge a client redeems by paying the invoice and
// presenting the resulting macaroon back.
package lightning

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/macaroon.v2"
)

// l402Version is the only identifier version this rail mints; a future
// version could add caveats without breaking older tokens' decode path.
const l402Version = 0

// identifierLen is the L402 identifier layout: 2-byte version + 32-byte
// payment hash + 32-byte random token id.
const identifierLen = 66

// Minter mints and verifies macaroons bound to Lightning payment hashes,
// grounded on original_source/l402-proxy/main.go's mintMacaroon/verifyL402.
type Minter struct {
	rootKey []byte
	location string
}

func NewMinter(rootKey []byte, location string) *Minter {
	return &Minter{rootKey: rootKey, location: location}
}

// Mint builds a fresh macaroon bound to paymentHash. The client cannot
// forge a valid macaroon for a hash it hasn't been issued an invoice for,
// since the root key never leaves the process.
func (m *Minter) Mint(paymentHash []byte) (*macaroon.Macaroon, error) {
	if len(paymentHash) != 32 {
		return nil, fmt.Errorf("lightning: payment hash must be 32 bytes, got %d", len(paymentHash))
	}

	id := make([]byte, identifierLen)
	binary.BigEndian.PutUint16(id[:2], l402Version)
	copy(id[2:34], paymentHash)
	if _, err := rand.Read(id[34:66]); err != nil {
		return nil, fmt.Errorf("lightning: generate token id: %w", err)
	}

	mac, err := macaroon.New(m.rootKey, id, m.location, macaroon.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("lightning: mint macaroon: %w", err)
	}
	return mac, nil
}

// Verify checks the "L402 <macaroon>:<preimage>" (or legacy "LSAT") value of
// an Authorization header against the root key. It does not itself confirm
// the invoice was paid — Gateway.Admit does that by checking the preimage
// hashes to the payment hash embedded in the macaroon's identifier.
func (m *Minter) Verify(authHeader string) (paymentHash, preimage []byte, err error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || (!strings.EqualFold(scheme, "L402") && !strings.EqualFold(scheme, "LSAT")) {
		return nil, nil, fmt.Errorf("lightning: unrecognized auth scheme")
	}

	macPart, preimagePart, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, nil, fmt.Errorf("lightning: malformed token")
	}

	macBytes, decErr := decodeMacaroon(macPart)
	if decErr != nil {
		return nil, nil, fmt.Errorf("lightning: decode macaroon: %w", decErr)
	}
	preimageBytes, decErr := hex.DecodeString(preimagePart)
	if decErr != nil {
		return nil, nil, fmt.Errorf("lightning: decode preimage: %w", decErr)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, nil, fmt.Errorf("lightning: unmarshal macaroon: %w", err)
	}
	if err := mac.Verify(m.rootKey, func(caveat string) error { return nil }, nil); err != nil {
		return nil, nil, fmt.Errorf("lightning: macaroon verification failed: %w", err)
	}

	id := mac.Id()
	if len(id) != identifierLen {
		return nil, nil, fmt.Errorf("lightning: unexpected identifier length %d", len(id))
	}
	return id[2:34], preimageBytes, nil
}

func encodeMacaroon(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeMacaroon(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
