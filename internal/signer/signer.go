// Package signer implements the pure transformation spec §4.3 describes:
// canonicalize an Assertion, sign it under the rail-appropriate scheme, and
// render the public key. schnorr.go additionally implements the
// digit-decomposed derivatives attestation.
package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/myceliasignal/slo/internal/domain"
)

// Scheme names the signing algorithm a rail requires.
type Scheme string

const (
	SchemeECDSA   Scheme = "ecdsa"
	SchemeEd25519 Scheme = "ed25519"
)

// Bundle is the rail-neutral paid-response payload from spec §6: the
// canonical string, its signature, the signer's public key, and the scheme
// used, all base64/hex-rendered ready for JSON marshaling.
type Bundle struct {
	Domain        string `json:"domain"`
	Canonical     string `json:"canonical"`
	Signature     string `json:"signature"`
	PubKey        string `json:"pubkey"`
	SigningScheme Scheme `json:"signing_scheme"`
}

// Signer holds both persistent keypairs loaded once from the Keystore.
type Signer struct {
	ecdsaPriv *secp256k1.PrivateKey
	ed25519Priv ed25519.PrivateKey
}

// New builds a Signer from the Keystore's loaded key material.
func New(ecdsaPriv *secp256k1.PrivateKey, ed25519Priv ed25519.PrivateKey) *Signer {
	return &Signer{ecdsaPriv: ecdsaPriv, ed25519Priv: ed25519Priv}
}

// Sign canonicalizes a and signs it under scheme, returning the bundle the
// proxy serializes verbatim (lightning rail) or wraps with a payment object
// (stablecoin rail).
func (s *Signer) Sign(a domain.Assertion, scheme Scheme) (Bundle, error) {
	canonical := domain.Canonicalize(a)
	digest := sha256.Sum256([]byte(canonical))

	switch scheme {
	case SchemeECDSA:
		sig := ecdsa.Sign(s.ecdsaPriv, digest[:])
		pub := s.ecdsaPriv.PubKey().SerializeCompressed()
		return Bundle{
			Domain:        a.Domain,
			Canonical:     canonical,
			Signature:     base64.StdEncoding.EncodeToString(sig.Serialize()),
			PubKey:        hex.EncodeToString(pub),
			SigningScheme: SchemeECDSA,
		}, nil

	case SchemeEd25519:
		sig := ed25519.Sign(s.ed25519Priv, digest[:])
		pub := s.ed25519Priv.Public().(ed25519.PublicKey)
		return Bundle{
			Domain:        a.Domain,
			Canonical:     canonical,
			Signature:     base64.StdEncoding.EncodeToString(sig),
			PubKey:        hex.EncodeToString(pub),
			SigningScheme: SchemeEd25519,
		}, nil

	default:
		return Bundle{}, fmt.Errorf("signer: unknown scheme %q", scheme)
	}
}

// Verify checks a Bundle against the pubkey it carries; used by tests and by
// consumers that want to self-check before trusting a response.
func Verify(b Bundle) (bool, error) {
	digest := sha256.Sum256([]byte(b.Canonical))
	sigBytes, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return false, fmt.Errorf("signer: decode signature: %w", err)
	}
	pubBytes, err := hex.DecodeString(b.PubKey)
	if err != nil {
		return false, fmt.Errorf("signer: decode pubkey: %w", err)
	}

	switch b.SigningScheme {
	case SchemeECDSA:
		sig, err := ecdsa.ParseDERSignature(sigBytes)
		if err != nil {
			return false, fmt.Errorf("signer: parse DER signature: %w", err)
		}
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return false, fmt.Errorf("signer: parse pubkey: %w", err)
		}
		return sig.Verify(digest[:], pub), nil

	case SchemeEd25519:
		if len(pubBytes) != ed25519.PublicKeySize {
			return false, fmt.Errorf("signer: bad ed25519 pubkey length %d", len(pubBytes))
		}
		return ed25519.Verify(ed25519.PublicKey(pubBytes), digest[:], sigBytes), nil

	default:
		return false, fmt.Errorf("signer: unknown scheme %q", b.SigningScheme)
	}
}
