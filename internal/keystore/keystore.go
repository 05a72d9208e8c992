// Package keystore loads or generates the three persistent secrets spec
// §4.5/§6 names: the ECDSA/Schnorr private scalar, the Ed25519 seed, and the
// macaroon root secret. All three live under one directory with 0600
// permissions and are read once at boot; none are ever logged.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	ecdsaKeyFile = "ecdsa_schnorr.key"
	ed25519File  = "ed25519.seed"
	rootKeyFile  = "macaroon_root.key"

	filePerm = 0o600
	dirPerm  = 0o700
)

// Keys holds the loaded (or freshly generated) signing material for a
// single process lifetime. v1 never rotates these; replacing them is an
// operator action that invalidates every outstanding macaroon.
type Keys struct {
	// ECDSA is also the scalar used for Schnorr digit-decomposed
	// attestations (spec §4.3): one Bitcoin-compatible curve keypair
	// serves both the lightning rail's signature and the DLC attestor.
	ECDSA      *secp256k1.PrivateKey
	Ed25519    ed25519.PrivateKey
	MacaroonRoot []byte
}

// Load reads dir's three key files, generating and persisting any that are
// absent. dir is created with 0700 permissions if missing.
func Load(dir string) (*Keys, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("keystore: create %s: %w", dir, err)
	}

	ecdsaKey, err := loadOrGenerate(filepath.Join(dir, ecdsaKeyFile), 32, randomScalarBytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: ecdsa/schnorr key: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(ecdsaKey)

	edSeed, err := loadOrGenerate(filepath.Join(dir, ed25519File), ed25519.SeedSize, func() ([]byte, error) {
		b := make([]byte, ed25519.SeedSize)
		_, err := rand.Read(b)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: ed25519 seed: %w", err)
	}

	rootKey, err := loadOrGenerate(filepath.Join(dir, rootKeyFile), 32, func() ([]byte, error) {
		b := make([]byte, 32)
		_, err := rand.Read(b)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: macaroon root secret: %w", err)
	}

	return &Keys{
		ECDSA:        priv,
		Ed25519:      ed25519.NewKeyFromSeed(edSeed),
		MacaroonRoot: rootKey,
	}, nil
}

// loadOrGenerate reads path; if absent or the wrong length, it generates
// wantLen fresh bytes via gen, persists them at 0600, and returns them.
func loadOrGenerate(path string, wantLen int, gen func() ([]byte, error)) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil && len(b) == wantLen {
		return b, nil
	}
	if err == nil {
		return nil, fmt.Errorf("keystore: %s: expected %d bytes, found %d", path, wantLen, len(b))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	fresh, genErr := gen()
	if genErr != nil {
		return nil, fmt.Errorf("keystore: generate %s: %w", path, genErr)
	}
	if writeErr := os.WriteFile(path, fresh, filePerm); writeErr != nil {
		return nil, fmt.Errorf("keystore: persist %s: %w", path, writeErr)
	}
	return fresh, nil
}

// randomScalarBytes generates 32 random bytes valid as a secp256k1 private
// scalar. secp256k1.PrivKeyFromBytes reduces mod the curve order, so any 32
// random bytes are usable; rejection sampling is unnecessary at this key
// size since the bias is cryptographically negligible.
func randomScalarBytes() ([]byte, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	return b, err
}
