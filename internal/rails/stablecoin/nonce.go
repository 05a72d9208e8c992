// Package stablecoin implements the x402/EIP-3009 payment rail: nonce
// replay protection, tiered payer enforcement, the USDC depeg circuit
// breaker, and payment verification/settlement against a single EVM chain.
package stablecoin

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/myceliasignal/slo/internal/x402types"
)

// NonceStore is a single-use, TTL-bounded store for request nonces
// (distinct from the EIP-3009 authorization nonce), grounded on
// original_source/sho/x402_proxy.py's create_nonce/validate_nonce.
type NonceStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	created map[string]time.Time
	bound   map[string]x402types.PaymentRequirements
	now     func() time.Time
}

func NewNonceStore(ttl time.Duration) *NonceStore {
	return &NonceStore{
		ttl:     ttl,
		created: make(map[string]time.Time),
		bound:   make(map[string]x402types.PaymentRequirements),
		now:     time.Now,
	}
}

// Create mints and records a fresh nonce, pruning expired entries first.
func (s *NonceStore) Create() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)
	s.created[nonce] = s.now()
	return nonce, nil
}

// Consume validates and single-use-consumes nonce. A nonce that does not
// exist, or has expired, fails and is never accepted twice.
func (s *NonceStore) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, ok := s.created[nonce]
	if !ok {
		return false
	}
	delete(s.created, nonce)
	delete(s.bound, nonce)
	return s.now().Sub(created) <= s.ttl
}

// Bind records the PaymentRequirements minted for nonce at challenge time,
// so Resolve can later validate a submitted payment against what the
// server actually offered rather than values a client echoes back.
func (s *NonceStore) Bind(nonce string, reqs x402types.PaymentRequirements) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound[nonce] = reqs
}

// Resolve atomically single-use-consumes nonce (the same compare-and-set
// Consume performs) and returns the PaymentRequirements bound to it at mint
// time. ok is false if nonce is unknown, expired, or already consumed —
// the caller should treat that as a replayed/forged token.
func (s *NonceStore) Resolve(nonce string) (x402types.PaymentRequirements, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, ok := s.created[nonce]
	if !ok {
		return x402types.PaymentRequirements{}, false
	}
	reqs := s.bound[nonce]
	delete(s.created, nonce)
	delete(s.bound, nonce)
	if s.now().Sub(created) > s.ttl {
		return x402types.PaymentRequirements{}, false
	}
	return reqs, true
}

func (s *NonceStore) pruneLocked() {
	now := s.now()
	for n, created := range s.created {
		if now.Sub(created) > s.ttl {
			delete(s.created, n)
			delete(s.bound, n)
		}
	}
}
