// Package dlc implements the Schnorr digit-decomposed derivatives variant:
// hourly BTCUSD events are announced up to a configurable horizon ahead,
// then attested at maturity by releasing one Schnorr s-value per decimal
// digit of the settlement price. Grounded on
// original_source/dlc/attestor.py (nonce commitment / digit attestation)
// and original_source/dlc/scheduler.py (the hourly announce/attest loop).
package dlc

import (
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Event is one hourly settlement event, per spec §3's dlc.Event shape.
type Event struct {
	EventID    string
	Pair       string
	Maturity   time.Time
	DigitCount int
	RPoints    [][]byte // compressed secp256k1 points, one per digit
	SValues    [][]byte // populated only once attested
	Price      *int64
	AttestedAt *time.Time
}

// eventID matches original_source/dlc/attestor.py's event_id: pair plus the
// maturity timestamp rendered in the same RFC3339-with-Z form.
func eventID(pair string, maturity time.Time) string {
	return fmt.Sprintf("%s-%s", pair, maturity.UTC().Format("2006-01-02T15:04:05Z"))
}

// Store holds announced/attested events and the nonce secrets committed at
// announcement time, keyed by event ID. Nonce secrets are held only until
// attestation consumes them, mirroring the teacher's delete-the-secret-file
// step after create_attestation succeeds.
type Store struct {
	mu      sync.Mutex
	events  map[string]*Event
	secrets map[string][][]byte
}

func NewStore() *Store {
	return &Store{events: make(map[string]*Event), secrets: make(map[string][][]byte)}
}

func (s *Store) put(e *Event, secrets [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.EventID] = e
	if secrets != nil {
		s.secrets[e.EventID] = secrets
	}
}

func (s *Store) get(id string) (*Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

// takeSecrets removes and returns the nonce secrets for id, so a second
// attestation attempt can never replay the same k values.
func (s *Store) takeSecrets(id string) ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, ok := s.secrets[id]
	delete(s.secrets, id)
	return secrets, ok
}

// Get returns a snapshot of a stored event, or false if id is unknown.
func (s *Store) Get(id string) (Event, bool) {
	e, ok := s.get(id)
	if !ok {
		return Event{}, false
	}
	return *e, true
}

// List returns every stored event, for a supported-events listing.
func (s *Store) List() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out
}

// OraclePubKey is carried alongside announcements so a consumer can verify
// attestations without a separate key-distribution channel.
func OraclePubKey(priv *secp256k1.PrivateKey) []byte {
	return priv.PubKey().SerializeCompressed()
}
