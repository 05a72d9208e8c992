package stablecoin

import (
	"strings"
	"sync"
	"time"
)

// EnforcementTier names where a payer sits in the clean → grace → blocked
// progression spec §4.4/§9 describes.
type EnforcementTier int

const (
	TierClean EnforcementTier = iota
	TierGrace
	TierBlocked
)

// EnforcementStatus is the decision Enforcer.Check returns.
type EnforcementStatus struct {
	Allowed   bool
	Tier      EnforcementTier
	Reason    string
	Remaining time.Duration
}

// Enforcer tracks per-payer failure history and derives the forward-only
// clean → grace → blocked state machine from it, grounded on
// original_source/sho/x402_proxy.py's check_enforcement/record_failure.
// Advancing to blocked never reverts; a blocked payer stays blocked for
// the lifetime of the process (spec §4.4's "forward-only" invariant).
type Enforcer struct {
	mu             sync.Mutex
	graceCooldown  time.Duration
	blockThreshold int
	blockWindow    time.Duration
	failures       map[string][]time.Time
	blocked        map[string]struct{}
	now            func() time.Time
}

func NewEnforcer(graceCooldown time.Duration, blockThreshold int, blockWindow time.Duration) *Enforcer {
	return &Enforcer{
		graceCooldown:  graceCooldown,
		blockThreshold: blockThreshold,
		blockWindow:    blockWindow,
		failures:       make(map[string][]time.Time),
		blocked:        make(map[string]struct{}),
		now:            time.Now,
	}
}

// Check reports whether payer may proceed. It records nothing; its only
// change to state is dropping failures that have left the rolling window.
func (e *Enforcer) Check(payer string) EnforcementStatus {
	addr := strings.ToLower(payer)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, blocked := e.blocked[addr]; blocked {
		return EnforcementStatus{Allowed: false, Tier: TierBlocked, Reason: "hard_blocked"}
	}

	failures := e.prune(addr)
	if len(failures) == 0 {
		return EnforcementStatus{Allowed: true, Tier: TierClean}
	}

	last := failures[len(failures)-1]
	elapsed := e.now().Sub(last)
	if elapsed < e.graceCooldown {
		return EnforcementStatus{
			Allowed:   false,
			Tier:      TierGrace,
			Reason:    "grace_cooldown",
			Remaining: e.graceCooldown - elapsed,
		}
	}
	return EnforcementStatus{Allowed: true, Tier: TierClean}
}

// RecordFailure appends a failure timestamp and advances payer to blocked
// once the rolling-window threshold is crossed.
func (e *Enforcer) RecordFailure(payer string) EnforcementStatus {
	addr := strings.ToLower(payer)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.failures[addr] = append(e.prune(addr), e.now())
	if len(e.failures[addr]) >= e.blockThreshold {
		e.blocked[addr] = struct{}{}
		return EnforcementStatus{Allowed: false, Tier: TierBlocked, Reason: "hard_blocked"}
	}
	return EnforcementStatus{Allowed: false, Tier: TierGrace, Reason: "grace_cooldown"}
}

// RecordSuccess is a no-op: the rolling window is left to expire the
// history naturally rather than clearing it, so a payer who has just
// tripped the grace cooldown can't launder it with an unrelated success.
func (e *Enforcer) RecordSuccess(payer string) {}

func (e *Enforcer) prune(addr string) []time.Time {
	cutoff := e.now().Add(-e.blockWindow)
	kept := e.failures[addr][:0]
	for _, t := range e.failures[addr] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.failures[addr] = kept
	return kept
}
