package dlc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/robfig/cron/v3"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/logging"
	"github.com/myceliasignal/slo/internal/signer"
)

// Scheduler runs the hourly announce/attest loop, grounded on
// original_source/dlc/scheduler.py's run_loop: attest the just-elapsed
// hour's event, then announce every hour up to horizon that isn't already
// announced. Driven by robfig/cron/v3 instead of a sleep-until-next-hour
// loop, matching the teacher's use of cron for scheduled background work.
type Scheduler struct {
	oraclePriv  *secp256k1.PrivateKey
	priceEngine *aggregate.Engine
	pair        string
	digitCount  int
	horizon     time.Duration
	store       *Store
	logger      logging.Logger
	cron        *cron.Cron
}

func NewScheduler(oraclePriv *secp256k1.PrivateKey, priceEngine *aggregate.Engine, pair string, digitCount int, horizon time.Duration, store *Store, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Scheduler{
		oraclePriv: oraclePriv, priceEngine: priceEngine, pair: pair,
		digitCount: digitCount, horizon: horizon, store: store, logger: logger,
	}
}

// Start registers the hourly job and runs an initial attest+announce pass
// immediately, matching run_loop's "initial run" before entering its sleep
// loop. The cron instance is kept on the Scheduler; the caller stops it
// via Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runOnce(ctx)

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	_, err := c.AddFunc("5 0 * * * *", func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("dlc: schedule hourly job: %w", err)
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.AttestCurrentHour(ctx); err != nil {
		s.logger.Error("attest current hour failed", map[string]any{"error": err.Error()})
	}
	created, err := s.AnnounceUpcoming(s.horizon)
	if err != nil {
		s.logger.Error("announce upcoming failed", map[string]any{"error": err.Error()})
		return
	}
	s.logger.Info("announced upcoming events", map[string]any{"created": created})
}

// AnnounceUpcoming announces every hourly event between now and horizon
// that isn't already in the store.
func (s *Scheduler) AnnounceUpcoming(horizon time.Duration) (created int, err error) {
	for _, ts := range upcomingHours(horizon) {
		id := eventID(s.pair, ts)
		if _, ok := s.store.get(id); ok {
			continue
		}
		if _, err := s.announce(ts); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Scheduler) announce(maturity time.Time) (*Event, error) {
	rPoints := make([][]byte, s.digitCount)
	secrets := make([][]byte, s.digitCount)
	for i := 0; i < s.digitCount; i++ {
		k, r, err := signer.GenerateNonce()
		if err != nil {
			return nil, fmt.Errorf("dlc: generate nonce for digit %d: %w", i, err)
		}
		secrets[i] = k
		rPoints[i] = r
	}

	e := &Event{
		EventID:    eventID(s.pair, maturity),
		Pair:       s.pair,
		Maturity:   maturity,
		DigitCount: s.digitCount,
		RPoints:    rPoints,
	}
	s.store.put(e, secrets)
	s.logger.Info("announced event", map[string]any{"event_id": e.EventID})
	return e, nil
}

// AttestCurrentHour attests the event for the hour that just elapsed,
// announcing it first if the scheduler somehow missed that announcement.
func (s *Scheduler) AttestCurrentHour(ctx context.Context) (*Event, error) {
	maturity := currentHour()
	id := eventID(s.pair, maturity)

	if existing, ok := s.store.get(id); ok && existing.AttestedAt != nil {
		return existing, nil
	}

	if _, ok := s.store.get(id); !ok {
		s.logger.Warn("attesting unannounced event", map[string]any{"event_id": id})
		if _, err := s.announce(maturity); err != nil {
			return nil, err
		}
	}

	assertion, err := s.priceEngine.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlc: fetch settlement price: %w", err)
	}

	return s.attest(id, assertion.Value.Round(0).IntPart())
}

func (s *Scheduler) attest(id string, price int64) (*Event, error) {
	secrets, ok := s.store.takeSecrets(id)
	if !ok {
		return nil, fmt.Errorf("dlc: no nonce secrets for event %s (already attested or unannounced)", id)
	}
	event, ok := s.store.get(id)
	if !ok {
		return nil, fmt.Errorf("dlc: unknown event %s", id)
	}

	digits, err := priceDigits(price, event.DigitCount)
	if err != nil {
		return nil, err
	}

	sValues := make([][]byte, event.DigitCount)
	for i, digit := range digits {
		sv, err := signer.AttestDigit(id, i, digit, secrets[i], s.oraclePriv)
		if err != nil {
			return nil, fmt.Errorf("dlc: attest digit %d: %w", i, err)
		}
		sValues[i] = sv
	}

	now := time.Now().UTC()
	event.Price = &price
	event.SValues = sValues
	event.AttestedAt = &now
	s.store.put(event, nil)

	s.logger.Info("attested event", map[string]any{"event_id": id, "price": price})
	return event, nil
}

// priceDigits decomposes price into digitCount base-10 digits,
// zero-padded, matching original_source/dlc/attestor.py's
// str(price_int).zfill(NUM_DIGITS).
func priceDigits(price int64, digitCount int) ([]int, error) {
	s := strconv.FormatInt(price, 10)
	if len(s) > digitCount {
		return nil, fmt.Errorf("dlc: price %d does not fit in %d digits", price, digitCount)
	}
	for len(s) < digitCount {
		s = "0" + s
	}
	digits := make([]int, digitCount)
	for i, c := range s {
		digits[i] = int(c - '0')
	}
	return digits, nil
}

// currentHour truncates now to the top of the hour, matching
// attest_current_hour's `now.replace(minute=0, second=0, microsecond=0)`.
func currentHour() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
}

// upcomingHours returns the top-of-hour timestamps from the next hour
// boundary out to horizon, matching next_hours().
func upcomingHours(horizon time.Duration) []time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
	count := int(horizon / time.Hour)
	out := make([]time.Time, count)
	for i := 0; i < count; i++ {
		out[i] = next.Add(time.Duration(i) * time.Hour)
	}
	return out
}
