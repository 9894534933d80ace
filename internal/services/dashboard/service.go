package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tally/internal/domain"
	"tally/internal/ports"
)

// Service derives per-carrier and per-day counters from the ledger and serves
// them through an explicitly invalidated cache. Correctness never depends on
// polling cadence: every mutating operation flips the dirty bit.
type Service struct {
	ledger ports.LedgerRepository
	state  ports.DashboardStateRepository
	loc    *time.Location
	now    ports.Clock

	mu     sync.Mutex
	cached domain.Snapshot
	valid  bool
	gen    uint64

	group singleflight.Group
}

func New(ledger ports.LedgerRepository, state ports.DashboardStateRepository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{ledger: ledger, state: state, loc: loc, now: time.Now}
}

// WithClock pins the timestamp source; tests only.
func (s *Service) WithClock(now ports.Clock) *Service {
	s.now = now
	return s
}

// Invalidate marks the cached snapshot stale. Called by every operation that
// mutates the ledger.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.gen++
	s.mu.Unlock()
}

// Get serves the cached snapshot when it is still valid, otherwise computes
// and caches. Concurrent cache misses share one computation.
func (s *Service) Get(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	if s.valid {
		snap := s.cached
		snap.Source = domain.SourceCache
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		return s.recompute(ctx, domain.SourceComputed)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot), nil
}

// Refresh recomputes unconditionally, bypassing the cache.
func (s *Service) Refresh(ctx context.Context) (domain.Snapshot, error) {
	return s.recompute(ctx, domain.SourceForced)
}

func (s *Service) recompute(ctx context.Context, source string) (domain.Snapshot, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	snap, err := s.compute(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Source = source
	s.mu.Lock()
	s.cached = snap
	// An Invalidate that landed while compute was reading the ledger means
	// this snapshot already misses a mutation; keep the dirty bit set.
	s.valid = gen == s.gen
	s.mu.Unlock()
	return snap, nil
}

// compute reads the ledger once and aggregates. Carrier counts run over every
// record regardless of date: carrier load is a lifetime total. The today
// counters cover the current station-local day, skip records at or before the
// daily-reset watermark, and add the persisted baseline on top.
func (s *Service) compute(ctx context.Context) (domain.Snapshot, error) {
	records, err := s.ledger.List(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list ledger: %w", err)
	}
	baseline, err := s.state.Baseline(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load baseline: %w", err)
	}

	now := s.now()
	today := domain.DayOf(now, s.loc)
	baselineLive := baseline.Day.Equal(today)

	snap := domain.Snapshot{
		Carriers:    make(map[string]int, len(domain.KnownCarriers)),
		LastUpdated: now,
	}
	for _, c := range domain.KnownCarriers {
		snap.Carriers[c] = 0
	}

	for _, rec := range records {
		if rec.Carrier != nil {
			if name := strings.TrimSpace(*rec.Carrier); name != "" {
				snap.Carriers[name]++
			}
		}
		if !domain.DayOf(rec.Timestamp, s.loc).Equal(today) {
			continue
		}
		if baselineLive && !rec.Timestamp.After(baseline.ResetAt) {
			continue
		}
		snap.TotalToday++
		switch rec.Status {
		case domain.StatusCollected:
			snap.CollectedToday++
		case domain.StatusFailed:
			snap.FailedToday++
		}
	}

	if baselineLive {
		snap.TotalToday += baseline.Total
		snap.CollectedToday += baseline.Collected
		snap.FailedToday += baseline.Failed
	}
	return snap, nil
}

// ResetDaily zeroes today's summary by persisting an empty baseline whose
// watermark excludes everything scanned so far. No ledger record is touched,
// so carrier totals are unaffected.
func (s *Service) ResetDaily(ctx context.Context) error {
	now := s.now()
	err := s.state.SetBaseline(ctx, domain.DailyBaseline{
		Day:     domain.DayOf(now, s.loc),
		ResetAt: now,
	})
	if err != nil {
		return fmt.Errorf("persist baseline: %w", err)
	}
	s.Invalidate()
	return nil
}

// FoldToday persists the current same-day summary as the baseline. Callers
// about to wipe the ledger use it to keep the day's counters alive.
func (s *Service) FoldToday(ctx context.Context) error {
	snap, err := s.compute(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	err = s.state.SetBaseline(ctx, domain.DailyBaseline{
		Day:       domain.DayOf(now, s.loc),
		Total:     snap.TotalToday,
		Collected: snap.CollectedToday,
		Failed:    snap.FailedToday,
		ResetAt:   now,
	})
	if err != nil {
		return fmt.Errorf("persist baseline: %w", err)
	}
	return nil
}

// SetCarrier assigns the carrier of a single scanned code.
func (s *Service) SetCarrier(ctx context.Context, code, carrier string) error {
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return err
	}
	carrier = strings.TrimSpace(carrier)
	if carrier == "" {
		return domain.ErrEmptyCarrier
	}
	found, err := s.ledger.SetCarrier(ctx, normalized, carrier)
	if err != nil {
		return fmt.Errorf("set carrier %s: %w", normalized, err)
	}
	if !found {
		return domain.ErrNotFound
	}
	s.Invalidate()
	return nil
}

// AssignCarrierToAllUnset stamps carrier on every record missing one.
// Idempotent: a second run finds nothing unset and reports zero.
func (s *Service) AssignCarrierToAllUnset(ctx context.Context, carrier string) (int, error) {
	carrier = strings.TrimSpace(carrier)
	if carrier == "" {
		return 0, domain.ErrEmptyCarrier
	}
	updated, err := s.ledger.AssignCarrierToUnset(ctx, carrier)
	if err != nil {
		return 0, fmt.Errorf("assign carrier: %w", err)
	}
	if updated > 0 {
		s.Invalidate()
	}
	return updated, nil
}

// DeleteScan removes one scan record, freeing the code to be scanned again.
func (s *Service) DeleteScan(ctx context.Context, code string) error {
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return err
	}
	found, err := s.ledger.Delete(ctx, normalized)
	if err != nil {
		return fmt.Errorf("delete scan %s: %w", normalized, err)
	}
	if !found {
		return domain.ErrNotFound
	}
	s.Invalidate()
	return nil
}

// DeleteScans removes a batch by code list; unknown codes are skipped.
func (s *Service) DeleteScans(ctx context.Context, codes []string) (int, error) {
	normalized := make([]string, 0, len(codes))
	for _, raw := range codes {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			continue
		}
		normalized = append(normalized, code)
	}
	deleted, err := s.ledger.DeleteMany(ctx, normalized)
	if err != nil {
		return 0, fmt.Errorf("delete scans: %w", err)
	}
	if deleted > 0 {
		s.Invalidate()
	}
	return deleted, nil
}
