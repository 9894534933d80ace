package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tally/internal/domain"
)

// Store keeps manifest, ledger and dashboard state in process memory behind a
// single mutex. Scan throughput is manual barcode entry, so one lock covers
// the whole store; the per-code check-and-insert is atomic as a consequence.
// Used by tests and by server runs without a DATABASE_URL.
type Store struct {
	mu       sync.Mutex
	manifest map[string]struct{}
	records  map[string]*entry
	seq      int64
	baseline domain.DailyBaseline
}

type entry struct {
	rec domain.ScanRecord
	seq int64
}

func NewStore() *Store {
	return &Store{
		manifest: make(map[string]struct{}),
		records:  make(map[string]*entry),
	}
}

// ManifestRepository

func (s *Store) AddCodes(_ context.Context, codes []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, c := range codes {
		if _, ok := s.manifest[c]; ok {
			continue
		}
		s.manifest[c] = struct{}{}
		added++
	}
	return added, nil
}

func (s *Store) Contains(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.manifest[code]
	return ok, nil
}

func (s *Store) Remove(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manifest[code]; !ok {
		return false, nil
	}
	delete(s.manifest, code)
	return true, nil
}

func (s *Store) Missing(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing := make([]string, 0)
	for code := range s.manifest {
		if _, scanned := s.records[code]; !scanned {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func (s *Store) CountCodes(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.manifest), nil
}

func (s *Store) ClearCodes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = make(map[string]struct{})
	return nil
}

// LedgerRepository

func (s *Store) Insert(_ context.Context, rec domain.ScanRecord) (domain.ScanRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.records[rec.Code]; ok {
		return e.rec, false, nil
	}
	s.seq++
	s.records[rec.Code] = &entry{rec: rec, seq: s.seq}
	return rec, true, nil
}

func (s *Store) Get(_ context.Context, code string) (domain.ScanRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[code]
	if !ok {
		return domain.ScanRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (s *Store) List(_ context.Context) ([]domain.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(domain.ScanRecord) bool { return true }), nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.Status) ([]domain.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(r domain.ScanRecord) bool { return r.Status == status }), nil
}

// listLocked returns matching records most-recent-first, equal timestamps in
// insertion order. Caller holds the lock.
func (s *Store) listLocked(match func(domain.ScanRecord) bool) []domain.ScanRecord {
	entries := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		if match(e.rec) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rec.Timestamp.After(entries[j].rec.Timestamp)
	})
	out := make([]domain.ScanRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func (s *Store) SetStatus(_ context.Context, code string, status domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[code]
	if !ok {
		return false, nil
	}
	e.rec.Status = status
	return true, nil
}

func (s *Store) SetCarrier(_ context.Context, code, carrier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[code]
	if !ok {
		return false, nil
	}
	e.rec.Carrier = &carrier
	return true, nil
}

func (s *Store) AssignCarrierToUnset(_ context.Context, carrier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, e := range s.records {
		if e.rec.Carrier == nil || strings.TrimSpace(*e.rec.Carrier) == "" {
			c := carrier
			e.rec.Carrier = &c
			updated++
		}
	}
	return updated, nil
}

func (s *Store) Delete(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[code]; !ok {
		return false, nil
	}
	delete(s.records, code)
	return true, nil
}

func (s *Store) DeleteMany(_ context.Context, codes []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, code := range codes {
		if _, ok := s.records[code]; ok {
			delete(s.records, code)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) CountScans(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *Store) ClearScans(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*entry)
	return nil
}

// DashboardStateRepository

func (s *Store) Baseline(_ context.Context) (domain.DailyBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline, nil
}

func (s *Store) SetBaseline(_ context.Context, b domain.DailyBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = b
	return nil
}
