package status

import (
	"context"
	"fmt"
	"math"

	"tally/internal/domain"
	"tally/internal/ports"
)

// Service assigns dispositions to ledger entries and serves the derived
// listings.
type Service struct {
	ledger   ports.LedgerRepository
	manifest ports.ManifestRepository
	cache    ports.CacheInvalidator
}

func New(ledger ports.LedgerRepository, manifest ports.ManifestRepository, cache ports.CacheInvalidator) *Service {
	return &Service{ledger: ledger, manifest: manifest, cache: cache}
}

// SetStatus overwrites the disposition of a scanned code. Any status may
// replace any other; there is no transition machine.
func (s *Service) SetStatus(ctx context.Context, code string, status domain.Status) error {
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return err
	}
	found, err := s.ledger.SetStatus(ctx, normalized, status)
	if err != nil {
		return fmt.Errorf("set status %s: %w", normalized, err)
	}
	if !found {
		return domain.ErrNotFound
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]domain.ScanRecord, error) {
	return s.ledger.ListByStatus(ctx, status)
}

func (s *Service) ListScanned(ctx context.Context) ([]domain.ScanRecord, error) {
	return s.ledger.List(ctx)
}

// ListMissing returns manifest codes that have not been scanned yet.
func (s *Service) ListMissing(ctx context.Context) ([]string, error) {
	return s.manifest.Missing(ctx)
}

// Stats summarizes reconciliation progress against the active manifest.
func (s *Service) Stats(ctx context.Context) (domain.StatsSummary, error) {
	expected, err := s.manifest.CountCodes(ctx)
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("count manifest: %w", err)
	}
	missing, err := s.manifest.Missing(ctx)
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("list missing: %w", err)
	}
	out := domain.StatsSummary{
		TotalExpected: expected,
		TotalScanned:  expected - len(missing),
		TotalMissing:  len(missing),
	}
	if expected > 0 {
		pct := float64(out.TotalScanned) / float64(expected) * 100
		out.PercentScanned = math.Round(pct*100) / 100
	}
	return out, nil
}
