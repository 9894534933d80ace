package reconcile

import (
	"context"
	"fmt"
	"time"

	"tally/internal/domain"
	"tally/internal/ports"
)

// Service matches incoming scans against the manifest and writes accepted
// ones to the ledger.
type Service struct {
	manifest ports.ManifestRepository
	ledger   ports.LedgerRepository
	cache    ports.CacheInvalidator
}

func New(manifest ports.ManifestRepository, ledger ports.LedgerRepository, cache ports.CacheInvalidator) *Service {
	return &Service{manifest: manifest, ledger: ledger, cache: cache}
}

// Scan resolves one scan attempt. A duplicate scan is reported, never
// re-accepted: the same physical label read twice is operator error and must
// not double-fire downstream status application. Unknown codes are reported
// as an outcome and leave no trace in the ledger.
func (s *Service) Scan(ctx context.Context, rawCode string, armed domain.Status) (domain.ScanResult, error) {
	code, err := domain.NormalizeCode(rawCode)
	if err != nil {
		return domain.ScanResult{}, err
	}

	if rec, ok, err := s.ledger.Get(ctx, code); err != nil {
		return domain.ScanResult{}, fmt.Errorf("ledger lookup %s: %w", code, err)
	} else if ok {
		return domain.ScanResult{Outcome: domain.OutcomeAlreadyScanned, Record: &rec}, nil
	}

	expected, err := s.manifest.Contains(ctx, code)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("manifest lookup %s: %w", code, err)
	}
	if !expected {
		return domain.ScanResult{Outcome: domain.OutcomeNotExpected}, nil
	}

	rec := domain.ScanRecord{
		Code:              code,
		Timestamp:         time.Now(),
		PresentInManifest: true,
		Status:            armed,
	}
	// Insert is atomic per code: a concurrent scan of the same code that won
	// the race surfaces here as a duplicate.
	existing, inserted, err := s.ledger.Insert(ctx, rec)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("ledger insert %s: %w", code, err)
	}
	if !inserted {
		return domain.ScanResult{Outcome: domain.OutcomeAlreadyScanned, Record: &existing}, nil
	}

	s.cache.Invalidate()
	return domain.ScanResult{Outcome: domain.OutcomeAccepted, Record: &rec}, nil
}
