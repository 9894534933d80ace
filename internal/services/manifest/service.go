package manifest

import (
	"context"
	"fmt"

	"tally/internal/domain"
	"tally/internal/ports"
)

// Service owns the expected-code base for the active import cycle.
type Service struct {
	manifest ports.ManifestRepository
	ledger   ports.LedgerRepository
	dash     ports.BaselineKeeper
}

func New(manifest ports.ManifestRepository, ledger ports.LedgerRepository, dash ports.BaselineKeeper) *Service {
	return &Service{manifest: manifest, ledger: ledger, dash: dash}
}

// Import normalizes and dedupes codes before adding them to the manifest.
// clearExisting replaces the whole base — and wipes the scan ledger with it,
// since scans against the old manifest are meaningless. The day's dashboard
// summary is folded into the baseline first so the wipe does not zero it.
func (s *Service) Import(ctx context.Context, codes []string, clearExisting bool) (domain.ImportResult, error) {
	unique := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	inputDups := 0
	for _, raw := range codes {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			continue // blank lines in pasted input are routine
		}
		if _, ok := seen[code]; ok {
			inputDups++
			continue
		}
		seen[code] = struct{}{}
		unique = append(unique, code)
	}

	if clearExisting {
		if err := s.clearAll(ctx); err != nil {
			return domain.ImportResult{}, err
		}
	}

	added, err := s.manifest.AddCodes(ctx, unique)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("manifest add: %w", err)
	}
	return domain.ImportResult{
		Imported:          added,
		DuplicatesSkipped: inputDups + (len(unique) - added),
	}, nil
}

func (s *Service) Contains(ctx context.Context, code string) (bool, error) {
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return false, err
	}
	return s.manifest.Contains(ctx, normalized)
}

// Remove drops a single code from the manifest, typically a not-yet-scanned
// expected item the operator gave up on. A concurrent scan of the same code
// serializes against the store; the later writer wins.
func (s *Service) Remove(ctx context.Context, code string) error {
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return err
	}
	removed, err := s.manifest.Remove(ctx, normalized)
	if err != nil {
		return fmt.Errorf("manifest remove %s: %w", normalized, err)
	}
	if !removed {
		return domain.ErrNotFound
	}
	return nil
}

// Reset clears manifest and ledger together. The dashboard keeps the day's
// throughput: counters track operational work done today regardless of which
// manifest cycle produced it.
func (s *Service) Reset(ctx context.Context) error {
	return s.clearAll(ctx)
}

func (s *Service) clearAll(ctx context.Context) error {
	if err := s.dash.FoldToday(ctx); err != nil {
		return fmt.Errorf("fold daily summary: %w", err)
	}
	if err := s.manifest.ClearCodes(ctx); err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}
	if err := s.ledger.ClearScans(ctx); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	s.dash.Invalidate()
	return nil
}
