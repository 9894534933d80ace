package ports

import (
	"context"
	"time"

	"tally/internal/domain"
)

// ManifestRepository stores the expected tracking codes of the active cycle.
// Codes are already normalized by the caller.
type ManifestRepository interface {
	// AddCodes inserts codes, skipping ones already present, and reports how
	// many were actually added.
	AddCodes(ctx context.Context, codes []string) (added int, err error)
	Contains(ctx context.Context, code string) (bool, error)
	Remove(ctx context.Context, code string) (removed bool, err error)
	// Missing returns manifest codes with no ledger record, sorted.
	Missing(ctx context.Context) ([]string, error)
	CountCodes(ctx context.Context) (int, error)
	ClearCodes(ctx context.Context) error
}

// LedgerRepository stores accepted scans, at most one per code.
type LedgerRepository interface {
	// Insert adds rec unless a record for rec.Code exists. The check and the
	// insert are atomic per code: of two concurrent inserts for the same code
	// exactly one observes inserted=true. When inserted is false the existing
	// record is returned.
	Insert(ctx context.Context, rec domain.ScanRecord) (existing domain.ScanRecord, inserted bool, err error)
	Get(ctx context.Context, code string) (domain.ScanRecord, bool, error)
	// List returns all records most-recent-first, ties broken by insertion
	// order.
	List(ctx context.Context) ([]domain.ScanRecord, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.ScanRecord, error)
	SetStatus(ctx context.Context, code string, status domain.Status) (found bool, err error)
	SetCarrier(ctx context.Context, code, carrier string) (found bool, err error)
	// AssignCarrierToUnset sets carrier on every record without one.
	AssignCarrierToUnset(ctx context.Context, carrier string) (updated int, err error)
	Delete(ctx context.Context, code string) (found bool, err error)
	DeleteMany(ctx context.Context, codes []string) (deleted int, err error)
	CountScans(ctx context.Context) (int, error)
	ClearScans(ctx context.Context) error
}

// DashboardStateRepository persists the daily baseline that survives ledger
// wipes. Implementations return a zero-valued baseline when none was stored.
type DashboardStateRepository interface {
	Baseline(ctx context.Context) (domain.DailyBaseline, error)
	SetBaseline(ctx context.Context, b domain.DailyBaseline) error
}

// Clock lets tests pin time; services default to time.Now.
type Clock func() time.Time
