package ports

import (
	"context"

	"tally/internal/domain"
)

// Manifest manages the expected-code base.
type Manifest interface {
	Import(ctx context.Context, codes []string, clearExisting bool) (domain.ImportResult, error)
	Contains(ctx context.Context, code string) (bool, error)
	Remove(ctx context.Context, code string) error
	// Reset clears manifest and ledger together. The same-day dashboard
	// summary is preserved.
	Reset(ctx context.Context) error
}

// Reconciler resolves one scan attempt. armed is the session's selected
// status, applied to freshly accepted records; pass domain.StatusNone when
// nothing is armed.
type Reconciler interface {
	Scan(ctx context.Context, rawCode string, armed domain.Status) (domain.ScanResult, error)
}

// StatusEditor mutates dispositions and serves the derived listings.
type StatusEditor interface {
	SetStatus(ctx context.Context, code string, status domain.Status) error
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.ScanRecord, error)
	ListScanned(ctx context.Context) ([]domain.ScanRecord, error)
	ListMissing(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (domain.StatsSummary, error)
}

// Dashboard serves the cached per-carrier/per-day counters and owns every
// ledger mutation the counters must observe.
type Dashboard interface {
	Get(ctx context.Context) (domain.Snapshot, error)
	Refresh(ctx context.Context) (domain.Snapshot, error)
	ResetDaily(ctx context.Context) error
	SetCarrier(ctx context.Context, code, carrier string) error
	AssignCarrierToAllUnset(ctx context.Context, carrier string) (int, error)
	DeleteScan(ctx context.Context, code string) error
	DeleteScans(ctx context.Context, codes []string) (int, error)
}

// CacheInvalidator is the write-side hook mutating services use to mark the
// dashboard snapshot dirty.
type CacheInvalidator interface {
	Invalidate()
}

// BaselineKeeper folds the current same-day summary into the persisted
// baseline so it survives a ledger wipe, and invalidates the cache afterwards.
type BaselineKeeper interface {
	CacheInvalidator
	FoldToday(ctx context.Context) error
}
