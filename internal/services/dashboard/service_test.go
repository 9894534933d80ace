package dashboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/adapters/memory"
	"tally/internal/domain"
	"tally/internal/services/dashboard"
)

var frozen = time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*memory.Store, *dashboard.Service) {
	t.Helper()
	store := memory.NewStore()
	svc := dashboard.New(store, store, time.UTC).WithClock(func() time.Time { return frozen })
	return store, svc
}

func insert(t *testing.T, store *memory.Store, code string, ts time.Time, status domain.Status, carrier string) {
	t.Helper()
	rec := domain.ScanRecord{Code: code, Timestamp: ts, PresentInManifest: true, Status: status}
	if carrier != "" {
		rec.Carrier = &carrier
	}
	_, inserted, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestSnapshotCountersAndCarrierAsymmetry(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)

	insert(t, store, "A1", frozen.Add(-2*time.Hour), domain.StatusCollected, "JADLOG")
	insert(t, store, "A2", frozen.Add(-1*time.Hour), domain.StatusFailed, "JADLOG")
	insert(t, store, "A3", frozen.Add(-30*time.Minute), domain.StatusNone, "")
	// Two days old: outside today's window but still in the carrier totals.
	insert(t, store, "OLD", frozen.Add(-48*time.Hour), domain.StatusCollected, "CORREIOS")

	snap, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, snap.Source)
	assert.Equal(t, 3, snap.TotalToday)
	assert.Equal(t, 1, snap.CollectedToday)
	assert.Equal(t, 1, snap.FailedToday)
	assert.Equal(t, 2, snap.Carriers["JADLOG"])
	assert.Equal(t, 1, snap.Carriers["CORREIOS"])
	assert.Equal(t, 0, snap.Carriers["LOGAN"], "display set is seeded at zero")
}

func TestCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	insert(t, store, "A1", frozen.Add(-time.Hour), domain.StatusNone, "")

	snap, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, snap.Source)

	snap, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, snap.Source)

	svc.Invalidate()
	snap, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, snap.Source)

	snap, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceForced, snap.Source)

	snap, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, snap.Source, "refresh warms the cache")
}

func TestResetDailyKeepsCarrierTotals(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)

	insert(t, store, "A1", frozen.Add(-2*time.Hour), domain.StatusCollected, "J&T")
	insert(t, store, "A2", frozen.Add(-1*time.Hour), domain.StatusFailed, "LOGAN")

	before, err := svc.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, before.TotalToday)

	require.NoError(t, svc.ResetDaily(ctx))

	after, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, after.Source, "reset invalidates the cache")
	assert.Zero(t, after.TotalToday)
	assert.Zero(t, after.CollectedToday)
	assert.Zero(t, after.FailedToday)
	assert.Equal(t, before.Carriers, after.Carriers)

	// The ledger is untouched.
	n, err := store.CountScans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScansAfterDailyResetCountAgain(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)

	insert(t, store, "A1", frozen.Add(-time.Hour), domain.StatusNone, "")
	require.NoError(t, svc.ResetDaily(ctx))

	// Scanned after the watermark.
	insert(t, store, "A2", frozen.Add(time.Minute), domain.StatusCollected, "")

	snap, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalToday)
	assert.Equal(t, 1, snap.CollectedToday)
}

func TestFoldTodaySurvivesLedgerWipe(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)

	insert(t, store, "A1", frozen.Add(-2*time.Hour), domain.StatusCollected, "JADLOG")
	insert(t, store, "A2", frozen.Add(-1*time.Hour), domain.StatusNone, "")

	require.NoError(t, svc.FoldToday(ctx))
	require.NoError(t, store.ClearScans(ctx))
	svc.Invalidate()

	snap, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalToday)
	assert.Equal(t, 1, snap.CollectedToday)
	assert.Zero(t, snap.Carriers["JADLOG"], "carrier totals follow the ledger")
}

// gatedLedger returns the ledger as it was when List began, then stalls once
// so the test can mutate the store mid-computation.
type gatedLedger struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedLedger) List(ctx context.Context) ([]domain.ScanRecord, error) {
	recs, err := g.Store.List(ctx)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return recs, err
}

func TestInvalidateDuringComputeKeepsCacheDirty(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gated := &gatedLedger{
		Store:   store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := dashboard.New(gated, store, time.UTC).WithClock(func() time.Time { return frozen })

	insert(t, store, "A1", frozen.Add(-time.Hour), domain.StatusNone, "")

	type result struct {
		snap domain.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := svc.Get(ctx)
		done <- result{snap, err}
	}()

	// The computation has read the ledger and is stalled; a scan lands and
	// flips the dirty bit before it finishes.
	<-gated.entered
	insert(t, store, "A2", frozen.Add(-time.Minute), domain.StatusNone, "")
	svc.Invalidate()
	close(gated.release)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, domain.SourceComputed, first.snap.Source)
	assert.Equal(t, 1, first.snap.TotalToday, "in-flight computation predates the scan")

	// The stale snapshot must not have been marked clean.
	snap, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, snap.Source)
	assert.Equal(t, 2, snap.TotalToday)
}

func TestAssignCarrierIdempotence(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)

	insert(t, store, "A1", frozen, domain.StatusNone, "")
	insert(t, store, "A2", frozen, domain.StatusNone, "")

	updated, err := svc.AssignCarrierToAllUnset(ctx, "DIALOGO")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	updated, err = svc.AssignCarrierToAllUnset(ctx, "DIALOGO")
	require.NoError(t, err)
	assert.Zero(t, updated)

	_, err = svc.AssignCarrierToAllUnset(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrEmptyCarrier)
}

func TestSetCarrierAndDelete(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	insert(t, store, "A1", frozen, domain.StatusNone, "")

	require.NoError(t, svc.SetCarrier(ctx, "a1", "SAC SERVICE"))
	rec, found, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SAC SERVICE", *rec.Carrier)

	assert.ErrorIs(t, svc.SetCarrier(ctx, "NOPE", "LOGAN"), domain.ErrNotFound)

	require.NoError(t, svc.DeleteScan(ctx, "A1"))
	assert.ErrorIs(t, svc.DeleteScan(ctx, "A1"), domain.ErrNotFound)

	insert(t, store, "B1", frozen, domain.StatusNone, "")
	insert(t, store, "B2", frozen, domain.StatusNone, "")
	deleted, err := svc.DeleteScans(ctx, []string{"b1", "b2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}
