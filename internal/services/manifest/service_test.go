package manifest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/adapters/memory"
	"tally/internal/domain"
	"tally/internal/services/dashboard"
	"tally/internal/services/manifest"
	"tally/internal/services/reconcile"
)

func setup(t *testing.T) (*memory.Store, *manifest.Service, *dashboard.Service, *reconcile.Service) {
	t.Helper()
	store := memory.NewStore()
	dash := dashboard.New(store, store, time.UTC)
	return store, manifest.New(store, store, dash), dash, reconcile.New(store, store, dash)
}

func TestImportNormalizesAndDedupes(t *testing.T) {
	ctx := context.Background()
	_, svc, _, _ := setup(t)

	res, err := svc.Import(ctx, []string{" a1 ", "A1", "a2", "", "  ", "A3"}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 1, res.DuplicatesSkipped, "in-input repeat of A1")

	// Re-importing counts the overlap as skipped.
	res, err = svc.Import(ctx, []string{"A1", "A4"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.DuplicatesSkipped)

	ok, err := svc.Contains(ctx, "a3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportWithClearWipesLedger(t *testing.T) {
	ctx := context.Background()
	store, svc, _, recon := setup(t)

	_, err := svc.Import(ctx, []string{"A1"}, false)
	require.NoError(t, err)
	res, err := recon.Scan(ctx, "A1", domain.StatusNone)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAccepted, res.Outcome)

	_, err = svc.Import(ctx, []string{"B1", "B2"}, true)
	require.NoError(t, err)

	n, err := store.CountScans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "old scans are meaningless against the new base")
	ok, err := svc.Contains(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.Contains(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetPreservesDailySummary(t *testing.T) {
	ctx := context.Background()
	store, svc, dash, recon := setup(t)

	_, err := svc.Import(ctx, []string{"A1", "A2"}, false)
	require.NoError(t, err)
	res, err := recon.Scan(ctx, "A1", domain.StatusCollected)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAccepted, res.Outcome)
	res, err = recon.Scan(ctx, "A2", domain.StatusNone)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAccepted, res.Outcome)

	require.NoError(t, svc.Reset(ctx))

	codes, err := store.CountCodes(ctx)
	require.NoError(t, err)
	assert.Zero(t, codes)
	scans, err := store.CountScans(ctx)
	require.NoError(t, err)
	assert.Zero(t, scans)

	snap, err := dash.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalToday)
	assert.Equal(t, 1, snap.CollectedToday)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	_, svc, _, _ := setup(t)

	_, err := svc.Import(ctx, []string{"A1"}, false)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "a1"))
	assert.ErrorIs(t, svc.Remove(ctx, "A1"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, " "), domain.ErrEmptyCode)
}
