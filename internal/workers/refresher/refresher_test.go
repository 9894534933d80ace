package refresher_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"tally/internal/domain"
	"tally/internal/workers/refresher"
)

type fakeDashboard struct {
	refreshes atomic.Int32
}

func (f *fakeDashboard) Get(context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{}, nil
}

func (f *fakeDashboard) Refresh(context.Context) (domain.Snapshot, error) {
	f.refreshes.Add(1)
	return domain.Snapshot{Source: domain.SourceForced}, nil
}

func (f *fakeDashboard) ResetDaily(context.Context) error                 { return nil }
func (f *fakeDashboard) SetCarrier(context.Context, string, string) error { return nil }
func (f *fakeDashboard) DeleteScan(context.Context, string) error         { return nil }

func (f *fakeDashboard) DeleteScans(context.Context, []string) (int, error) {
	return 0, nil
}

func (f *fakeDashboard) AssignCarrierToAllUnset(context.Context, string) (int, error) {
	return 0, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRunRefreshesUntilCanceled(t *testing.T) {
	dash := &fakeDashboard{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		refresher.Run(ctx, dash, 5*time.Millisecond, quietLogger())
		close(done)
	}()

	assert.Eventually(t, func() bool { return dash.refreshes.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop on cancel")
	}
}

func TestRunDisabledInterval(t *testing.T) {
	dash := &fakeDashboard{}
	// Returns immediately; a zero interval means the worker is off.
	refresher.Run(context.Background(), dash, 0, quietLogger())
	assert.Zero(t, dash.refreshes.Load())
}
