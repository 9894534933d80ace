package refresher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tally/internal/ports"
)

// Run recomputes the dashboard snapshot on a fixed interval until ctx is
// canceled. Counting stations poll the dashboard; a warm cache keeps those
// reads off the recompute path. Mutations still invalidate in between, so
// correctness never depends on this loop running.
func Run(ctx context.Context, dash ports.Dashboard, interval time.Duration, log *logrus.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := dash.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("dashboard refresh failed")
			}
		}
	}
}
