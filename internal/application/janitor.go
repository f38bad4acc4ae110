package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Janitor periodically removes non-favorite records older than a number of
// days.
type Janitor struct {
	history  *HistoryService
	interval time.Duration
	days     atomic.Int64
	logger   *slog.Logger
}

// NewJanitor creates a Janitor that keeps days worth of history and sweeps
// every interval.
func NewJanitor(history *HistoryService, days int, interval time.Duration, logger *slog.Logger) *Janitor {
	j := &Janitor{
		history:  history,
		interval: interval,
		logger:   logger,
	}
	j.days.Store(int64(days))
	return j
}

// SetDays changes the retention used by subsequent sweeps.
func (j *Janitor) SetDays(days int) {
	j.days.Store(int64(days))
}

// Days returns the current retention.
func (j *Janitor) Days() int {
	return int(j.days.Load())
}

// Start sweeps once immediately and then on every interval. Start blocks
// until the context is canceled.
func (j *Janitor) Start(ctx context.Context) {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("history janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	days := j.Days()
	removed := j.history.Cleanup(ctx, days)
	j.logger.Info("history cleanup complete", "days", days, "removed", removed)
}
