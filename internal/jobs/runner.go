package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Locker is the cluster-wide guard for periodic jobs: at most one service
// instance runs a named job per interval.
type Locker interface {
	AcquireJobLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Job is a named periodic task. LockTTL zero means the job runs on every
// instance (safe-by-design work like the skip-locked relay batch); a positive
// LockTTL makes the tick cluster-exclusive. Jobs must stay idempotent: the
// guard can expire mid-run.
type Job struct {
	Name     string
	Interval time.Duration
	LockTTL  time.Duration
	Run      func(ctx context.Context) error
}

// Loop runs the job until the context ends. A failing tick is logged and the
// next tick proceeds; a single failure never stops the loop.
func Loop(ctx context.Context, job Job, locker Locker, logger *slog.Logger) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx, job, locker, logger)
		}
	}
}

func tick(ctx context.Context, job Job, locker Locker, logger *slog.Logger) {
	if job.LockTTL > 0 {
		ok, err := locker.AcquireJobLock(ctx, job.Name, job.LockTTL)
		if err != nil {
			logger.Error("job lock acquisition failed", "job", job.Name, "error", err)
			return
		}
		if !ok {
			// Another instance holds this tick.
			return
		}
	}
	if err := job.Run(ctx); err != nil {
		logger.Error("job run failed", "job", job.Name, "error", err)
	}
}
