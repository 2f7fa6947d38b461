package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/logging"
)

func TestLoopRunsUntilCanceled(t *testing.T) {
	var runs atomic.Int32
	job := Job{
		Name:     "test_job",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	Loop(ctx, job, availability.NewMemoryStore(), logging.NewLogger("error"))
	if runs.Load() < 2 {
		t.Fatalf("expected repeated runs, got %d", runs.Load())
	}
}

func TestClusterLockedJobSkipsContestedTicks(t *testing.T) {
	locker := availability.NewMemoryStore()
	ctx := context.Background()

	// Another instance holds the guard for this tick.
	if ok, _ := locker.AcquireJobLock(ctx, "guarded", time.Minute); !ok {
		t.Fatal("setup: job lock should be free")
	}

	var runs atomic.Int32
	job := Job{Name: "guarded", Interval: time.Minute, LockTTL: 30 * time.Second,
		Run: func(ctx context.Context) error { runs.Add(1); return nil }}

	tick(ctx, job, locker, logging.NewLogger("error"))
	if runs.Load() != 0 {
		t.Fatal("contested tick must not run the job")
	}
}
