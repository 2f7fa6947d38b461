package reservation

import (
	"context"
	"sync"
	"testing"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/logging"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *availability.MemoryStore) {
	t.Helper()
	store := availability.NewMemoryStore()
	return NewCoordinator(store, DefaultLockTTL, logging.NewLogger("error")), store
}

func TestTryClaimFlipsFlagAndHoldsLock(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", true)

	ok, err := c.TryClaim(ctx, "d1")
	if err != nil || !ok {
		t.Fatalf("expected claim, got ok=%v err=%v", ok, err)
	}
	if avail, _ := store.IsAvailable(ctx, "d1"); avail {
		t.Fatal("driver should be busy after claim")
	}
	if !store.LockHeld("d1") {
		t.Fatal("lock should be held until the unit of work finishes")
	}
}

func TestTryClaimSkipsBusyDriver(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", false)

	ok, err := c.TryClaim(ctx, "d1")
	if err != nil {
		t.Fatalf("mismatch is not an error: %v", err)
	}
	if ok {
		t.Fatal("busy driver must not be claimable")
	}
	if store.LockHeld("d1") {
		t.Fatal("lock must be released immediately on availability mismatch")
	}
}

func TestTryClaimSkipsUnknownDriver(t *testing.T) {
	c, store := newTestCoordinator(t)
	ok, err := c.TryClaim(context.Background(), "ghost")
	if err != nil || ok {
		t.Fatalf("unknown driver must be skipped, got ok=%v err=%v", ok, err)
	}
	if store.LockHeld("ghost") {
		t.Fatal("lock must not linger for an unclaimable driver")
	}
}

func TestConcurrentClaimsMutualExclusion(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", true)

	const claimants = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.TryClaim(ctx, "d1")
			if err != nil {
				t.Errorf("claim error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRollbackRestoresPreClaimState(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", true)

	if ok, _ := c.TryClaim(ctx, "d1"); !ok {
		t.Fatal("setup: claim should succeed")
	}
	c.Rollback(ctx, "d1")

	if avail, _ := store.IsAvailable(ctx, "d1"); !avail {
		t.Fatal("rollback must revert the flag to available")
	}
	if store.LockHeld("d1") {
		t.Fatal("rollback must delete the lock")
	}
	// The driver is selectable again by a later attempt.
	if ok, _ := c.TryClaim(ctx, "d1"); !ok {
		t.Fatal("driver should be claimable after rollback")
	}
}

func TestConfirmDropsLockKeepsBusy(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", true)

	if ok, _ := c.TryClaim(ctx, "d1"); !ok {
		t.Fatal("setup: claim should succeed")
	}
	c.Confirm(ctx, "d1")

	if store.LockHeld("d1") {
		t.Fatal("confirm must drop the lock")
	}
	if avail, _ := store.IsAvailable(ctx, "d1"); avail {
		t.Fatal("confirm must keep the driver busy")
	}
}

func TestReleaseIsUnconditionalAndLockFree(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()
	_ = store.SetAvailable(ctx, "d1", false)

	if err := c.Release(ctx, "d1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if avail, _ := store.IsAvailable(ctx, "d1"); !avail {
		t.Fatal("release must set the flag available")
	}
}
