package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/dispatch/internal/availability"
)

// DefaultLockTTL bounds how long a crashed claimant can keep a driver locked.
const DefaultLockTTL = 10 * time.Second

// Coordinator serializes the claim window for a driver. Lock contention and
// an already-busy flag are ordinary negative outcomes, not errors; only store
// failures surface as errors.
type Coordinator struct {
	store   availability.Store
	lockTTL time.Duration
	logger  *slog.Logger
}

func NewCoordinator(store availability.Store, lockTTL time.Duration, logger *slog.Logger) *Coordinator {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Coordinator{store: store, lockTTL: lockTTL, logger: logger}
}

// TryClaim attempts to reserve the driver for one trip. On success the
// availability flag is busy and the reservation lock is still held; the
// caller must finish with Confirm or Rollback.
func (c *Coordinator) TryClaim(ctx context.Context, driverID string) (bool, error) {
	token := uuid.NewString()
	locked, err := c.store.AcquireLock(ctx, driverID, token, c.lockTTL)
	if err != nil {
		return false, err
	}
	if !locked {
		// Contested by another in-flight match; skip.
		return false, nil
	}

	avail, err := c.store.IsAvailable(ctx, driverID)
	if err != nil {
		_ = c.store.ReleaseLock(ctx, driverID)
		return false, err
	}
	if !avail {
		// Lock won a driver that had already gone busy; expected under races.
		if err := c.store.ReleaseLock(ctx, driverID); err != nil {
			c.logger.Warn("unlock after availability mismatch failed", "driver_id", driverID, "error", err)
		}
		return false, nil
	}

	if err := c.store.SetAvailable(ctx, driverID, false); err != nil {
		_ = c.store.ReleaseLock(ctx, driverID)
		return false, err
	}
	return true, nil
}

// Confirm ends a successful claim once the enclosing unit of work committed:
// the lock goes away, the busy flag stays.
func (c *Coordinator) Confirm(ctx context.Context, driverID string) {
	if err := c.store.ReleaseLock(ctx, driverID); err != nil {
		// The TTL will reap it; the claim itself is already durable.
		c.logger.Warn("confirm unlock failed, ttl will expire the lock", "driver_id", driverID, "error", err)
	}
}

// Rollback compensates a claim whose downstream persistence failed: the flag
// reverts to available, then the lock is dropped, restoring the
// pre-reservation state.
func (c *Coordinator) Rollback(ctx context.Context, driverID string) {
	if err := c.store.SetAvailable(ctx, driverID, true); err != nil {
		c.logger.Error("rollback flag revert failed", "driver_id", driverID, "error", err)
	}
	if err := c.store.ReleaseLock(ctx, driverID); err != nil {
		c.logger.Warn("rollback unlock failed, ttl will expire the lock", "driver_id", driverID, "error", err)
	}
}

// Release is the normal-path free-up when a trip ends. It flips the flag
// unconditionally and never touches the lock: the lock only serializes the
// claim window, not the trip lifetime.
func (c *Coordinator) Release(ctx context.Context, driverID string) error {
	return c.store.SetAvailable(ctx, driverID, true)
}
