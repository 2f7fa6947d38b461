package availability

import (
	"context"
	"time"
)

// Redis key formats. The status hash is the cached source of truth consulted
// by matching; reconciliation bounds its staleness.
const (
	KeyDriverStatus = "driver_status:%s"  // hash, field is_available
	KeyMatchingLock = "matching_lock:%s"  // reservation lock, TTL-bounded
	KeyJobLock      = "scheduler_lock:%s" // cluster-scope periodic job guard
)

const (
	FieldAvailable = "is_available"

	FlagAvailable = "1"
	FlagBusy      = "0"
)

// Store is the shared availability state behind the reservation protocol.
// Implementations must make AcquireLock an atomic set-if-absent; no caller
// flips the availability flag without holding the matching lock, except
// Release which is intentionally lock-free.
type Store interface {
	// IsAvailable reports the cached flag; unknown drivers are not available.
	IsAvailable(ctx context.Context, driverID string) (bool, error)
	SetAvailable(ctx context.Context, driverID string, available bool) error

	// AcquireLock creates the driver's reservation lock if absent. The TTL is
	// the staleness bound should a claimant crash mid-reservation.
	AcquireLock(ctx context.Context, driverID, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, driverID string) error

	// BusyDrivers lists driver ids whose cached flag is busy.
	BusyDrivers(ctx context.Context) ([]string, error)

	// AcquireJobLock takes the cluster-wide guard for a named periodic job so
	// at most one instance runs it per interval.
	AcquireJobLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}
