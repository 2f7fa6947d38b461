package reconcile

import (
	"context"
	"log/slog"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/observability"
	"github.com/example/dispatch/internal/reservation"
	"github.com/example/dispatch/internal/triporacle"
)

// Scheduler repairs drift between the cached busy flags and actual trip
// state: a driver cached busy whose trip already ended is a zombie and gets
// released. The oracle failing means the truth is unknown, and an unknown
// driver stays busy — a false "available" risks double-assignment.
type Scheduler struct {
	store        availability.Store
	oracle       triporacle.Oracle
	reservations *reservation.Coordinator
	logger       *slog.Logger
}

func NewScheduler(store availability.Store, oracle triporacle.Oracle, reservations *reservation.Coordinator, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, oracle: oracle, reservations: reservations, logger: logger}
}

// Sweep cross-checks every cached-busy driver against the trip-status oracle
// and frees the stale ones.
func (s *Scheduler) Sweep(ctx context.Context) error {
	busy, err := s.store.BusyDrivers(ctx)
	if err != nil {
		return err
	}
	var reclaimed int
	for _, driverID := range busy {
		if s.oracle.IsDriverOnTrip(ctx, driverID) {
			continue
		}
		s.logger.Warn("zombie driver detected, forcing release", "driver_id", driverID)
		if err := s.reservations.Release(ctx, driverID); err != nil {
			s.logger.Error("zombie release failed", "driver_id", driverID, "error", err)
			continue
		}
		observability.ZombieReclaimsTotal.Inc()
		reclaimed++
	}
	if reclaimed > 0 {
		s.logger.Info("reconciliation sweep reclaimed drivers", "count", reclaimed)
	}
	return nil
}
