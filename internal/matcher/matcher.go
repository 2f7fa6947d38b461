package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/dispatch/internal/locator"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/observability"
	"github.com/example/dispatch/internal/outbox"
	"github.com/example/dispatch/internal/reservation"
)

// ErrNoDriverAvailable is the normal terminal outcome when every radius tier
// is exhausted without a claim.
var ErrNoDriverAvailable = errors.New("no driver available")

// DefaultTiersKm are the expanding search radii.
var DefaultTiersKm = []int{1, 2, 3}

// Engine runs the expanding-radius search, filters candidates through the
// reservation protocol, and records the winner in the outbox within the
// claim's unit of work.
type Engine struct {
	Locator      locator.Finder
	Policy       SelectionPolicy
	Reservations *reservation.Coordinator
	Outbox       *outbox.Writer
	TiersKm      []int
	Logger       *slog.Logger
}

// Match decides a driver for the request, or ErrNoDriverAvailable. Any other
// error means a claim was won and then rolled back on persistence failure.
func (e *Engine) Match(ctx context.Context, req models.MatchRequest) (models.MatchedTripFact, error) {
	start := time.Now()
	tiers := e.TiersKm
	if len(tiers) == 0 {
		tiers = DefaultTiersKm
	}

	for _, radiusKm := range tiers {
		candidates, err := e.Locator.FindNearbyDrivers(ctx, req.Origin, radiusKm)
		if err != nil {
			// Fail-closed for search: an unreachable locator is an empty tier.
			e.Logger.Warn("locator failed, treating tier as empty", "radius_km", radiusKm, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		fact, claimed, err := e.claimFromTier(ctx, req, candidates)
		if err != nil {
			return models.MatchedTripFact{}, err
		}
		if claimed {
			observability.MatchesTotal.Inc()
			observability.MatchLatency.Observe(time.Since(start).Seconds())
			return fact, nil
		}
		// Tier exhausted; expand the radius.
	}

	observability.NoDriverTotal.Inc()
	return models.MatchedTripFact{}, ErrNoDriverAvailable
}

// claimFromTier tries candidates in policy order until one claim sticks. A
// candidate that loses the lock race or flips busy under the lock is skipped
// for the rest of this attempt, never retried.
func (e *Engine) claimFromTier(ctx context.Context, req models.MatchRequest, candidates []models.CandidateDriver) (models.MatchedTripFact, bool, error) {
	for _, c := range e.Policy.Rank(ctx, candidates) {
		ok, err := e.Reservations.TryClaim(ctx, c.DriverID)
		if err != nil {
			e.Logger.Warn("claim attempt errored, skipping candidate", "driver_id", c.DriverID, "error", err)
			continue
		}
		if !ok {
			observability.CandidatesSkippedTotal.Inc()
			continue
		}

		fact := models.MatchedTripFact{
			TripID:      uuid.NewString(),
			RequesterID: req.RequesterID,
			DriverID:    c.DriverID,
			Origin:      req.Origin,
			Destination: req.Destination,
			MatchedAt:   time.Now().UTC(),
		}
		if err := e.Outbox.Record(ctx, fact); err != nil {
			// Compensate: revert the flag, drop the lock, surface the failure.
			e.Reservations.Rollback(ctx, c.DriverID)
			observability.MatchRollbacksTotal.Inc()
			return models.MatchedTripFact{}, false, fmt.Errorf("record match fact: %w", err)
		}
		e.Reservations.Confirm(ctx, c.DriverID)
		return fact, true, nil
	}
	return models.MatchedTripFact{}, false, nil
}
