package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/outbox"
	"github.com/example/dispatch/internal/reservation"
)

// fakeFinder serves canned candidates per radius tier and records queries.
type fakeFinder struct {
	tiers   map[int][]models.CandidateDriver
	failAt  map[int]bool
	queried []int
}

func (f *fakeFinder) FindNearbyDrivers(ctx context.Context, origin models.GeoPoint, radiusKm int) ([]models.CandidateDriver, error) {
	f.queried = append(f.queried, radiusKm)
	if f.failAt[radiusKm] {
		return nil, errors.New("location service down")
	}
	return f.tiers[radiusKm], nil
}

type testEnv struct {
	engine *Engine
	finder *fakeFinder
	store  *availability.MemoryStore
	events *outbox.MemoryStore
}

func newTestEnv(t *testing.T, finder *fakeFinder) *testEnv {
	t.Helper()
	logger := logging.NewLogger("error")
	store := availability.NewMemoryStore()
	events := outbox.NewMemoryStore()
	engine := &Engine{
		Locator:      finder,
		Policy:       NearestPolicy{},
		Reservations: reservation.NewCoordinator(store, reservation.DefaultLockTTL, logger),
		Outbox:       outbox.NewWriter(events, "matching_events"),
		TiersKm:      []int{1, 2, 3},
		Logger:       logger,
	}
	return &testEnv{engine: engine, finder: finder, store: store, events: events}
}

func testRequest() models.MatchRequest {
	return models.MatchRequest{
		RequesterID: "rider-1",
		Origin:      models.GeoPoint{Longitude: 127.0, Latitude: 37.5},
		Destination: models.GeoPoint{Longitude: 127.1, Latitude: 37.6},
	}
}

func TestMatchClaimsNearestInFirstTier(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{
		1: {{DriverID: "A", DistanceMeters: 500}},
	}})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "A", true)

	fact, err := env.engine.Match(ctx, testRequest())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if fact.DriverID != "A" {
		t.Fatalf("expected driver A, got %s", fact.DriverID)
	}
	if fact.TripID == "" {
		t.Fatal("expected a generated trip id")
	}
	if avail, _ := env.store.IsAvailable(ctx, "A"); avail {
		t.Fatal("winner's flag must flip to busy")
	}
	if env.store.LockHeld("A") {
		t.Fatal("lock must be released after the outbox write commits")
	}

	events := env.events.Events()
	if len(events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(events))
	}
	if events[0].Status != models.OutboxReady {
		t.Fatalf("expected READY, got %s", events[0].Status)
	}
	if events[0].AggregateID != fact.TripID {
		t.Fatalf("outbox event must be keyed by trip id, got %s", events[0].AggregateID)
	}
}

func TestMatchExpandsToSecondTierAndStops(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{
		2: {{DriverID: "B", DistanceMeters: 1800}},
		3: {{DriverID: "C", DistanceMeters: 2500}},
	}})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "B", true)
	_ = env.store.SetAvailable(ctx, "C", true)

	fact, err := env.engine.Match(ctx, testRequest())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if fact.DriverID != "B" {
		t.Fatalf("expected tier-2 driver B, got %s", fact.DriverID)
	}
	for _, r := range env.finder.queried {
		if r == 3 {
			t.Fatal("tier 3 must not be queried once tier 2 yields a claim")
		}
	}
}

func TestMatchSkipsContestedCandidate(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{
		1: {
			{DriverID: "A", DistanceMeters: 300},
			{DriverID: "B", DistanceMeters: 900},
		},
	}})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "A", true)
	_ = env.store.SetAvailable(ctx, "B", true)
	// A concurrent claimant already holds A's reservation lock.
	if ok, _ := env.store.AcquireLock(ctx, "A", "other", reservation.DefaultLockTTL); !ok {
		t.Fatal("setup: lock should be free")
	}

	fact, err := env.engine.Match(ctx, testRequest())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if fact.DriverID != "B" {
		t.Fatalf("expected contested A skipped in favor of B, got %s", fact.DriverID)
	}
	if avail, _ := env.store.IsAvailable(ctx, "A"); !avail {
		t.Fatal("skipped candidate's flag must be untouched")
	}
}

func TestMatchSkipsBusyCandidate(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{
		1: {
			{DriverID: "A", DistanceMeters: 300},
			{DriverID: "B", DistanceMeters: 900},
		},
	}})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "A", false)
	_ = env.store.SetAvailable(ctx, "B", true)

	fact, err := env.engine.Match(ctx, testRequest())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if fact.DriverID != "B" {
		t.Fatalf("expected busy A skipped, got %s", fact.DriverID)
	}
}

func TestMatchRollsBackOnOutboxFailure(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{
		1: {{DriverID: "A", DistanceMeters: 500}},
	}})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "A", true)
	env.events.FailNextSaves(1)

	_, err := env.engine.Match(ctx, testRequest())
	if err == nil || errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected a persistence failure, got %v", err)
	}
	if avail, _ := env.store.IsAvailable(ctx, "A"); !avail {
		t.Fatal("flag must be restored to available after rollback")
	}
	if env.store.LockHeld("A") {
		t.Fatal("lock must be deleted after rollback")
	}
	if n := len(env.events.Events()); n != 0 {
		t.Fatalf("no outbox event may exist for a rolled-back claim, got %d", n)
	}
}

func TestMatchNoDriverWhenTiersExhausted(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{tiers: map[int][]models.CandidateDriver{}})

	_, err := env.engine.Match(context.Background(), testRequest())
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
	if n := len(env.events.Events()); n != 0 {
		t.Fatalf("failed match must write nothing, got %d events", n)
	}
	if got := env.finder.queried; len(got) != 3 {
		t.Fatalf("expected all three tiers searched, got %v", got)
	}
}

func TestMatchTreatsLocatorFailureAsEmptyTier(t *testing.T) {
	env := newTestEnv(t, &fakeFinder{
		tiers:  map[int][]models.CandidateDriver{2: {{DriverID: "B", DistanceMeters: 1500}}},
		failAt: map[int]bool{1: true},
	})
	ctx := context.Background()
	_ = env.store.SetAvailable(ctx, "B", true)

	fact, err := env.engine.Match(ctx, testRequest())
	if err != nil {
		t.Fatalf("locator failure must not be fatal: %v", err)
	}
	if fact.DriverID != "B" {
		t.Fatalf("expected tier-2 fallback to B, got %s", fact.DriverID)
	}
}
