package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/dispatch/internal/models"
)

type fakeDirectory struct {
	infos map[string]models.DriverInfo
	err   error
}

func (f *fakeDirectory) GetDriversInfo(ctx context.Context, ids []string) ([]models.DriverInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.DriverInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.infos[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func TestNearestPolicyOrdersByDistance(t *testing.T) {
	ranked := NearestPolicy{}.Rank(context.Background(), []models.CandidateDriver{
		{DriverID: "far", DistanceMeters: 2500},
		{DriverID: "near", DistanceMeters: 200},
		{DriverID: "mid", DistanceMeters: 900},
	})
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if ranked[i].DriverID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, ranked[i].DriverID)
		}
	}
}

func TestScorePolicyPrefersRatingWhenDistanceClose(t *testing.T) {
	p := NewScorePolicy(&fakeDirectory{infos: map[string]models.DriverInfo{
		"low":  {ID: "low", RatingAvg: 2.0},
		"high": {ID: "high", RatingAvg: 5.0},
	}})
	ranked := p.Rank(context.Background(), []models.CandidateDriver{
		{DriverID: "low", DistanceMeters: 1000},
		{DriverID: "high", DistanceMeters: 1000},
	})
	if ranked[0].DriverID != "high" {
		t.Fatalf("equal distance must rank by rating, got %s first", ranked[0].DriverID)
	}
}

func TestScorePolicyDegradesToZeroRatingOnDirectoryFailure(t *testing.T) {
	p := NewScorePolicy(&fakeDirectory{err: errors.New("driver service down")})
	ranked := p.Rank(context.Background(), []models.CandidateDriver{
		{DriverID: "far", DistanceMeters: 3000},
		{DriverID: "near", DistanceMeters: 100},
	})
	if len(ranked) != 2 {
		t.Fatalf("directory failure must not drop candidates, got %d", len(ranked))
	}
	if ranked[0].DriverID != "near" {
		t.Fatalf("with ratings unknown, distance decides: got %s first", ranked[0].DriverID)
	}
}

func TestDefaultScoreFnFloorsDistance(t *testing.T) {
	atPickup := DefaultScoreFn(0, 3.0)
	if atPickup <= 0 || atPickup > (1.0/distanceFloorMeters)*100+30.001 {
		t.Fatalf("zero distance must hit the floor, got %f", atPickup)
	}
	if DefaultScoreFn(100, 5.0) <= DefaultScoreFn(100, 1.0) {
		t.Fatal("higher rating must score higher at equal distance")
	}
	if DefaultScoreFn(100, 3.0) <= DefaultScoreFn(10000, 3.0) {
		t.Fatal("nearer must score higher at equal rating")
	}
}
