package matcher

import (
	"context"
	"sort"

	"github.com/example/dispatch/internal/directory"
	"github.com/example/dispatch/internal/models"
)

// SelectionPolicy orders a tier's candidates; reservation attempts follow
// that order and the first successful claim wins.
type SelectionPolicy interface {
	Rank(ctx context.Context, candidates []models.CandidateDriver) []models.CandidateDriver
}

// ScoreFn combines distance and rating into a single score; higher is better.
type ScoreFn func(distanceMeters, rating float64) float64

// distanceFloorMeters keeps the inverse-distance term bounded for drivers
// standing on the pickup point.
const distanceFloorMeters = 0.01

// DefaultScoreFn is the historical scoring: inverse distance weighted 100,
// rating weighted 10.
func DefaultScoreFn(distanceMeters, rating float64) float64 {
	if distanceMeters < distanceFloorMeters {
		distanceMeters = distanceFloorMeters
	}
	return (1.0/distanceMeters)*100 + rating*10
}

// NearestPolicy ranks by ascending distance and needs no profile lookups.
type NearestPolicy struct{}

func (NearestPolicy) Rank(ctx context.Context, candidates []models.CandidateDriver) []models.CandidateDriver {
	ranked := make([]models.CandidateDriver, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceMeters < ranked[j].DistanceMeters
	})
	return ranked
}

// ScorePolicy ranks by ScoreFn over distance and the driver's average rating.
// Profiles the directory cannot resolve score with rating 0 rather than
// dropping the candidate.
type ScorePolicy struct {
	Directory directory.Directory
	Score     ScoreFn
}

func NewScorePolicy(dir directory.Directory) *ScorePolicy {
	return &ScorePolicy{Directory: dir, Score: DefaultScoreFn}
}

func (p *ScorePolicy) Rank(ctx context.Context, candidates []models.CandidateDriver) []models.CandidateDriver {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DriverID
	}
	ratings := make(map[string]float64, len(ids))
	if infos, err := p.Directory.GetDriversInfo(ctx, ids); err == nil {
		for _, info := range infos {
			ratings[info.ID] = info.RatingAvg
		}
	}

	score := p.Score
	if score == nil {
		score = DefaultScoreFn
	}
	type scored struct {
		c models.CandidateDriver
		s float64
	}
	list := make([]scored, len(candidates))
	for i, c := range candidates {
		list[i] = scored{c, score(c.DistanceMeters, ratings[c.DriverID])}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].s > list[j].s })

	ranked := make([]models.CandidateDriver, len(list))
	for i, sc := range list {
		ranked[i] = sc.c
	}
	return ranked
}
