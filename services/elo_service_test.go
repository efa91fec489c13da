package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedScore(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	assert.InDelta(t, 0.5, elo.ExpectedScore(1000, 1000), 1e-9)
	assert.Greater(t, elo.ExpectedScore(1200, 1000), 0.5)
	assert.Less(t, elo.ExpectedScore(1000, 1200), 0.5)
}

func TestExpectedScoreSumsToOne(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	pairs := [][2]float64{
		{1000, 1000},
		{1200, 1000},
		{100, 2400},
		{1537, 1612},
	}
	for _, p := range pairs {
		sum := elo.ExpectedScore(p[0], p[1]) + elo.ExpectedScore(p[1], p[0])
		assert.InDelta(t, 1.0, sum, 1e-9, "ratings %v", p)
	}
}

func TestRatingDelta(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	// Even matchup: a win is worth +16, a loss -16, before rounding.
	assert.InDelta(t, 16.0, elo.RatingDelta(1000, 1000, 1.0), 1e-9)
	assert.InDelta(t, -16.0, elo.RatingDelta(1000, 1000, 0.0), 1e-9)

	// Favorite winning earns less than an even matchup would.
	assert.Less(t, elo.RatingDelta(1200, 1000, 1.0), 16.0)
	// Underdog winning earns more.
	assert.Greater(t, elo.RatingDelta(1000, 1200, 1.0), 16.0)
}

func TestNewRatings(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	tests := []struct {
		name          string
		winner, loser float64
		wantWinner    int
		wantLoser     int
	}{
		{"equal ratings", 1000, 1000, 1016, 984},
		{"favorite wins", 1200, 1000, 1208, 992},
		{"underdog wins", 1000, 1200, 1024, 1176},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotWinner, gotLoser := elo.NewRatings(tt.winner, tt.loser)
			assert.Equal(t, tt.wantWinner, gotWinner)
			assert.Equal(t, tt.wantLoser, gotLoser)
		})
	}
}

func TestRatingChanges(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	winDelta, loseDelta := elo.RatingChanges(1000, 1000)
	assert.Equal(t, 16, winDelta)
	assert.Equal(t, -16, loseDelta)

	winDelta, loseDelta = elo.RatingChanges(1200, 1000)
	assert.Equal(t, 8, winDelta)
	assert.Equal(t, -8, loseDelta)
}

func TestRatingFloor(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	// 105 - 16 would land at 89; the floor catches it.
	_, newLoser := elo.NewRatings(105, 105)
	assert.Equal(t, MinRating, newLoser)

	_, loseDelta := elo.RatingChanges(105, 105)
	assert.Equal(t, -5, loseDelta)
}

func TestWinnerNeverLosesPoints(t *testing.T) {
	elo := NewEloService(DefaultKFactor)

	for _, pair := range [][2]float64{{1000, 1000}, {2400, 100}, {100, 2400}} {
		winDelta, loseDelta := elo.RatingChanges(pair[0], pair[1])
		assert.GreaterOrEqual(t, winDelta, 0, "winner delta for %v", pair)
		assert.LessOrEqual(t, loseDelta, 0, "loser delta for %v", pair)
	}
}

func TestNewEloServiceDefaultsKFactor(t *testing.T) {
	assert.Equal(t, float64(DefaultKFactor), NewEloService(0).KFactor)
	assert.Equal(t, float64(DefaultKFactor), NewEloService(-5).KFactor)
	assert.Equal(t, 16.0, NewEloService(16).KFactor)
}
