package services

import (
	"math"
)

// DefaultKFactor is the standard chess k-factor for unestablished players.
const DefaultKFactor = 32

// MinRating is the floor no rating ever drops below.
const MinRating = 100

// EloService computes expected scores and rating updates. Pure math, no
// state beyond the configured k-factor.
type EloService struct {
	KFactor float64
}

func NewEloService(kFactor float64) *EloService {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	return &EloService{KFactor: kFactor}
}

// ExpectedScore is the standard ELO win probability:
//
//	E(A) = 1 / (1 + 10^((ratingB - ratingA) / 400))
//
// ExpectedScore(a,b) + ExpectedScore(b,a) == 1 for all a, b.
func (e *EloService) ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

// RatingDelta returns the unrounded rating change for one game:
// k * (actual - expected). actual is 1.0 for a win, 0.0 for a loss.
func (e *EloService) RatingDelta(ratingSelf, ratingOpponent, actualScore float64) float64 {
	return e.KFactor * (actualScore - e.ExpectedScore(ratingSelf, ratingOpponent))
}

// NewRatings applies one game symmetrically: winner scores 1, loser scores 0,
// each result is rounded to the nearest integer and clamped to MinRating.
func (e *EloService) NewRatings(ratingWinner, ratingLoser float64) (int, int) {
	expectedWinner := e.ExpectedScore(ratingWinner, ratingLoser)
	expectedLoser := 1.0 - expectedWinner

	newWinner := int(math.Round(ratingWinner + e.KFactor*(1.0-expectedWinner)))
	newLoser := int(math.Round(ratingLoser + e.KFactor*(0.0-expectedLoser)))

	if newWinner < MinRating {
		newWinner = MinRating
	}
	if newLoser < MinRating {
		newLoser = MinRating
	}
	return newWinner, newLoser
}

// RatingChanges returns the signed integer deltas actually applied:
// (newWinner - ratingWinner, newLoser - ratingLoser).
func (e *EloService) RatingChanges(ratingWinner, ratingLoser float64) (int, int) {
	newWinner, newLoser := e.NewRatings(ratingWinner, ratingLoser)
	return newWinner - int(ratingWinner), newLoser - int(ratingLoser)
}
