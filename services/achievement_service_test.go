package services

import (
	"testing"
	"time"

	"arena-battle-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recordMatch inserts one completed match into the student's history with a
// fixed timestamp so streak ordering is under test control.
func recordMatch(t *testing.T, db *gorm.DB, student models.Student, won bool, eloBefore, eloAfter float64, at time.Time) {
	t.Helper()

	winnerID := student.ID
	if !won {
		winnerID = "someone-else"
	}
	match := models.Match{
		ID:        uuid.NewString(),
		Status:    models.MatchStatusCompleted,
		NumRounds: 1,
		WinnerIDs: datatypes.NewJSONSlice([]string{winnerID}),
		Timestamps: models.Timestamps{
			CreatedAt: at,
			UpdatedAt: at,
		},
	}
	require.NoError(t, db.Create(&match).Error)
	require.NoError(t, db.Create(&models.MatchParticipant{
		MatchID:   match.ID,
		StudentID: student.ID,
		EloBefore: eloBefore,
		EloAfter:  &eloAfter,
	}).Error)
}

func newTestAchievementService(t *testing.T) (*AchievementService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	s := NewAchievementService(db)
	require.NoError(t, s.SeedCatalog())
	return s, db
}

func TestSeedCatalogIdempotent(t *testing.T) {
	s, db := newTestAchievementService(t)
	require.NoError(t, s.SeedCatalog())

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Count(&count).Error)
	assert.EqualValues(t, 4, count)

	var codes []string
	require.NoError(t, db.Model(&models.Achievement{}).Order("code").Pluck("code", &codes).Error)
	assert.Equal(t, []string{"elo-1000", "elo-1100", "streak-3-win", "streak-4-win"}, codes)
}

func TestEvaluateStudentNotFound(t *testing.T) {
	s, _ := newTestAchievementService(t)
	_, err := s.EvaluateStudent("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateStudentNoHistory(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Fresh", 1000)

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestWinStreakAchievement(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Streaker", 1048)

	base := time.Now().Add(-time.Hour)
	recordMatch(t, db, student, true, 1000, 1016, base)
	recordMatch(t, db, student, true, 1016, 1032, base.Add(time.Minute))
	recordMatch(t, db, student, true, 1032, 1048, base.Add(2*time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.Contains(t, codes, "streak-3-win")
	assert.NotContains(t, codes, "streak-4-win")
}

func TestWinStreakStopsAtFirstNonWin(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Choker", 980)

	// Three wins followed by a loss: the loss is most recent, so the current
	// streak is zero.
	base := time.Now().Add(-time.Hour)
	recordMatch(t, db, student, true, 930, 946, base)
	recordMatch(t, db, student, true, 946, 962, base.Add(time.Minute))
	recordMatch(t, db, student, true, 962, 978, base.Add(2*time.Minute))
	recordMatch(t, db, student, false, 978, 962, base.Add(3*time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.NotContains(t, codes, "streak-3-win")
}

func TestRatingThresholdCrossedByWin(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Climber", 1106)

	recordMatch(t, db, student, true, 1090, 1106, time.Now().Add(-time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.Contains(t, codes, "elo-1100")
}

func TestRatingThresholdNotEarnedWithoutCrossing(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "AlreadyHigh", 1160)

	// Started above the threshold; the win never crossed it.
	recordMatch(t, db, student, true, 1150, 1160, time.Now().Add(-time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.NotContains(t, codes, "elo-1100")
}

func TestRatingThresholdNotEarnedByLoss(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Faller", 1104)

	// The loss happens to span the threshold from below, but only wins count.
	recordMatch(t, db, student, false, 1090, 1104, time.Now().Add(-time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.NotContains(t, codes, "elo-1100")
}

func TestEvaluateStudentIdempotent(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Streaker", 1048)

	base := time.Now().Add(-time.Hour)
	recordMatch(t, db, student, true, 1000, 1016, base)
	recordMatch(t, db, student, true, 1016, 1032, base.Add(time.Minute))
	recordMatch(t, db, student, true, 1032, 1048, base.Add(2*time.Minute))

	first, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	assert.Empty(t, second)

	var count int64
	require.NoError(t, db.Model(&models.StudentAchievement{}).
		Where("student_id = ?", student.ID).Count(&count).Error)
	assert.EqualValues(t, len(first), count)
}

func TestListStudentAchievements(t *testing.T) {
	s, db := newTestAchievementService(t)
	student := seedStudent(t, db, "Climber", 1016)

	recordMatch(t, db, student, true, 1000, 1016, time.Now().Add(-time.Minute))

	codes, err := s.EvaluateStudent(student.ID)
	require.NoError(t, err)
	require.Contains(t, codes, "elo-1000")

	rows, err := s.ListStudentAchievements(student.ID)
	require.NoError(t, err)
	require.Len(t, rows, len(codes))
	for _, row := range rows {
		assert.Equal(t, student.ID, row.StudentID)
		assert.NotEmpty(t, row.Achievement.Code)
	}
}
