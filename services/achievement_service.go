package services

import (
	"log"
	"sort"

	"arena-battle-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRecord is one completed match from a student's history together with
// that student's own participant row (rating snapshots included).
type MatchRecord struct {
	Match       models.Match
	Participant models.MatchParticipant
}

// achievementPredicate decides whether a student's history qualifies for one
// achievement. Predicates are pure; idempotence lives in the storage layer.
type achievementPredicate func(student *models.Student, history []MatchRecord) bool

// ratingThreshold(T) is true only when the threshold was crossed through an
// actual win: some won match where the rating went from ≤ T to ≥ T. Starting
// above T by default earns nothing.
func ratingThreshold(threshold float64) achievementPredicate {
	return func(student *models.Student, history []MatchRecord) bool {
		for _, rec := range history {
			if rec.Match.Status != models.MatchStatusCompleted || !rec.Match.IsWinner(student.ID) {
				continue
			}
			if rec.Participant.EloAfter == nil {
				continue
			}
			if rec.Participant.EloBefore <= threshold && *rec.Participant.EloAfter >= threshold {
				return true
			}
		}
		return false
	}
}

// winStreak(L) counts consecutive wins from the most recent decided match
// backward; the first non-win ends the streak.
func winStreak(length int) achievementPredicate {
	return func(student *models.Student, history []MatchRecord) bool {
		decided := make([]MatchRecord, 0, len(history))
		for _, rec := range history {
			if rec.Match.Status == models.MatchStatusCompleted && rec.Match.HasWinner() {
				decided = append(decided, rec)
			}
		}
		sort.SliceStable(decided, func(i, j int) bool {
			return decided[i].Match.CreatedAt.After(decided[j].Match.CreatedAt)
		})

		streak := 0
		for _, rec := range decided {
			if !rec.Match.IsWinner(student.ID) {
				break
			}
			streak++
			if streak >= length {
				return true
			}
		}
		return false
	}
}

// achievementDef seeds one catalog row and binds its predicate. The code is
// the slug of the title ("Elo 1000" → "elo-1000").
type achievementDef struct {
	Title       string
	Description string
	Criteria    datatypes.JSONMap
	Predicate   achievementPredicate
}

func defaultAchievementDefs() []achievementDef {
	return []achievementDef{
		{
			Title:       "Elo 1000",
			Description: "Won a match that carried your rating over 1000",
			Criteria:    datatypes.JSONMap{"threshold": 1000},
			Predicate:   ratingThreshold(1000),
		},
		{
			Title:       "Elo 1100",
			Description: "Won a match that carried your rating over 1100",
			Criteria:    datatypes.JSONMap{"threshold": 1100},
			Predicate:   ratingThreshold(1100),
		},
		{
			Title:       "Streak 3 Win",
			Description: "Won 3 matches in a row",
			Criteria:    datatypes.JSONMap{"length": 3},
			Predicate:   winStreak(3),
		},
		{
			Title:       "Streak 4 Win",
			Description: "Won 4 matches in a row",
			Criteria:    datatypes.JSONMap{"length": 4},
			Predicate:   winStreak(4),
		},
	}
}

// AchievementService evaluates the rule catalog against match histories.
// The code→predicate table is built once at construction and never mutated.
type AchievementService struct {
	DB         *gorm.DB
	predicates map[string]achievementPredicate
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	predicates := make(map[string]achievementPredicate)
	for _, def := range defaultAchievementDefs() {
		predicates[slug.Make(def.Title)] = def.Predicate
	}
	return &AchievementService{DB: db, predicates: predicates}
}

// SeedCatalog inserts any missing catalog rows. Safe to run on every boot.
func (s *AchievementService) SeedCatalog() error {
	for _, def := range defaultAchievementDefs() {
		achievement := models.Achievement{
			ID:          uuid.NewString(),
			Code:        slug.Make(def.Title),
			Title:       def.Title,
			Description: def.Description,
			Criteria:    def.Criteria,
		}
		err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&achievement).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// EvaluateStudent runs every not-yet-earned achievement's predicate against
// the student's completed-match history and records the ones that hold.
// Returns the newly earned codes. Re-running is a no-op for anything already
// recorded — the (student, achievement) unique index absorbs races.
func (s *AchievementService) EvaluateStudent(studentID string) ([]string, error) {
	var student models.Student
	if err := s.DB.First(&student, "id = ?", studentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundf("student %s", studentID)
		}
		return nil, err
	}

	history, err := s.loadHistory(studentID)
	if err != nil {
		return nil, err
	}

	var catalog []models.Achievement
	if err := s.DB.Find(&catalog).Error; err != nil {
		return nil, err
	}

	var earnedIDs []string
	if err := s.DB.Model(&models.StudentAchievement{}).
		Where("student_id = ?", studentID).
		Pluck("achievement_id", &earnedIDs).Error; err != nil {
		return nil, err
	}
	earned := make(map[string]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}

	var newCodes []string
	for _, achievement := range catalog {
		if earned[achievement.ID] {
			continue
		}
		predicate, ok := s.predicates[achievement.Code]
		if !ok {
			log.Printf("⚠️ No predicate registered for achievement %q, skipping", achievement.Code)
			continue
		}
		if !predicate(&student, history) {
			continue
		}

		row := models.StudentAchievement{
			ID:            uuid.NewString(),
			StudentID:     studentID,
			AchievementID: achievement.ID,
		}
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return newCodes, res.Error
		}
		// RowsAffected == 0 means a concurrent evaluation won the insert;
		// that is a successful no-op, not a new grant.
		if res.RowsAffected > 0 {
			newCodes = append(newCodes, achievement.Code)
			log.Printf("🏅 Achievement earned: %s → %s", achievement.Code, studentID)
		}
	}
	return newCodes, nil
}

// ListStudentAchievements returns everything a student has earned, newest
// first, catalog entries preloaded.
func (s *AchievementService) ListStudentAchievements(studentID string) ([]models.StudentAchievement, error) {
	var rows []models.StudentAchievement
	err := s.DB.Where("student_id = ?", studentID).
		Preload("Achievement").
		Order("achieved_at DESC").
		Find(&rows).Error
	return rows, err
}

// loadHistory fetches the student's completed matches with their own
// participant rows, oldest first.
func (s *AchievementService) loadHistory(studentID string) ([]MatchRecord, error) {
	var participants []models.MatchParticipant
	if err := s.DB.Where("student_id = ?", studentID).Find(&participants).Error; err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, nil
	}

	matchIDs := make([]string, 0, len(participants))
	byMatch := make(map[string]models.MatchParticipant, len(participants))
	for _, p := range participants {
		matchIDs = append(matchIDs, p.MatchID)
		byMatch[p.MatchID] = p
	}

	var matches []models.Match
	if err := s.DB.Where("id IN ? AND status = ?", matchIDs, models.MatchStatusCompleted).
		Order("created_at ASC").
		Find(&matches).Error; err != nil {
		return nil, err
	}

	history := make([]MatchRecord, 0, len(matches))
	for _, m := range matches {
		history = append(history, MatchRecord{Match: m, Participant: byMatch[m.ID]})
	}
	return history, nil
}
