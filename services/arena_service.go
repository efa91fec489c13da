package services

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"arena-battle-system/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArenaService owns the Match and ArenaSession state machines: it hands out
// the next fight, declares winners, applies rating updates, and kicks off
// achievement evaluation. Operations touching the same arena are serialized
// through a per-arena mutex so concurrent next-match calls can't hand out
// the same pending match twice and winner declarations can't double-count
// rounds; different arenas stay concurrent.
type ArenaService struct {
	DB           *gorm.DB
	Elo          *EloService
	Matchmaking  *MatchmakingService
	Achievements *AchievementService

	locksMu    sync.Mutex
	arenaLocks map[string]*sync.Mutex
}

func NewArenaService(db *gorm.DB, matchmaking *MatchmakingService, achievements *AchievementService) *ArenaService {
	return &ArenaService{
		DB:           db,
		Elo:          NewEloService(DefaultKFactor),
		Matchmaking:  matchmaking,
		Achievements: achievements,
		arenaLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *ArenaService) lockArena(arenaID string) func() {
	s.locksMu.Lock()
	mu, ok := s.arenaLocks[arenaID]
	if !ok {
		mu = &sync.Mutex{}
		s.arenaLocks[arenaID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// CreateArenaSession creates the session in_progress with one participant
// per student and pre-generates the full match schedule
// (⌊n/2⌋ × numRounds matches, EloBefore snapshotted at creation).
func (s *ArenaService) CreateArenaSession(studentIDs []string, numRounds int) (*models.ArenaSession, error) {
	if len(studentIDs) < 2 {
		return nil, validationf("at least 2 students required, got %d", len(studentIDs))
	}
	if numRounds <= 0 {
		return nil, validationf("num_rounds must be positive, got %d", numRounds)
	}
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] {
			return nil, validationf("duplicate student id %s", id)
		}
		seen[id] = true
	}

	var students []models.Student
	if err := s.DB.Where("id IN ?", studentIDs).Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) != len(studentIDs) {
		return nil, validationf("one or more students not found")
	}

	arena := models.ArenaSession{
		ID:        uuid.NewString(),
		Status:    models.ArenaStatusInProgress,
		NumRounds: numRounds,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&arena).Error; err != nil {
			return err
		}
		participants := make([]models.ArenaParticipant, 0, len(studentIDs))
		for _, id := range studentIDs {
			participants = append(participants, models.ArenaParticipant{
				ArenaID:   arena.ID,
				StudentID: id,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}

		entries := make([]ScheduleEntry, 0, len(students))
		for _, st := range students {
			entries = append(entries, ScheduleEntry{StudentID: st.ID, EloRating: st.EloRating})
		}
		totalMatches := (len(students) / 2) * numRounds
		schedule := s.Matchmaking.BuildSchedule(entries, totalMatches)
		return s.Matchmaking.StoreSchedule(tx, arena.ID, schedule)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⚔️ Arena %s created: %d students, %d rounds", arena.ID, len(studentIDs), numRounds)
	return s.GetArenaSession(arena.ID)
}

// GetArenaSession loads a session with its participants (students preloaded).
func (s *ArenaService) GetArenaSession(arenaID string) (*models.ArenaSession, error) {
	var arena models.ArenaSession
	err := s.DB.Preload("Participants.Student").First(&arena, "id = ?", arenaID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, notFoundf("arena session %s", arenaID)
	}
	if err != nil {
		return nil, err
	}
	return &arena, nil
}

// DeleteArenaSession removes the session; participants and matches (with
// their participant rows) go with it.
func (s *ArenaService) DeleteArenaSession(arenaID string) error {
	res := s.DB.Delete(&models.ArenaSession{}, "id = ?", arenaID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundf("arena session %s", arenaID)
	}
	return nil
}

// GetMatch loads a match with its participant rows.
func (s *ArenaService) GetMatch(matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.Preload("Participants").First(&match, "id = ?", matchID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, notFoundf("match %s", matchID)
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetOrCreateNextMatch returns the earliest pending match of the arena's
// pre-generated schedule and moves it to in_progress, bumping FightsPlayed
// for both fighters. When the schedule is exhausted it falls back to an
// incremental pairing with the least-fights participant as initiator.
func (s *ArenaService) GetOrCreateNextMatch(arenaID string) (*models.Match, error) {
	unlock := s.lockArena(arenaID)
	defer unlock()

	var arena models.ArenaSession
	if err := s.DB.First(&arena, "id = ?", arenaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundf("arena session %s", arenaID)
		}
		return nil, err
	}
	if arena.Status != models.ArenaStatusInProgress {
		return nil, invalidStatef("arena session is not in progress (status %s)", arena.Status)
	}
	if arena.RoundsCompleted >= arena.NumRounds {
		return nil, invalidStatef("all rounds completed")
	}

	var participants []models.ArenaParticipant
	if err := s.DB.Preload("Student").Where("arena_id = ?", arenaID).Find(&participants).Error; err != nil {
		return nil, err
	}
	if len(participants) < 2 {
		return nil, validationf("not enough participants")
	}

	var matchID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.Match
		err := tx.Where("arena_id = ? AND status = ?", arenaID, models.MatchStatusPending).
			Order("schedule_index ASC, created_at ASC").
			First(&match).Error
		switch {
		case err == nil:
			// Pre-generated match found, hand it out.
			if err := tx.Model(&match).Update("status", models.MatchStatusInProgress).Error; err != nil {
				return err
			}
			var fighters []models.MatchParticipant
			if err := tx.Where("match_id = ?", match.ID).Find(&fighters).Error; err != nil {
				return err
			}
			for _, f := range fighters {
				if err := bumpFightsPlayed(tx, arenaID, f.StudentID); err != nil {
					return err
				}
			}
			matchID = match.ID
			return nil

		case err == gorm.ErrRecordNotFound:
			// Schedule exhausted; pair on demand.
			id, err := s.createFallbackMatch(tx, arenaID, participants)
			if err != nil {
				return err
			}
			matchID = id
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(matchID)
}

// createFallbackMatch builds a single on-demand pairing: the participant with
// the fewest fights initiates, the scheduler picks the opponent.
func (s *ArenaService) createFallbackMatch(tx *gorm.DB, arenaID string, participants []models.ArenaParticipant) (string, error) {
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].FightsPlayed < participants[j].FightsPlayed
	})
	initiator := participants[0]

	pool := make([]ScheduleEntry, 0, len(participants)-1)
	for _, p := range participants[1:] {
		pool = append(pool, ScheduleEntry{
			StudentID:    p.StudentID,
			EloRating:    p.Student.EloRating,
			FightsPlayed: p.FightsPlayed,
		})
	}
	opponent := s.Matchmaking.NextOpponent(ScheduleEntry{
		StudentID:    initiator.StudentID,
		EloRating:    initiator.Student.EloRating,
		FightsPlayed: initiator.FightsPlayed,
	}, pool)
	if opponent == nil {
		return "", fmt.Errorf("no suitable opponent for student %s: %w", initiator.StudentID, ErrInsufficientCandidates)
	}

	var nextIndex int64
	if err := tx.Model(&models.Match{}).Where("arena_id = ?", arenaID).Count(&nextIndex).Error; err != nil {
		return "", err
	}

	match := models.Match{
		ID:            uuid.NewString(),
		ArenaID:       &arenaID,
		Status:        models.MatchStatusInProgress,
		NumRounds:     1,
		ScheduleIndex: int(nextIndex),
	}
	if err := tx.Create(&match).Error; err != nil {
		return "", err
	}
	fighters := []models.MatchParticipant{
		{MatchID: match.ID, StudentID: initiator.StudentID, EloBefore: initiator.Student.EloRating},
		{MatchID: match.ID, StudentID: opponent.StudentID, EloBefore: opponent.EloRating},
	}
	if err := tx.Create(&fighters).Error; err != nil {
		return "", err
	}
	for _, f := range fighters {
		if err := bumpFightsPlayed(tx, arenaID, f.StudentID); err != nil {
			return "", err
		}
	}
	return match.ID, nil
}

func bumpFightsPlayed(tx *gorm.DB, arenaID, studentID string) error {
	return tx.Model(&models.ArenaParticipant{}).
		Where("arena_id = ? AND student_id = ?", arenaID, studentID).
		UpdateColumn("fights_played", gorm.Expr("fights_played + 1")).Error
}

// DeclareWinner validates and completes an in_progress match: pairwise
// winner–loser rating deltas (no delta between two winners, none between two
// losers), EloAfter stamped on every participant row, student aggregates
// updated atomically, match → completed, arena round bookkeeping. Returns
// the completed match and, for arena matches, the updated session.
func (s *ArenaService) DeclareWinner(matchID string, winnerIDs []string) (*models.Match, *models.ArenaSession, error) {
	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, notFoundf("match %s", matchID)
		}
		return nil, nil, err
	}

	if match.ArenaID != nil {
		unlock := s.lockArena(*match.ArenaID)
		defer unlock()
		// Re-read under the lock; a concurrent declaration may have won.
		if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
			return nil, nil, err
		}
	}

	if match.Status != models.MatchStatusInProgress {
		return nil, nil, invalidStatef("match is not in progress (status %s)", match.Status)
	}
	if len(winnerIDs) == 0 {
		return nil, nil, validationf("at least one winner id required")
	}

	var participants []models.MatchParticipant
	if err := s.DB.Where("match_id = ?", matchID).Find(&participants).Error; err != nil {
		return nil, nil, err
	}

	isParticipant := make(map[string]bool, len(participants))
	for _, p := range participants {
		isParticipant[p.StudentID] = true
	}
	winners := make(map[string]bool, len(winnerIDs))
	for _, id := range winnerIDs {
		if !isParticipant[id] {
			return nil, nil, validationf("winner %s is not a player in this match", id)
		}
		winners[id] = true
	}

	affected := make([]string, 0, len(participants))
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Claim the match first. The status predicate makes the transition
		// atomic: of two concurrent declarations on the same match, the
		// second matches zero rows and the whole transaction rolls back,
		// so the rating increments below can never apply twice. Arena
		// matches are additionally serialized by the arena lock, but
		// standalone matches have only this guard.
		winnerList := make([]string, 0, len(winners))
		seenWinner := make(map[string]bool, len(winners))
		for _, id := range winnerIDs {
			if seenWinner[id] {
				continue
			}
			seenWinner[id] = true
			winnerList = append(winnerList, id)
		}
		res := tx.Model(&models.Match{}).
			Where("id = ? AND status = ?", match.ID, models.MatchStatusInProgress).
			Updates(map[string]interface{}{
				"status":           models.MatchStatusCompleted,
				"winner_ids":       datatypes.NewJSONSlice(winnerList),
				"rounds_completed": match.NumRounds,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidStatef("match is not in progress")
		}

		for _, p := range participants {
			delta := s.pairwiseDelta(p, participants, winners)
			eloAfter := p.EloBefore + float64(delta)

			if err := tx.Model(&models.MatchParticipant{}).
				Where("match_id = ? AND student_id = ?", p.MatchID, p.StudentID).
				UpdateColumn("elo_after", eloAfter).Error; err != nil {
				return err
			}

			// Atomic in-place increments: a student completing matches in
			// two arenas at once must not lose an update.
			won := winners[p.StudentID]
			updates := map[string]interface{}{
				"elo_rating":    gorm.Expr("elo_rating + ?", float64(delta)),
				"total_matches": gorm.Expr("total_matches + 1"),
			}
			if won {
				updates["wins"] = gorm.Expr("wins + 1")
			} else {
				updates["losses"] = gorm.Expr("losses + 1")
			}
			if err := tx.Model(&models.Student{}).
				Where("id = ?", p.StudentID).
				UpdateColumns(updates).Error; err != nil {
				return err
			}
			affected = append(affected, p.StudentID)
		}

		if match.ArenaID != nil {
			var arena models.ArenaSession
			if err := tx.First(&arena, "id = ?", *match.ArenaID).Error; err != nil {
				return err
			}
			arena.RoundsCompleted++
			if arena.RoundsCompleted >= arena.NumRounds {
				arena.Status = models.ArenaStatusCompleted
			}
			if err := tx.Save(&arena).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Re-check the rulebook for everyone whose stats moved. Evaluation is
	// idempotent, so a failure here is logged and not surfaced.
	for _, studentID := range affected {
		if _, err := s.Achievements.EvaluateStudent(studentID); err != nil {
			log.Printf("⚠️ Achievement evaluation failed for %s: %v", studentID, err)
		}
	}

	completed, err := s.GetMatch(matchID)
	if err != nil {
		return nil, nil, err
	}
	var arena *models.ArenaSession
	if match.ArenaID != nil {
		arena, err = s.GetArenaSession(*match.ArenaID)
		if err != nil {
			return nil, nil, err
		}
	}
	log.Printf("🏁 Match %s completed, winners: %v", matchID, winnerIDs)
	return completed, arena, nil
}

// pairwiseDelta sums this participant's rating changes across every
// winner–loser pair they belong to. Winner vs winner and loser vs loser
// contribute nothing.
func (s *ArenaService) pairwiseDelta(p models.MatchParticipant, all []models.MatchParticipant, winners map[string]bool) int {
	total := 0
	won := winners[p.StudentID]
	for _, other := range all {
		if other.StudentID == p.StudentID {
			continue
		}
		otherWon := winners[other.StudentID]
		switch {
		case won && !otherWon:
			winnerChange, _ := s.Elo.RatingChanges(p.EloBefore, other.EloBefore)
			total += winnerChange
		case !won && otherWon:
			_, loserChange := s.Elo.RatingChanges(other.EloBefore, p.EloBefore)
			total += loserChange
		}
	}
	return total
}

// CreateStandaloneMatch creates an in_progress match outside any arena with
// an explicit roster. EloBefore is snapshotted from current ratings.
func (s *ArenaService) CreateStandaloneMatch(playerIDs []string, numRounds int) (*models.Match, error) {
	if len(playerIDs) < 2 {
		return nil, validationf("at least 2 players required, got %d", len(playerIDs))
	}
	if numRounds <= 0 {
		return nil, validationf("num_rounds must be positive, got %d", numRounds)
	}

	var students []models.Student
	if err := s.DB.Where("id IN ?", playerIDs).Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) != len(playerIDs) {
		return nil, validationf("one or more players not found")
	}
	ratings := make(map[string]float64, len(students))
	for _, st := range students {
		ratings[st.ID] = st.EloRating
	}

	match := models.Match{
		ID:        uuid.NewString(),
		Status:    models.MatchStatusInProgress,
		NumRounds: numRounds,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		fighters := make([]models.MatchParticipant, 0, len(playerIDs))
		for _, id := range playerIDs {
			fighters = append(fighters, models.MatchParticipant{
				MatchID:   match.ID,
				StudentID: id,
				EloBefore: ratings[id],
			})
		}
		return tx.Create(&fighters).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(match.ID)
}

// AutoMatch finds numPlayers-1 similarly-rated opponents for the requesting
// student and creates a standalone match with them.
func (s *ArenaService) AutoMatch(studentID string, numPlayers, numRounds int) (*models.Match, error) {
	if numPlayers < 2 {
		return nil, validationf("num_players must be at least 2, got %d", numPlayers)
	}

	var student models.Student
	if err := s.DB.First(&student, "id = ?", studentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundf("student %s", studentID)
		}
		return nil, err
	}

	opponents, err := s.Matchmaking.FindOpponents(&student, numPlayers-1, nil)
	if err != nil {
		return nil, err
	}
	if len(opponents) < numPlayers-1 {
		return nil, fmt.Errorf("could not find %d suitable opponents: %w", numPlayers-1, ErrInsufficientCandidates)
	}

	playerIDs := make([]string, 0, numPlayers)
	playerIDs = append(playerIDs, student.ID)
	for _, o := range opponents {
		playerIDs = append(playerIDs, o.ID)
	}
	return s.CreateStandaloneMatch(playerIDs, numRounds)
}
