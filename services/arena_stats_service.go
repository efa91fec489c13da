package services

import (
	"sort"

	"arena-battle-system/models"

	"gorm.io/gorm"
)

// StudentStats is one leaderboard row for an arena: match tallies scoped to
// the arena, current global rating, and the net rating movement inside it.
type StudentStats struct {
	StudentID      string  `json:"student_id"`
	Name           string  `json:"name"`
	EloRating      float64 `json:"elo_rating"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	FightsPlayed   int     `json:"fights_played"`
	TotalEloChange float64 `json:"total_elo_change"`
	// Career win rate in percent, not scoped to this arena.
	WinRate float64 `json:"win_rate"`
}

// ArenaStatsService aggregates per-participant results for an arena session.
type ArenaStatsService struct {
	DB *gorm.DB
}

func NewArenaStatsService(db *gorm.DB) *ArenaStatsService {
	return &ArenaStatsService{DB: db}
}

// ComputeArenaStats builds the standings for every participant, sorted by
// rating descending. Wins/losses and rating change only count completed
// matches under this arena.
func (s *ArenaStatsService) ComputeArenaStats(arenaID string) ([]StudentStats, error) {
	var arena models.ArenaSession
	if err := s.DB.First(&arena, "id = ?", arenaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundf("arena session %s", arenaID)
		}
		return nil, err
	}

	var participants []models.ArenaParticipant
	if err := s.DB.Preload("Student").Where("arena_id = ?", arenaID).Find(&participants).Error; err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := s.DB.Preload("Participants").
		Where("arena_id = ? AND status = ?", arenaID, models.MatchStatusCompleted).
		Find(&matches).Error; err != nil {
		return nil, err
	}

	stats := make([]StudentStats, 0, len(participants))
	for _, participant := range participants {
		row := StudentStats{
			StudentID:    participant.StudentID,
			Name:         participant.Student.Name,
			EloRating:    participant.Student.EloRating,
			FightsPlayed: participant.FightsPlayed,
			WinRate:      participant.Student.WinRate(),
		}
		for _, match := range matches {
			for _, mp := range match.Participants {
				if mp.StudentID != participant.StudentID {
					continue
				}
				if mp.EloAfter != nil {
					row.TotalEloChange += *mp.EloAfter - mp.EloBefore
				}
				if match.HasWinner() {
					if match.IsWinner(participant.StudentID) {
						row.Wins++
					} else {
						row.Losses++
					}
				}
			}
		}
		stats = append(stats, row)
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].EloRating > stats[j].EloRating })
	return stats, nil
}
