package models

import (
	"gorm.io/datatypes"
)

// Match statuses. pending → in_progress → completed, no way back out of
// completed. A match is never completed without a declared winner.
const (
	MatchStatusPending    = "pending"
	MatchStatusInProgress = "in_progress"
	MatchStatusCompleted  = "completed"
)

// Match records a single 1v1 (or multi-player) fight. ArenaID nil means a
// standalone match outside any session.
type Match struct {
	ID      string  `gorm:"primaryKey" json:"id"`
	ArenaID *string `gorm:"index" json:"arena_id,omitempty"` // nil = standalone match

	Status          string `json:"status" gorm:"default:'pending'"`
	NumRounds       int    `json:"num_rounds" gorm:"default:1"`
	RoundsCompleted int    `json:"rounds_completed" gorm:"default:0"`

	// Position within the pre-generated arena schedule; next-match retrieval
	// hands matches out in this order.
	ScheduleIndex int `json:"schedule_index" gorm:"column:schedule_index;default:0"`

	// Winner student ids (supports multi-winner ties). Empty until declared.
	WinnerIDs datatypes.JSONSlice[string] `json:"winner_ids,omitempty"`

	// Relationship: match owns its participant rows.
	Participants []MatchParticipant `json:"participants,omitempty" gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// HasWinner reports whether a winner set has been declared.
func (m *Match) HasWinner() bool {
	return len(m.WinnerIDs) > 0
}

// IsWinner reports whether the given student is in the declared winner set.
func (m *Match) IsWinner(studentID string) bool {
	for _, id := range m.WinnerIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// MatchParticipant snapshots a student's rating going into a match.
// EloAfter stays nil until the match completes.
type MatchParticipant struct {
	MatchID   string   `json:"match_id" gorm:"primaryKey"`
	StudentID string   `json:"student_id" gorm:"primaryKey"`
	EloBefore float64  `json:"elo_before"`
	EloAfter  *float64 `json:"elo_after,omitempty"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}
