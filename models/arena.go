package models

// Arena session statuses. Sessions are created directly in_progress; the
// pending state exists for parity with matches but is not handed out.
const (
	ArenaStatusPending    = "pending"
	ArenaStatusInProgress = "in_progress"
	ArenaStatusCompleted  = "completed"
)

// ArenaSession groups participants and their generated matches for a
// round-based, elimination-free tournament. NumRounds is the target number of
// 1v1 fights per pair-slot; the session completes exactly when
// RoundsCompleted reaches it.
type ArenaSession struct {
	ID              string `json:"id" gorm:"primaryKey"`
	Status          string `json:"status" gorm:"default:'pending'"`
	NumRounds       int    `json:"num_rounds" gorm:"not null"`
	RoundsCompleted int    `json:"rounds_completed" gorm:"default:0"`

	// Relationships — arena owns both; deleting the session cascades.
	Participants []ArenaParticipant `json:"participants,omitempty" gorm:"foreignKey:ArenaID;constraint:OnDelete:CASCADE"`
	Matches      []Match            `json:"matches,omitempty" gorm:"foreignKey:ArenaID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// ArenaParticipant joins a student into an arena. FightsPlayed counts the
// matches under this arena the student has been handed (anything out of
// pending). The student is referenced by id only, no ownership.
type ArenaParticipant struct {
	ArenaID      string `json:"arena_id" gorm:"primaryKey"`
	StudentID    string `json:"student_id" gorm:"primaryKey"`
	FightsPlayed int    `json:"fights_played" gorm:"default:0"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}
