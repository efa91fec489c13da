package models

import (
	"time"
)

// Student is a rated participant. Profile fields (name, avatar) are owned by
// the external profile service; rating and the aggregate counters are only
// ever mutated by the winner-declaration step.
type Student struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	Name      string  `gorm:"not null" json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	EloRating    float64 `json:"elo_rating" gorm:"default:1000"`
	Wins         int     `json:"wins" gorm:"default:0"`
	Losses       int     `json:"losses" gorm:"default:0"`
	TotalMatches int     `json:"total_matches" gorm:"default:0"`

	Timestamps
}

// WinRate in percent; 0 for students who have not fought yet.
func (s *Student) WinRate() float64 {
	if s.TotalMatches == 0 {
		return 0.0
	}
	return float64(s.Wins) / float64(s.TotalMatches) * 100
}

// Timestamps adds GORM auto-times. Deletes are hard deletes so the
// parent-owns-child cascades (arena→matches→participants, student→join rows)
// actually fire at the database level.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
