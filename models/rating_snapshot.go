package models

import (
	"time"
)

// RatingSnapshot — periodic capture of a student's rating and leaderboard
// rank, written by the snapshot worker. Feeds the rating timeline view.
type RatingSnapshot struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	StudentID  string    `gorm:"index;not null" json:"student_id"`
	EloRating  float64   `json:"elo_rating"`
	Rank       int       `json:"rank"`
	RecordedAt time.Time `gorm:"autoCreateTime;index" json:"recorded_at"`
}
