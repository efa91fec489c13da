package models

import (
	"time"

	"gorm.io/datatypes"
)

// Achievement: catalog entry (seeded at startup, editable via admin routes)
type Achievement struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "elo-1000", "streak-3-win"
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"`
	// Parameters for the predicate, e.g. {"threshold": 1100} or {"length": 3}
	Criteria datatypes.JSONMap `json:"criteria"`

	Timestamps
}

// StudentAchievement: earned instance. The composite unique index is the
// idempotence guarantee — one row per (student, achievement) for the
// system's lifetime, races collapse into ON CONFLICT DO NOTHING.
type StudentAchievement struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	StudentID     string    `gorm:"not null;uniqueIndex:idx_student_achievement" json:"student_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_student_achievement" json:"achievement_id"`
	AchievedAt    time.Time `gorm:"autoCreateTime" json:"achieved_at"`

	Student     Student     `json:"-" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	Achievement Achievement `json:"achievement,omitempty" gorm:"foreignKey:AchievementID;constraint:OnDelete:CASCADE"`
}
