package workers

import (
	"log"
	"time"

	"arena-battle-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RatingSnapshotWorker periodically records every student's rating and
// leaderboard rank so the rating-history endpoint has data to serve.
type RatingSnapshotWorker struct {
	db       *gorm.DB
	interval time.Duration
}

func NewRatingSnapshotWorker(db *gorm.DB, interval time.Duration) *RatingSnapshotWorker {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &RatingSnapshotWorker{db: db, interval: interval}
}

func (w *RatingSnapshotWorker) Start() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.snapshotAll),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("🔁 Rating snapshot worker started (every %s)", w.interval)
	return sched, nil
}

// snapshotAll writes one RatingSnapshot row per student. Rank is the
// 1-based position on the rating leaderboard at snapshot time.
func (w *RatingSnapshotWorker) snapshotAll() {
	var students []models.Student
	if err := w.db.Order("elo_rating DESC, id ASC").Find(&students).Error; err != nil {
		log.Printf("[Snapshot] DB error: %v", err)
		return
	}
	if len(students) == 0 {
		return
	}

	snapshots := make([]models.RatingSnapshot, 0, len(students))
	for i, student := range students {
		snapshots = append(snapshots, models.RatingSnapshot{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			EloRating: student.EloRating,
			Rank:      i + 1,
		})
	}

	if err := w.db.Create(&snapshots).Error; err != nil {
		log.Printf("[Snapshot] Failed to record snapshots: %v", err)
		return
	}
	log.Printf("✅ Recorded %d rating snapshot(s)", len(snapshots))
}
