package services

import (
	"fmt"
	"testing"

	"arena-battle-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
// cache=shared keeps the database alive across the pool's connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.ArenaSession{},
		&models.ArenaParticipant{},
		&models.Match{},
		&models.MatchParticipant{},
		&models.Achievement{},
		&models.StudentAchievement{},
		&models.RatingSnapshot{},
	))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, name string, rating float64) models.Student {
	t.Helper()

	student := models.Student{
		ID:        uuid.NewString(),
		Name:      name,
		EloRating: rating,
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func newTestArenaService(t *testing.T) (*ArenaService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	matchmaking := NewMatchmakingService(db)
	matchmaking.Reseed(1)
	achievements := NewAchievementService(db)
	require.NoError(t, achievements.SeedCatalog())
	return NewArenaService(db, matchmaking, achievements), db
}
