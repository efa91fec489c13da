package services

import (
	"testing"

	"arena-battle-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesFor(ratings map[string]float64) []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(ratings))
	for id, rating := range ratings {
		entries = append(entries, ScheduleEntry{StudentID: id, EloRating: rating})
	}
	return entries
}

func appearanceCounts(schedule []Pairing) map[string]int {
	counts := make(map[string]int)
	for _, p := range schedule {
		counts[p.StudentA]++
		counts[p.StudentB]++
	}
	return counts
}

func TestBuildScheduleEvenLoad(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(42)

	entries := entriesFor(map[string]float64{
		"alice": 1000, "bob": 1050, "carol": 1100, "dave": 1200,
	})

	// 4 students, 2 rounds worth of fights
	schedule := s.BuildSchedule(entries, 4)
	require.Len(t, schedule, 4)

	for id, count := range appearanceCounts(schedule) {
		assert.Equal(t, 2, count, "student %s", id)
	}
}

func TestBuildScheduleNoSelfPair(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(7)

	entries := entriesFor(map[string]float64{
		"a": 900, "b": 1000, "c": 1100, "d": 1200, "e": 1300,
	})
	for _, p := range s.BuildSchedule(entries, 10) {
		assert.NotEqual(t, p.StudentA, p.StudentB)
	}
}

func TestBuildScheduleNoRepeatWhileUnusedRemains(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(3)

	entries := entriesFor(map[string]float64{
		"a": 1000, "b": 1010, "c": 1020, "d": 1030,
	})

	// 4 pairings out of the 6 possible: all must be distinct.
	schedule := s.BuildSchedule(entries, 4)
	require.Len(t, schedule, 4)

	seen := make(map[string]bool)
	for _, p := range schedule {
		key := pairKey(p.StudentA, p.StudentB)
		assert.False(t, seen[key], "pairing %s repeated", key)
		seen[key] = true
	}
}

func TestBuildScheduleRepeatsOnlyWhenSaturated(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(11)

	// Two students, three matches: the only pairing must repeat.
	entries := entriesFor(map[string]float64{"a": 1000, "b": 1000})
	schedule := s.BuildSchedule(entries, 3)
	require.Len(t, schedule, 3)
	for _, p := range schedule {
		assert.Equal(t, "a|b", pairKey(p.StudentA, p.StudentB))
	}
}

func TestBuildScheduleOddRoster(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(5)

	entries := entriesFor(map[string]float64{"a": 1000, "b": 1050, "c": 1100})
	schedule := s.BuildSchedule(entries, 3)
	require.Len(t, schedule, 3)

	for id, count := range appearanceCounts(schedule) {
		assert.Equal(t, 2, count, "student %s", id)
	}
}

func TestBuildScheduleDegenerateInputs(t *testing.T) {
	s := NewMatchmakingService(nil)

	assert.Nil(t, s.BuildSchedule(nil, 4))
	assert.Nil(t, s.BuildSchedule(entriesFor(map[string]float64{"a": 1000}), 4))
	assert.Nil(t, s.BuildSchedule(entriesFor(map[string]float64{"a": 1000, "b": 1000}), 0))
}

func TestBuildScheduleDeterministicWithSeed(t *testing.T) {
	entries := map[string]float64{
		"a": 900, "b": 1000, "c": 1100, "d": 1200, "e": 1300, "f": 1400,
	}

	s1 := NewMatchmakingService(nil)
	s1.Reseed(99)
	first := s1.BuildSchedule(entriesFor(entries), 9)

	s2 := NewMatchmakingService(nil)
	s2.Reseed(99)
	second := s2.BuildSchedule(entriesFor(entries), 9)

	// Map iteration scrambles input order, so compare as multisets of pairs.
	require.Equal(t, len(first), len(second))
	countPairs := func(schedule []Pairing) map[string]int {
		m := make(map[string]int)
		for _, p := range schedule {
			m[pairKey(p.StudentA, p.StudentB)]++
		}
		return m
	}
	assert.Equal(t, countPairs(first), countPairs(second))
}

func TestStoreSchedule(t *testing.T) {
	db := newTestDB(t)
	s := NewMatchmakingService(db)

	alice := seedStudent(t, db, "Alice", 1000)
	bob := seedStudent(t, db, "Bob", 1200)

	arenaID := "arena-1"
	require.NoError(t, db.Create(&models.ArenaSession{
		ID: arenaID, Status: models.ArenaStatusInProgress, NumRounds: 2,
	}).Error)

	pairings := []Pairing{
		{StudentA: alice.ID, StudentB: bob.ID},
		{StudentA: bob.ID, StudentB: alice.ID},
	}
	require.NoError(t, s.StoreSchedule(db, arenaID, pairings))

	var matches []models.Match
	require.NoError(t, db.Preload("Participants").
		Where("arena_id = ?", arenaID).
		Order("schedule_index ASC").
		Find(&matches).Error)
	require.Len(t, matches, 2)

	for i, match := range matches {
		assert.Equal(t, models.MatchStatusPending, match.Status)
		assert.Equal(t, i, match.ScheduleIndex)
		require.Len(t, match.Participants, 2)
		for _, mp := range match.Participants {
			switch mp.StudentID {
			case alice.ID:
				assert.Equal(t, 1000.0, mp.EloBefore)
			case bob.ID:
				assert.Equal(t, 1200.0, mp.EloBefore)
			default:
				t.Fatalf("unexpected participant %s", mp.StudentID)
			}
			assert.Nil(t, mp.EloAfter)
		}
	}
}

func TestNextOpponentPrefersCloseRatings(t *testing.T) {
	s := NewMatchmakingService(nil)
	s.Reseed(13)

	initiator := ScheduleEntry{StudentID: "me", EloRating: 1000}
	pool := []ScheduleEntry{
		{StudentID: "close", EloRating: 1010},
		{StudentID: "far", EloRating: 2000},
	}

	// Jitter is bounded well below the 990-point gap, so the close
	// candidate always wins.
	for i := 0; i < 20; i++ {
		opponent := s.NextOpponent(initiator, pool)
		require.NotNil(t, opponent)
		assert.Equal(t, "close", opponent.StudentID)
	}
}

func TestNextOpponentEmptyPool(t *testing.T) {
	s := NewMatchmakingService(nil)
	assert.Nil(t, s.NextOpponent(ScheduleEntry{StudentID: "me"}, nil))
}

func TestFindOpponentsWithinTolerance(t *testing.T) {
	db := newTestDB(t)
	s := NewMatchmakingService(db)
	s.Reseed(17)

	me := seedStudent(t, db, "Me", 1000)
	seedStudent(t, db, "Near", 1100)
	seedStudent(t, db, "AlsoNear", 950)
	seedStudent(t, db, "Far", 2000)

	opponents, err := s.FindOpponents(&me, 2, nil)
	require.NoError(t, err)
	require.Len(t, opponents, 2)
	for _, o := range opponents {
		assert.NotEqual(t, me.ID, o.ID)
		assert.NotEqual(t, "Far", o.Name)
	}
}

func TestFindOpponentsPoolTooSmall(t *testing.T) {
	db := newTestDB(t)
	s := NewMatchmakingService(db)

	me := seedStudent(t, db, "Me", 1000)
	seedStudent(t, db, "Only", 1050)

	opponents, err := s.FindOpponents(&me, 2, nil)
	require.NoError(t, err)
	assert.Nil(t, opponents)
}
