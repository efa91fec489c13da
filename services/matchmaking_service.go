package services

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"arena-battle-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultEloTolerance is the rating distance within which two students are
// treated as "close" when hunting opponents for one-off matches.
const DefaultEloTolerance = 300

// opponentJitter bounds the random noise added to elo-proximity scores so the
// single closest candidate isn't picked every time.
const opponentJitter = 50

// MatchmakingService builds fair pairing schedules:
//  1. every participant gets an equal (or as equal as integer division
//     allows) number of matches,
//  2. players close in rating are preferred as opponents,
//  3. a pairing is never repeated while an unused pairing remains.
type MatchmakingService struct {
	DB           *gorm.DB
	Elo          *EloService
	EloTolerance float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMatchmakingService(db *gorm.DB) *MatchmakingService {
	return &MatchmakingService{
		DB:           db,
		Elo:          NewEloService(DefaultKFactor),
		EloTolerance: DefaultEloTolerance,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reseed makes the shuffle windows and jitter deterministic. Tests use this
// to assert stable schedules.
func (s *MatchmakingService) Reseed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Pairing is one scheduled 1v1 fight.
type Pairing struct {
	StudentA string
	StudentB string
}

// ScheduleEntry carries what the scheduler needs to know about one
// participant: identity, current rating, and load so far.
type ScheduleEntry struct {
	StudentID    string
	EloRating    float64
	FightsPlayed int

	remaining int
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// BuildSchedule produces up to totalMatches pairings in formation order.
// A shorter-than-requested result is valid and tells the caller the quota
// could not be met (odd rosters, saturation).
func (s *MatchmakingService) BuildSchedule(entries []ScheduleEntry, totalMatches int) []Pairing {
	n := len(entries)
	if n < 2 || totalMatches <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Distribute the 2*totalMatches participant slots as evenly as possible.
	// Students who have fought less (ties broken by rating) absorb the
	// remainder slots.
	pool := make([]*ScheduleEntry, n)
	for i := range entries {
		pool[i] = &entries[i]
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].FightsPlayed != pool[j].FightsPlayed {
			return pool[i].FightsPlayed < pool[j].FightsPlayed
		}
		return pool[i].EloRating < pool[j].EloRating
	})
	totalSlots := totalMatches * 2
	base := totalSlots / n
	remainder := totalSlots % n
	for i, p := range pool {
		p.remaining = base
		if i < remainder {
			p.remaining++
		}
	}

	usedPairs := make(map[string]bool)
	var schedule []Pairing

	// Form pairs pass by pass until the quota is met or nobody can be
	// paired. The pass cap is a hard safety bound against pathological
	// rosters.
	maxPasses := 4 * totalMatches
	for pass := 0; pass < maxPasses && len(schedule) < totalMatches; pass++ {
		candidates := make([]*ScheduleEntry, 0, n)
		for _, p := range pool {
			if p.remaining > 0 {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) < 2 {
			break
		}

		// Players who need more matches go first; within that, close
		// ratings sort together.
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].remaining != candidates[j].remaining {
				return candidates[i].remaining > candidates[j].remaining
			}
			return candidates[i].EloRating < candidates[j].EloRating
		})

		// Shuffle small windows of neighbors so the coarse ordering holds
		// but the exact pairings don't repeat monotonously.
		for i := 0; i < len(candidates); i += 3 {
			end := i + 3
			if end > len(candidates) {
				end = len(candidates)
			}
			window := candidates[i:end]
			s.rng.Shuffle(len(window), func(a, b int) {
				window[a], window[b] = window[b], window[a]
			})
		}

		formedThisPass := 0
		i := 0
		for i < len(candidates)-1 && len(schedule) < totalMatches {
			p1 := candidates[i]
			if p1.remaining <= 0 {
				i++
				continue
			}

			// Nearest forward candidate forming an unused pairing; only
			// once none exists may a pairing repeat.
			partner := -1
			for j := i + 1; j < len(candidates); j++ {
				p2 := candidates[j]
				if p2.remaining > 0 && !usedPairs[pairKey(p1.StudentID, p2.StudentID)] {
					partner = j
					break
				}
			}
			if partner < 0 {
				for j := i + 1; j < len(candidates); j++ {
					if candidates[j].remaining > 0 {
						partner = j
						break
					}
				}
			}
			if partner < 0 {
				i++
				continue
			}

			p2 := candidates[partner]
			p1.remaining--
			p2.remaining--
			usedPairs[pairKey(p1.StudentID, p2.StudentID)] = true
			schedule = append(schedule, Pairing{StudentA: p1.StudentID, StudentB: p2.StudentID})
			formedThisPass++

			// The partner leaves this pass; the initiator may pair again
			// later in the same pass.
			candidates = append(candidates[:partner], candidates[partner+1:]...)
			i++
		}

		if formedThisPass == 0 {
			break // saturated
		}
	}

	return schedule
}

// StoreSchedule persists pairings as pending matches under the arena, two
// participant rows each with EloBefore snapshotted from current ratings.
// ScheduleIndex preserves formation order so next-match retrieval replays
// the schedule.
func (s *MatchmakingService) StoreSchedule(tx *gorm.DB, arenaID string, pairings []Pairing) error {
	if len(pairings) == 0 {
		return nil
	}

	ids := make(map[string]bool)
	for _, p := range pairings {
		ids[p.StudentA] = true
		ids[p.StudentB] = true
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	var students []models.Student
	if err := tx.Where("id IN ?", idList).Find(&students).Error; err != nil {
		return err
	}
	ratings := make(map[string]float64, len(students))
	for _, st := range students {
		ratings[st.ID] = st.EloRating
	}

	for i, p := range pairings {
		match := models.Match{
			ID:            uuid.NewString(),
			ArenaID:       &arenaID,
			Status:        models.MatchStatusPending,
			NumRounds:     1,
			ScheduleIndex: i,
		}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		participants := []models.MatchParticipant{
			{MatchID: match.ID, StudentID: p.StudentA, EloBefore: ratingOrDefault(ratings, p.StudentA)},
			{MatchID: match.ID, StudentID: p.StudentB, EloBefore: ratingOrDefault(ratings, p.StudentB)},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
	}
	return nil
}

func ratingOrDefault(ratings map[string]float64, id string) float64 {
	if r, ok := ratings[id]; ok {
		return r
	}
	return 1000
}

// NextOpponent picks the best opponent for an on-demand pairing: remaining
// candidates sorted by elo distance plus a little bounded jitter, best score
// wins. Returns nil when the pool is empty.
func (s *MatchmakingService) NextOpponent(initiator ScheduleEntry, pool []ScheduleEntry) *ScheduleEntry {
	if len(pool) == 0 {
		return nil
	}

	s.mu.Lock()
	type scored struct {
		entry ScheduleEntry
		score float64
	}
	ranked := make([]scored, len(pool))
	for i, c := range pool {
		ranked[i] = scored{
			entry: c,
			score: math.Abs(c.EloRating-initiator.EloRating) + s.rng.Float64()*opponentJitter,
		}
	}
	s.mu.Unlock()

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })
	best := ranked[0].entry
	return &best
}

// FindOpponents hunts count similarly-rated opponents for a standalone
// match. With a nil pool it queries the whole roster within EloTolerance.
func (s *MatchmakingService) FindOpponents(student *models.Student, count int, pool []models.Student) ([]models.Student, error) {
	if pool == nil {
		err := s.DB.Where("id <> ? AND elo_rating BETWEEN ? AND ?",
			student.ID,
			student.EloRating-s.EloTolerance,
			student.EloRating+s.EloTolerance,
		).Find(&pool).Error
		if err != nil {
			return nil, err
		}
	}
	if len(pool) < count {
		return nil, nil
	}

	s.mu.Lock()
	scores := make(map[string]float64, len(pool))
	for _, o := range pool {
		scores[o.ID] = math.Abs(o.EloRating-student.EloRating) + s.rng.Float64()*opponentJitter
	}
	s.mu.Unlock()

	sort.SliceStable(pool, func(i, j int) bool { return scores[pool[i].ID] < scores[pool[j].ID] })
	return pool[:count], nil
}
