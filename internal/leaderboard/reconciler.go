package leaderboard

import (
	"sort"
	"sync"

	"github.com/PickFolio/pickfolio-go/internal/domain"
)

// Reconciler merges an initial ranked snapshot with an unbounded stream of
// score events into one consistently ordered view. Each event is a
// last-write-wins overwrite keyed by participant, not a delta, so replayed
// and out-of-order deliveries converge on the same snapshot.
type Reconciler struct {
	mu      sync.Mutex
	entries []domain.LeaderboardEntry
	index   map[string]int // participantId -> position in entries
}

func NewReconciler() *Reconciler {
	return &Reconciler{index: make(map[string]int)}
}

// Seed replaces the working set with an initial snapshot.
func (r *Reconciler) Seed(entries []domain.LeaderboardEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make([]domain.LeaderboardEntry, len(entries))
	copy(r.entries, entries)
	// The index must be rebuilt from scratch: positions from a previous
	// seed would point past the end of a smaller working set.
	r.index = make(map[string]int, len(entries))
	r.resort()
}

// Apply folds one score event into the working set and returns the new
// ordered snapshot. An event naming an unseen participant appends a new
// entry; entries are never deleted.
func (r *Reconciler) Apply(event domain.ScoreUpdateEvent) []domain.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[event.ParticipantID]; ok {
		r.entries[i].TotalPortfolioValue = event.TotalPortfolioValue
		if event.Username != "" {
			r.entries[i].Username = event.Username
		}
	} else {
		r.entries = append(r.entries, domain.LeaderboardEntry{
			ParticipantID:       event.ParticipantID,
			Username:            event.Username,
			TotalPortfolioValue: event.TotalPortfolioValue,
		})
	}

	r.resort()
	return r.snapshotLocked()
}

// Snapshot returns a copy of the current ordered view.
func (r *Reconciler) Snapshot() []domain.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// resort orders by portfolio value descending. The sort is stable: with no
// secondary key defined, ties keep their prior relative order.
func (r *Reconciler) resort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].TotalPortfolioValue > r.entries[j].TotalPortfolioValue
	})
	for i, e := range r.entries {
		r.index[e.ParticipantID] = i
	}
}

func (r *Reconciler) snapshotLocked() []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
