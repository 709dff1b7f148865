package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Deprioritization multipliers applied by the matching engine.
const (
	MultiplierDefault   = 1.0
	MultiplierApplied   = 0.4
	MultiplierClosed    = 0.1
	MultiplierShortlist = 1.3
)

// Multiplier returns the job_deprioritization factor for a pair in state s.
// Every state on the application path counts as applied.
func Multiplier(s State) float64 {
	switch s {
	case StateApplied, StateInterviewScheduled, StateInterviewCompleted, StateOfferReceived:
		return MultiplierApplied
	case StateRejected, StateWithdrawn:
		return MultiplierClosed
	case StateSaved, StateBookmarked:
		return MultiplierShortlist
	}
	return MultiplierDefault
}

// Entry is the current state of one (user, job) pair.
type Entry struct {
	JobID             uuid.UUID `json:"job_id"`
	State             State     `json:"state"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// Pipeline groups a user's jobs by current state.
type Pipeline struct {
	UserID string                `json:"user_id"`
	Counts map[State]int         `json:"counts"`
	Jobs   map[State][]uuid.UUID `json:"jobs"`
	Total  int                   `json:"total"`
}

// BuildPipeline groups entries by state. Job ids within a state are ordered
// by most recent interaction, then id.
func BuildPipeline(userID string, entries []Entry) Pipeline {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].LastInteractionAt.Equal(sorted[j].LastInteractionAt) {
			return sorted[i].LastInteractionAt.After(sorted[j].LastInteractionAt)
		}
		return sorted[i].JobID.String() < sorted[j].JobID.String()
	})

	p := Pipeline{
		UserID: userID,
		Counts: make(map[State]int),
		Jobs:   make(map[State][]uuid.UUID),
	}
	for _, e := range sorted {
		if e.State == StateNone {
			continue
		}
		p.Counts[e.State]++
		p.Jobs[e.State] = append(p.Jobs[e.State], e.JobID)
		p.Total++
	}
	return p
}
