// Package ledger defines the per-(user, job) interaction state machine.
//
// State graph:
//
//	(none) ──► viewed ──► saved ──► applied ──► interview_scheduled ──► interview_completed
//	             │          ▲ │        │                                      │
//	             │          │ ▼        ▼                                      ▼
//	             └──► bookmarked    rejected                            offer_received ──► rejected
//	                        │
//	                        ▼
//	                      shared (annotation, state unchanged)
//
// withdrawn is reachable from saved, bookmarked, applied and both interview
// states, and re-opens the pair to a new viewed. rejected is terminal and
// offer_received only moves on to rejected.
package ledger

import (
	"fmt"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// State is the folded position of a (user, job) pair. The zero value is "no
// interactions yet".
type State string

const (
	StateNone               State = ""
	StateViewed             State = State(models.KindViewed)
	StateSaved              State = State(models.KindSaved)
	StateBookmarked         State = State(models.KindBookmarked)
	StateApplied            State = State(models.KindApplied)
	StateInterviewScheduled State = State(models.KindInterviewScheduled)
	StateInterviewCompleted State = State(models.KindInterviewCompleted)
	StateOfferReceived      State = State(models.KindOfferReceived)
	StateRejected           State = State(models.KindRejected)
	StateWithdrawn          State = State(models.KindWithdrawn)
)

// PipelineStates lists every reachable state in pipeline order.
var PipelineStates = []State{
	StateViewed,
	StateSaved,
	StateBookmarked,
	StateApplied,
	StateInterviewScheduled,
	StateInterviewCompleted,
	StateOfferReceived,
	StateRejected,
	StateWithdrawn,
}

// validTransitions lists every state-changing (from → kind) pair. viewed and
// shared are handled separately in Next.
var validTransitions = map[State][]models.InteractionKind{
	StateNone:               {models.KindViewed},
	StateViewed:             {models.KindSaved, models.KindBookmarked},
	StateSaved:              {models.KindApplied, models.KindBookmarked, models.KindWithdrawn},
	StateBookmarked:         {models.KindApplied, models.KindSaved, models.KindWithdrawn},
	StateApplied:            {models.KindInterviewScheduled, models.KindRejected, models.KindWithdrawn},
	StateInterviewScheduled: {models.KindInterviewCompleted, models.KindWithdrawn},
	StateInterviewCompleted: {models.KindOfferReceived, models.KindWithdrawn},
	StateOfferReceived:      {models.KindRejected},
	StateWithdrawn:          {models.KindViewed},
	// rejected is terminal
}

// ParseKind converts a raw string into an InteractionKind.
func ParseKind(s string) (models.InteractionKind, error) {
	k := models.InteractionKind(s)
	switch k {
	case models.KindViewed, models.KindSaved, models.KindApplied, models.KindBookmarked,
		models.KindShared, models.KindInterviewScheduled, models.KindInterviewCompleted,
		models.KindOfferReceived, models.KindRejected, models.KindWithdrawn:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown interaction kind %q", apperr.ErrInvalidTransition, s)
}

// ParseState converts a stored or requested state name. "none" and "" both
// map to StateNone.
func ParseState(s string) (State, error) {
	if s == "" || s == "none" {
		return StateNone, nil
	}
	for _, st := range PipelineStates {
		if string(st) == s {
			return st, nil
		}
	}
	return StateNone, fmt.Errorf("unknown pipeline state %q", s)
}

// Next returns the state after applying kind to current.
//
// A repeated viewed is an observation and leaves the state as is, except on
// a withdrawn pair where it re-opens the pipeline. shared is accepted on a
// bookmarked pair and does not advance it.
func Next(current State, kind models.InteractionKind) (State, error) {
	switch kind {
	case models.KindViewed:
		if current == StateNone || current == StateWithdrawn {
			return StateViewed, nil
		}
		return current, nil
	case models.KindShared:
		if current == StateBookmarked {
			return current, nil
		}
		return current, invalid(current, kind)
	}

	for _, k := range validTransitions[current] {
		if k == kind {
			return State(kind), nil
		}
	}
	return current, invalid(current, kind)
}

func invalid(from State, kind models.InteractionKind) error {
	name := string(from)
	if from == StateNone {
		name = "none"
	}
	return fmt.Errorf("%w: %s → %s is not allowed", apperr.ErrInvalidTransition, name, kind)
}

// Fold replays kinds in commit order. It stops at the first rejected step
// and returns the state reached before it along with the error.
func Fold(kinds []models.InteractionKind) (State, error) {
	state := StateNone
	for _, k := range kinds {
		next, err := Next(state, k)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

// FoldInteractions is Fold over stored rows, which must already be ordered.
func FoldInteractions(rows []models.Interaction) (State, error) {
	kinds := make([]models.InteractionKind, len(rows))
	for i, r := range rows {
		kinds[i] = r.Kind
	}
	return Fold(kinds)
}

// IsTerminal reports whether no state-changing interaction can follow.
func IsTerminal(s State) bool {
	_, ok := validTransitions[s]
	return !ok
}

// Advances reports whether kind moves the pipeline, as opposed to the
// observation-only viewed-on-progress and shared cases.
func Advances(current State, kind models.InteractionKind) bool {
	next, err := Next(current, kind)
	return err == nil && next != current
}
