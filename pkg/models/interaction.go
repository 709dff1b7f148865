package models

import (
	"time"

	"github.com/google/uuid"
)

// InteractionKind is one user action on a job.
type InteractionKind string

const (
	KindViewed             InteractionKind = "viewed"
	KindSaved              InteractionKind = "saved"
	KindApplied            InteractionKind = "applied"
	KindBookmarked         InteractionKind = "bookmarked"
	KindShared             InteractionKind = "shared"
	KindInterviewScheduled InteractionKind = "interview_scheduled"
	KindInterviewCompleted InteractionKind = "interview_completed"
	KindOfferReceived      InteractionKind = "offer_received"
	KindRejected           InteractionKind = "rejected"
	KindWithdrawn          InteractionKind = "withdrawn"
)

// Interaction is append-only; corrections are new rows.
type Interaction struct {
	ID         uuid.UUID       `db:"id"          json:"interaction_id"`
	UserID     string          `db:"user_id"     json:"user_id"`
	JobID      uuid.UUID       `db:"job_id"      json:"job_id"`
	Kind       InteractionKind `db:"kind"        json:"kind"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	Payload    map[string]any  `db:"payload"     json:"payload,omitempty"`
}

// UserJob is a job together with the user's current pipeline state.
type UserJob struct {
	Job               *Job      `json:"job"`
	State             string    `json:"state"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// UserJobFilter narrows list_active_jobs_for_user.
type UserJobFilter struct {
	States     []string
	ActiveOnly bool
	Limit      int
}
