package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	PendingWrites() int64

	UpsertJob(ctx context.Context, job *models.Job) (id uuid.UUID, created bool, err error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobs(ctx context.Context, ids []uuid.UUID) ([]*models.Job, error)
	DeactivateJob(ctx context.Context, id uuid.UUID, reason string) error
	SearchJobs(ctx context.Context, q models.JobQuery) (*models.JobPage, error)

	RecordSearch(ctx context.Context, s *models.Search) (uuid.UUID, error)
	LatestSearch(ctx context.Context, userID string) (*models.Search, error)

	RecordInteraction(ctx context.Context, in *models.Interaction) (uuid.UUID, ledger.State, error)
	ListInteractions(ctx context.Context, userID string, jobID *uuid.UUID) ([]*models.Interaction, error)
	ListUserJobs(ctx context.Context, userID string, filter models.UserJobFilter) ([]*models.UserJob, error)
	UserJobStates(ctx context.Context, userID string, jobIDs []uuid.UUID) (map[uuid.UUID]ledger.State, error)
	PipelineEntries(ctx context.Context, userID string) ([]ledger.Entry, error)

	LoadRateLimitState(ctx context.Context) ([]models.RateLimitWindow, error)
	SaveRateLimitState(ctx context.Context, w models.RateLimitWindow) error

	ListProviderSyncs(ctx context.Context) ([]*models.ProviderSync, error)
	RecordSyncAttempt(ctx context.Context, provider string, at time.Time, syncErr error) error
	RecordSyncSuccess(ctx context.Context, provider string, at time.Time) error
	QuarantineProvider(ctx context.Context, provider, reason string) error
	ReleaseProvider(ctx context.Context, provider string) error
}

// Deactivation reasons written by the store itself.
const (
	ReasonClosed         = "closed"
	ReasonDeadlinePassed = "deadline_passed"
	ReasonMerged         = "merged"
)
