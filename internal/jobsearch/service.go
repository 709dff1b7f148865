// Package jobsearch implements the query operations exposed to callers:
// search, match, record_interaction and the per-user views. Every operation
// runs under its own deadline.
package jobsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/cache"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/internal/matching"
	"github.com/kiranshivaraju/jobhunter/internal/store"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// Store is the persistence the service reads and writes.
type Store interface {
	PendingWrites() int64
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobs(ctx context.Context, ids []uuid.UUID) ([]*models.Job, error)
	SearchJobs(ctx context.Context, q models.JobQuery) (*models.JobPage, error)
	RecordSearch(ctx context.Context, s *models.Search) (uuid.UUID, error)
	LatestSearch(ctx context.Context, userID string) (*models.Search, error)
	RecordInteraction(ctx context.Context, in *models.Interaction) (uuid.UUID, ledger.State, error)
	ListUserJobs(ctx context.Context, userID string, filter models.UserJobFilter) ([]*models.UserJob, error)
	UserJobStates(ctx context.Context, userID string, jobIDs []uuid.UUID) (map[uuid.UUID]ledger.State, error)
	PipelineEntries(ctx context.Context, userID string) ([]ledger.Entry, error)
}

// Publisher receives interaction events for the notification consumer.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// QuotaFunc is the billing veto: false means the user may not search now.
type QuotaFunc func(ctx context.Context, userID string) (bool, error)

// Limits are the deadlines and bounds the service enforces.
type Limits struct {
	SearchDeadline    time.Duration
	WriteDeadline     time.Duration
	OverloadThreshold int64
	DefaultLimit      int
	DefaultTop        int
}

type Service struct {
	store     Store
	engine    *matching.Engine
	limits    Limits
	events    Publisher
	maySearch QuotaFunc
	now       func() time.Time
}

type Option func(*Service)

// WithEvents publishes every recorded interaction to p.
func WithEvents(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithQuota installs the user_may_search predicate.
func WithQuota(q QuotaFunc) Option {
	return func(s *Service) { s.maySearch = q }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st Store, engine *matching.Engine, limits Limits, opts ...Option) *Service {
	if limits.SearchDeadline <= 0 {
		limits.SearchDeadline = 2 * time.Second
	}
	if limits.WriteDeadline <= 0 {
		limits.WriteDeadline = 500 * time.Millisecond
	}
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 20
	}
	if limits.DefaultTop <= 0 {
		limits.DefaultTop = 10
	}
	s := &Service{store: st, engine: engine, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) checkOverload() error {
	if s.limits.OverloadThreshold > 0 && s.store.PendingWrites() > s.limits.OverloadThreshold {
		return fmt.Errorf("%w: %d writes pending", apperr.ErrOverloaded, s.store.PendingWrites())
	}
	return nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id is required", apperr.ErrInvalidFilter)
	}
	return nil
}

// SearchParams are the inputs of one search call.
type SearchParams struct {
	UserID   string
	Keywords string
	Filter   models.JobFilter
	Limit    int
	Cursor   string
}

type SearchResult struct {
	SearchID   uuid.UUID     `json:"search_id"`
	Jobs       []*models.Job `json:"jobs"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Total      int           `json:"total"`
}

// Search runs a ranked job search and records it for the user.
func (s *Service) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if err := requireUser(p.UserID); err != nil {
		return nil, err
	}
	if err := p.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidFilter, err)
	}
	if err := s.checkOverload(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()

	if s.maySearch != nil {
		ok, err := s.maySearch(ctx, p.UserID)
		if err != nil {
			slog.Warn("search quota check failed, allowing search", "user_id", p.UserID, "error", err)
		} else if !ok {
			return nil, fmt.Errorf("%w for user %s", apperr.ErrQuotaExceeded, p.UserID)
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.limits.DefaultLimit
	}
	start := s.now()
	page, err := s.store.SearchJobs(ctx, models.JobQuery{
		Keywords: p.Keywords,
		Filter:   p.Filter,
		Limit:    limit,
		Cursor:   p.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("searching jobs: %w", err)
	}

	ids := make([]uuid.UUID, len(page.Jobs))
	for i, j := range page.Jobs {
		ids[i] = j.ID
	}
	rec := &models.Search{
		UserID:          p.UserID,
		Keywords:        p.Keywords,
		LocationFilter:  p.Filter.City,
		ExperienceLevel: p.Filter.ExperienceLevel,
		Filters:         p.Filter,
		ResultsCount:    len(page.Jobs),
		ResultJobIDs:    ids,
		ExecutionTime:   s.now().Sub(start),
		CreatedAt:       s.now().UTC(),
	}
	if len(ids) > 0 {
		top := ids[0]
		rec.TopMatchJobID = &top
	}
	searchID, err := s.store.RecordSearch(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("recording search: %w", err)
	}

	slog.Info("search completed",
		"user_id", p.UserID,
		"search_id", searchID,
		"results", len(page.Jobs),
		"duration_ms", rec.ExecutionTime.Milliseconds(),
	)
	return &SearchResult{SearchID: searchID, Jobs: page.Jobs, NextCursor: page.NextCursor, Total: page.Total}, nil
}

// MatchParams are the inputs of one match call. Without candidates the jobs
// of the user's latest search with results are scored.
type MatchParams struct {
	UserID          string
	Profile         *models.Profile
	CandidateJobIDs []uuid.UUID
	Top             int
}

type MatchResponse struct {
	SearchID *uuid.UUID           `json:"search_id,omitempty"`
	Results  []models.MatchResult `json:"results"`
}

// Match scores the candidate jobs against the profile, demoting jobs the
// user already acted on.
func (s *Service) Match(ctx context.Context, p MatchParams) (*MatchResponse, error) {
	if err := requireUser(p.UserID); err != nil {
		return nil, err
	}
	if p.Profile == nil {
		return nil, fmt.Errorf("%w: profile is required", apperr.ErrProfileInvalid)
	}
	if err := p.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProfileInvalid, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()

	resp := &MatchResponse{Results: []models.MatchResult{}}
	ids := p.CandidateJobIDs
	explicit := len(ids) > 0
	if !explicit {
		latest, err := s.store.LatestSearch(ctx, p.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return resp, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading latest search: %w", err)
		}
		resp.SearchID = &latest.ID
		ids = latest.ResultJobIDs
	}

	jobs, err := s.store.GetJobs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	if explicit && len(jobs) == 0 {
		return nil, fmt.Errorf("%w: none of the candidate jobs exist", apperr.ErrUnknownJob)
	}

	jobIDs := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
	}
	states, err := s.store.UserJobStates(ctx, p.UserID, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline states: %w", err)
	}
	multipliers := make(map[uuid.UUID]float64, len(states))
	for id, st := range states {
		if m := ledger.Multiplier(st); m != ledger.MultiplierDefault {
			multipliers[id] = m
		}
	}

	results := s.engine.Rank(jobs, p.Profile, multipliers)
	top := p.Top
	if top <= 0 {
		top = s.limits.DefaultTop
	}
	if len(results) > top {
		results = results[:top]
	}
	resp.Results = results
	return resp, nil
}

type InteractionResult struct {
	InteractionID uuid.UUID    `json:"interaction_id"`
	State         ledger.State `json:"state"`
}

// event is the payload published on cache.InteractionsChannel.
// InteractionEvent is published on cache.InteractionsChannel after an
// interaction commits.
type InteractionEvent struct {
	InteractionID uuid.UUID              `json:"interaction_id"`
	UserID        string                 `json:"user_id"`
	JobID         uuid.UUID              `json:"job_id"`
	Kind          models.InteractionKind `json:"kind"`
	State         ledger.State           `json:"state"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// RecordInteraction appends one user action after validating the transition.
func (s *Service) RecordInteraction(ctx context.Context, userID string, jobID uuid.UUID, kind string, payload map[string]any) (*InteractionResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	k, err := ledger.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if err := s.checkOverload(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.limits.WriteDeadline)
	defer cancel()

	in := &models.Interaction{
		UserID:     userID,
		JobID:      jobID,
		Kind:       k,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	}
	id, state, err := s.store.RecordInteraction(ctx, in)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, InteractionEvent{
		InteractionID: id,
		UserID:        userID,
		JobID:         jobID,
		Kind:          k,
		State:         state,
		OccurredAt:    in.OccurredAt,
	})
	return &InteractionResult{InteractionID: id, State: state}, nil
}

// publish is best effort; the interaction is already committed.
func (s *Service) publish(ctx context.Context, ev InteractionEvent) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode interaction event", "error", err)
		return
	}
	if err := s.events.Publish(ctx, cache.InteractionsChannel, data); err != nil {
		slog.Warn("failed to publish interaction event",
			"user_id", ev.UserID,
			"job_id", ev.JobID,
			"error", err,
		)
	}
}

// ListUserJobs returns the user's jobs with their current state, optionally
// restricted to one state.
func (s *Service) ListUserJobs(ctx context.Context, userID, state string, limit int) ([]*models.UserJob, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	filter := models.UserJobFilter{Limit: limit}
	if state != "" {
		st, err := ledger.ParseState(state)
		if err != nil || st == ledger.StateNone {
			return nil, fmt.Errorf("%w: unknown state %q", apperr.ErrInvalidFilter, state)
		}
		filter.States = []string{string(st)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()
	return s.store.ListUserJobs(ctx, userID, filter)
}

// Pipeline groups the user's jobs by current state.
func (s *Service) Pipeline(ctx context.Context, userID string) (ledger.Pipeline, error) {
	if err := requireUser(userID); err != nil {
		return ledger.Pipeline{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()

	entries, err := s.store.PipelineEntries(ctx, userID)
	if err != nil {
		return ledger.Pipeline{}, fmt.Errorf("loading pipeline: %w", err)
	}
	return ledger.BuildPipeline(userID, entries), nil
}

// Deprioritization returns the multiplier match applies to (userID, jobID).
func (s *Service) Deprioritization(ctx context.Context, userID string, jobID uuid.UUID) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()

	states, err := s.store.UserJobStates(ctx, userID, []uuid.UUID{jobID})
	if err != nil {
		return 0, err
	}
	return ledger.Multiplier(states[jobID]), nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.SearchDeadline)
	defer cancel()
	return s.store.GetJob(ctx, id)
}
