package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// --- Interactions ---

// RecordInteraction appends an interaction after checking it against the
// pair's current state. A rejected transition writes nothing.
func (s *PostgresStore) RecordInteraction(ctx context.Context, in *models.Interaction) (uuid.UUID, ledger.State, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return uuid.Nil, ledger.StateNone, fmt.Errorf("record interaction: %w: user_id is required", apperr.ErrInvalidFilter)
	}
	kind, err := ledger.ParseKind(string(in.Kind))
	if err != nil {
		return uuid.Nil, ledger.StateNone, err
	}
	defer s.track()()

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	var next ledger.State
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var jobID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT COALESCE(merged_into, id) FROM jobs WHERE id = $1`, in.JobID).Scan(&jobID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("job %s: %w", in.JobID, apperr.ErrUnknownJob)
		}
		if err != nil {
			return fmt.Errorf("resolve job: %w", err)
		}

		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			"interaction:"+in.UserID+":"+jobID.String()); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}

		current := ledger.StateNone
		var raw string
		err = tx.QueryRow(ctx,
			`SELECT state FROM user_job_states WHERE user_id = $1 AND job_id = $2`, in.UserID, jobID).Scan(&raw)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("load state: %w", err)
		default:
			if current, err = ledger.ParseState(raw); err != nil {
				return err
			}
		}

		next, err = ledger.Next(current, kind)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO interactions (id, user_id, job_id, kind, occurred_at, payload)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, in.UserID, jobID, string(kind), occurredAt, payload); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}

		// A repeated view is logged but leaves the state row, and so the
		// pipeline ordering, untouched.
		if kind == models.KindViewed && current != ledger.StateNone && next == current {
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO user_job_states (user_id, job_id, state, last_interaction_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, job_id) DO UPDATE SET
			   state = EXCLUDED.state,
			   last_interaction_at = GREATEST(user_job_states.last_interaction_at, EXCLUDED.last_interaction_at)`,
			in.UserID, jobID, string(next), occurredAt)
		if err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) || errors.Is(err, apperr.ErrUnknownJob) {
			return uuid.Nil, ledger.StateNone, fmt.Errorf("record interaction: %w", err)
		}
		return uuid.Nil, ledger.StateNone, wrapErr("record interaction", err)
	}
	return id, next, nil
}

// ListInteractions returns a user's interactions in commit order, optionally
// for one job only.
func (s *PostgresStore) ListInteractions(ctx context.Context, userID string, jobID *uuid.UUID) ([]*models.Interaction, error) {
	query := `SELECT id, user_id, job_id, kind, occurred_at, payload FROM interactions WHERE user_id = $1`
	args := []any{userID}
	if jobID != nil {
		query += ` AND job_id = (SELECT COALESCE(merged_into, id) FROM jobs WHERE id = $2)`
		args = append(args, *jobID)
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list interactions", err)
	}
	defer rows.Close()

	out := []*models.Interaction{}
	for rows.Next() {
		var in models.Interaction
		var kind string
		if err := rows.Scan(&in.ID, &in.UserID, &in.JobID, &kind, &in.OccurredAt, &in.Payload); err != nil {
			return nil, wrapErr("scan interaction", err)
		}
		in.Kind = models.InteractionKind(kind)
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list interactions", err)
	}
	return out, nil
}

// ListUserJobs returns the jobs a user has interacted with, most recent
// interaction first.
func (s *PostgresStore) ListUserJobs(ctx context.Context, userID string, filter models.UserJobFilter) ([]*models.UserJob, error) {
	conds := []string{"u.user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, raw := range filter.States {
			st, err := ledger.ParseState(raw)
			if err != nil || st == ledger.StateNone {
				return nil, fmt.Errorf("list user jobs: %w: unknown state %q", apperr.ErrInvalidFilter, raw)
			}
			states = append(states, string(st))
		}
		conds = append(conds, fmt.Sprintf("u.state = ANY($%d::text[])", argIdx))
		args = append(args, states)
		argIdx++
	}
	if filter.ActiveOnly {
		conds = append(conds, "j.is_active")
	}

	query := fmt.Sprintf(`SELECT u.state, u.last_interaction_at, %s
		FROM user_job_states u JOIN jobs j ON j.id = u.job_id
		WHERE %s
		ORDER BY u.last_interaction_at DESC, u.job_id
		LIMIT $%d`, prefixed("j", jobColumns), strings.Join(conds, " AND "), argIdx)
	args = append(args, s.clampLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list user jobs", err)
	}
	defer rows.Close()

	out := []*models.UserJob{}
	var jobs []*models.Job
	for rows.Next() {
		var uj models.UserJob
		j, err := scanJob(rowWithLeading{row: rows, lead: []any{&uj.State, &uj.LastInteractionAt}})
		if err != nil {
			return nil, wrapErr("scan user job", err)
		}
		uj.Job = j
		out = append(out, &uj)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list user jobs", err)
	}
	if err := loadExternalIDs(ctx, s.pool, jobs); err != nil {
		return nil, wrapErr("list user jobs", err)
	}
	return out, nil
}

// UserJobStates returns the current state for each of jobIDs the user has
// touched. Untouched jobs are absent from the map.
func (s *PostgresStore) UserJobStates(ctx context.Context, userID string, jobIDs []uuid.UUID) (map[uuid.UUID]ledger.State, error) {
	out := make(map[uuid.UUID]ledger.State, len(jobIDs))
	if len(jobIDs) == 0 || userID == "" {
		return out, nil
	}
	raw := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		raw[i] = id.String()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, state FROM user_job_states WHERE user_id = $1 AND job_id = ANY($2::uuid[])`,
		userID, raw)
	if err != nil {
		return nil, wrapErr("user job states", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, wrapErr("scan user job state", err)
		}
		st, err := ledger.ParseState(state)
		if err != nil {
			return nil, err
		}
		out[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("user job states", err)
	}
	return out, nil
}

// PipelineEntries returns every (job, state) pair of a user.
func (s *PostgresStore) PipelineEntries(ctx context.Context, userID string) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, state, last_interaction_at FROM user_job_states
		 WHERE user_id = $1 ORDER BY last_interaction_at DESC, job_id`, userID)
	if err != nil {
		return nil, wrapErr("pipeline entries", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var e ledger.Entry
		var state string
		if err := rows.Scan(&e.JobID, &state, &e.LastInteractionAt); err != nil {
			return nil, wrapErr("scan pipeline entry", err)
		}
		if e.State, err = ledger.ParseState(state); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("pipeline entries", err)
	}
	return entries, nil
}

// --- Searches ---

// RecordSearch persists one search call and returns its id.
func (s *PostgresStore) RecordSearch(ctx context.Context, search *models.Search) (uuid.UUID, error) {
	defer s.track()()

	id := search.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := search.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock()
	}
	resultIDs := make([]string, len(search.ResultJobIDs))
	for i, jid := range search.ResultJobIDs {
		resultIDs[i] = jid.String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO searches (id, user_id, keywords, location_filter, experience_level, filters,
		   results_count, result_job_ids, execution_time_ms, top_match_job_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::uuid[], $9, $10, $11)`,
		id, search.UserID, search.Keywords, search.LocationFilter, search.ExperienceLevel, search.Filters,
		search.ResultsCount, resultIDs, search.ExecutionTime.Milliseconds(), search.TopMatchJobID, createdAt)
	if err != nil {
		return uuid.Nil, wrapErr("record search", err)
	}
	return id, nil
}

// LatestSearch returns the user's most recent search that produced results.
func (s *PostgresStore) LatestSearch(ctx context.Context, userID string) (*models.Search, error) {
	var out models.Search
	var resultIDs []string
	var execMS int64
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, keywords, location_filter, experience_level, filters,
		   results_count, result_job_ids::text[], execution_time_ms, top_match_job_id, created_at
		 FROM searches WHERE user_id = $1 AND results_count > 0
		 ORDER BY created_at DESC, id LIMIT 1`, userID,
	).Scan(&out.ID, &out.UserID, &out.Keywords, &out.LocationFilter, &out.ExperienceLevel, &out.Filters,
		&out.ResultsCount, &resultIDs, &execMS, &out.TopMatchJobID, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("latest search", err)
	}

	out.ExecutionTime = time.Duration(execMS) * time.Millisecond
	out.ResultJobIDs = make([]uuid.UUID, 0, len(resultIDs))
	for _, raw := range resultIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("latest search: bad result id %q: %w", raw, err)
		}
		out.ResultJobIDs = append(out.ResultJobIDs, id)
	}
	return &out, nil
}
