package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// --- Rate limit state ---

// LoadRateLimitState returns the persisted window of every provider.
func (s *PostgresStore) LoadRateLimitState(ctx context.Context) ([]models.RateLimitWindow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, hour_bucket, day_bucket, hourly_used, daily_used
		 FROM rate_limit_state ORDER BY provider`)
	if err != nil {
		return nil, wrapErr("load rate limit state", err)
	}
	defer rows.Close()

	var out []models.RateLimitWindow
	for rows.Next() {
		var w models.RateLimitWindow
		if err := rows.Scan(&w.Provider, &w.HourBucket, &w.DayBucket, &w.HourlyUsed, &w.DailyUsed); err != nil {
			return nil, wrapErr("scan rate limit state", err)
		}
		w.HourBucket = w.HourBucket.UTC()
		w.DayBucket = w.DayBucket.UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

// SaveRateLimitState overwrites the window of one provider. An older bucket
// never replaces a newer one.
func (s *PostgresStore) SaveRateLimitState(ctx context.Context, w models.RateLimitWindow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_limit_state (provider, hour_bucket, day_bucket, hourly_used, daily_used, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (provider) DO UPDATE SET
		   hour_bucket = EXCLUDED.hour_bucket,
		   day_bucket = EXCLUDED.day_bucket,
		   hourly_used = EXCLUDED.hourly_used,
		   daily_used = EXCLUDED.daily_used,
		   updated_at = EXCLUDED.updated_at
		 WHERE rate_limit_state.hour_bucket <= EXCLUDED.hour_bucket`,
		w.Provider, w.HourBucket.UTC(), w.DayBucket.UTC(), w.HourlyUsed, w.DailyUsed, s.clock())
	if err != nil {
		return wrapErr("save rate limit state", err)
	}
	return nil
}

// --- Provider syncs ---

// ListProviderSyncs returns the scheduler's view of every provider it has
// touched.
func (s *PostgresStore) ListProviderSyncs(ctx context.Context) ([]*models.ProviderSync, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, last_successful_sync, last_attempt_at, last_error, quarantined, quarantine_reason
		 FROM provider_syncs ORDER BY provider`)
	if err != nil {
		return nil, wrapErr("list provider syncs", err)
	}
	defer rows.Close()

	out := []*models.ProviderSync{}
	for rows.Next() {
		var p models.ProviderSync
		if err := rows.Scan(&p.Provider, &p.LastSuccessfulSync, &p.LastAttemptAt, &p.LastError,
			&p.Quarantined, &p.QuarantineReason); err != nil {
			return nil, wrapErr("scan provider sync", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// RecordSyncAttempt notes that a sync ran at at; syncErr is stored when the
// run failed and cleared otherwise.
func (s *PostgresStore) RecordSyncAttempt(ctx context.Context, provider string, at time.Time, syncErr error) error {
	var msg *string
	if syncErr != nil {
		m := syncErr.Error()
		msg = &m
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_syncs (provider, last_attempt_at, last_error)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (provider) DO UPDATE SET last_attempt_at = EXCLUDED.last_attempt_at,
		   last_error = EXCLUDED.last_error`,
		provider, at.UTC(), msg)
	if err != nil {
		return wrapErr(fmt.Sprintf("record sync attempt %s", provider), err)
	}
	return nil
}

// RecordSyncSuccess advances last_successful_sync; it never moves backwards.
func (s *PostgresStore) RecordSyncSuccess(ctx context.Context, provider string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_syncs (provider, last_successful_sync, last_attempt_at)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (provider) DO UPDATE SET
		   last_successful_sync = GREATEST(provider_syncs.last_successful_sync, EXCLUDED.last_successful_sync),
		   last_attempt_at = EXCLUDED.last_attempt_at,
		   last_error = NULL`,
		provider, at.UTC())
	if err != nil {
		return wrapErr(fmt.Sprintf("record sync success %s", provider), err)
	}
	return nil
}

// QuarantineProvider stops the scheduler from running provider until it is
// released.
func (s *PostgresStore) QuarantineProvider(ctx context.Context, provider, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_syncs (provider, quarantined, quarantine_reason)
		 VALUES ($1, TRUE, $2)
		 ON CONFLICT (provider) DO UPDATE SET quarantined = TRUE, quarantine_reason = EXCLUDED.quarantine_reason`,
		provider, reason)
	if err != nil {
		return wrapErr(fmt.Sprintf("quarantine %s", provider), err)
	}
	return nil
}

func (s *PostgresStore) ReleaseProvider(ctx context.Context, provider string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE provider_syncs SET quarantined = FALSE, quarantine_reason = NULL WHERE provider = $1`, provider)
	if err != nil {
		return wrapErr(fmt.Sprintf("release %s", provider), err)
	}
	return nil
}
