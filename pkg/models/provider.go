package models

import "time"

// RateLimitWindow is the persisted accounting state of one provider.
type RateLimitWindow struct {
	Provider     string    `db:"provider"      json:"provider"`
	HourlyBudget int       `db:"-"             json:"hourly_budget"`
	DailyBudget  int       `db:"-"             json:"daily_budget"`
	HourBucket   time.Time `db:"hour_bucket"   json:"hour_bucket"`
	DayBucket    time.Time `db:"day_bucket"    json:"day_bucket"`
	HourlyUsed   int       `db:"hourly_used"   json:"hourly_used"`
	DailyUsed    int       `db:"daily_used"    json:"daily_used"`
}

// ProviderSync is the scheduler's persisted view of one provider.
type ProviderSync struct {
	Provider           string     `db:"provider"             json:"provider"`
	LastSuccessfulSync *time.Time `db:"last_successful_sync" json:"last_successful_sync"`
	LastAttemptAt      *time.Time `db:"last_attempt_at"      json:"last_attempt_at"`
	LastError          *string    `db:"last_error"           json:"last_error,omitempty"`
	Quarantined        bool       `db:"quarantined"          json:"quarantined"`
	QuarantineReason   *string    `db:"quarantine_reason"    json:"quarantine_reason,omitempty"`
}
