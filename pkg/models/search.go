package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Search is an immutable record of one search call.
type Search struct {
	ID              uuid.UUID     `db:"id"                json:"search_id"`
	UserID          string        `db:"user_id"           json:"user_id"`
	Keywords        string        `db:"keywords"          json:"keywords"`
	LocationFilter  string        `db:"location_filter"   json:"location_filter"`
	ExperienceLevel string        `db:"experience_level"  json:"experience_level"`
	Filters         JobFilter     `db:"filters"           json:"filters"`
	ResultsCount    int           `db:"results_count"     json:"results_count"`
	ResultJobIDs    []uuid.UUID   `db:"result_job_ids"    json:"result_job_ids"`
	ExecutionTime   time.Duration `db:"execution_time_ms" json:"execution_time"`
	TopMatchJobID   *uuid.UUID    `db:"top_match_job_id"  json:"top_match_job_id"`
	CreatedAt       time.Time     `db:"created_at"        json:"created_at"`
}

// JobFilter narrows a job search. Zero values mean "no constraint".
type JobFilter struct {
	City             string     `json:"city,omitempty"`
	ExperienceLevel  string     `json:"experience_level,omitempty"`
	EmploymentType   string     `json:"employment_type,omitempty"`
	WorkLocationType string     `json:"work_location_type,omitempty"`
	SalaryMin        *float64   `json:"salary_min,omitempty"`
	ActiveOnly       bool       `json:"active,omitempty"`
	PostedAfter      *time.Time `json:"posted_after,omitempty"`
}

// Validate rejects enumeration values outside their closed sets and a
// negative salary floor.
func (f JobFilter) Validate() error {
	if f.ExperienceLevel != "" && ParseExperienceLevel(f.ExperienceLevel) == nil {
		return fmt.Errorf("unknown experience_level %q", f.ExperienceLevel)
	}
	if f.EmploymentType != "" && ParseEmploymentType(f.EmploymentType) == nil {
		return fmt.Errorf("unknown employment_type %q", f.EmploymentType)
	}
	if f.WorkLocationType != "" && ParseWorkLocationType(f.WorkLocationType) == nil {
		return fmt.Errorf("unknown work_location_type %q", f.WorkLocationType)
	}
	if f.SalaryMin != nil && *f.SalaryMin < 0 {
		return fmt.Errorf("salary_min must not be negative")
	}
	return nil
}

// JobQuery is a full-text search request against the store.
type JobQuery struct {
	Keywords string
	Filter   JobFilter
	Limit    int
	Cursor   string
}

// JobPage is one page of ranked search results.
type JobPage struct {
	Jobs       []*Job    `json:"jobs"`
	Scores     []float64 `json:"-"`
	NextCursor string    `json:"next_cursor,omitempty"`
	Total      int       `json:"total"`
}
