package models

import "github.com/google/uuid"

// MatchComponents is the per-signal breakdown behind a composite score.
type MatchComponents struct {
	RequiredSkillMatch  float64 `json:"required_skill_match"`
	PreferredSkillMatch float64 `json:"preferred_skill_match"`
	DomainContext       float64 `json:"domain_context"`
	ContextBonus        float64 `json:"context_bonus"`
	ExperienceFit       float64 `json:"experience_fit"`
	LocationFit         float64 `json:"location_fit"`
}

// SalaryEstimate is derived, never written back to the job.
type SalaryEstimate struct {
	Min        float64      `json:"min"`
	Max        float64      `json:"max"`
	Currency   string       `json:"currency"`
	Period     SalaryPeriod `json:"period"`
	Estimated  bool         `json:"estimated"`
	Confidence string       `json:"confidence"`
}

// MatchResult is computed per request and never persisted.
type MatchResult struct {
	JobID          uuid.UUID       `json:"job_id"`
	CompositeScore float64         `json:"composite_score"`
	Components     MatchComponents `json:"components"`
	Domain         string          `json:"domain"`
	Multiplier     float64         `json:"multiplier"`
	Rationale      []string        `json:"rationale"`
	SalaryEstimate *SalaryEstimate `json:"salary_estimate,omitempty"`
}
