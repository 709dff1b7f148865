package models

import (
	"fmt"
	"strings"
)

// Profile is the candidate view supplied by the profile provider on each call.
// The core never persists it.
type Profile struct {
	Skills             []string `json:"skills"`
	ExperienceYears    int      `json:"experience_years"`
	JobHistory         []string `json:"job_history"`
	TargetRole         string   `json:"target_role"`
	PreferredLocations []string `json:"preferred_locations"`
	SalaryExpectations *Salary  `json:"salary_expectations,omitempty"`
	Language           string   `json:"language"`
}

const maxExperienceYears = 70

// Validate reports the first structural problem with the profile.
func (p *Profile) Validate() error {
	if p.ExperienceYears < 0 || p.ExperienceYears > maxExperienceYears {
		return fmt.Errorf("experience_years must be between 0 and %d, got %d", maxExperienceYears, p.ExperienceYears)
	}
	for i, s := range p.Skills {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("skills[%d] is empty", i)
		}
	}
	if p.Language != "" && len(strings.TrimSpace(p.Language)) != 2 {
		return fmt.Errorf("language must be a two-letter ISO code, got %q", p.Language)
	}
	if se := p.SalaryExpectations; se != nil && se.Min != nil && se.Max != nil && *se.Min > *se.Max {
		return fmt.Errorf("salary_expectations min exceeds max")
	}
	return nil
}
