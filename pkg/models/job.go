package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider names recognized across adapters, config and external-id keys.
const (
	ProviderLinkedIn      = "linkedin"
	ProviderIndeed        = "indeed"
	ProviderGlassdoor     = "glassdoor"
	ProviderCompanyCareer = "company_career"
	ProviderStaticFixture = "static_fixture"
)

// KnownProviders lists every provider variant in a stable order.
var KnownProviders = []string{
	ProviderLinkedIn,
	ProviderIndeed,
	ProviderGlassdoor,
	ProviderCompanyCareer,
	ProviderStaticFixture,
}

// IsKnownProvider reports whether name is one of KnownProviders.
func IsKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

type WorkLocationType string

const (
	WorkOnSite WorkLocationType = "on_site"
	WorkRemote WorkLocationType = "remote"
	WorkHybrid WorkLocationType = "hybrid"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentTemporary  EmploymentType = "temporary"
	EmploymentInternship EmploymentType = "internship"
)

type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
)

type SalaryPeriod string

const (
	PeriodHour  SalaryPeriod = "hour"
	PeriodMonth SalaryPeriod = "month"
	PeriodYear  SalaryPeriod = "year"
)

// ParseWorkLocationType returns nil for anything outside the closed set.
func ParseWorkLocationType(s string) *WorkLocationType {
	switch v := WorkLocationType(normalizeEnum(s)); v {
	case WorkOnSite, WorkRemote, WorkHybrid:
		return &v
	}
	return nil
}

// ParseEmploymentType returns nil for anything outside the closed set.
func ParseEmploymentType(s string) *EmploymentType {
	switch v := EmploymentType(normalizeEnum(s)); v {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentTemporary, EmploymentInternship:
		return &v
	}
	return nil
}

// ParseExperienceLevel returns nil for anything outside the closed set.
func ParseExperienceLevel(s string) *ExperienceLevel {
	switch v := ExperienceLevel(normalizeEnum(s)); v {
	case ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceExecutive:
		return &v
	}
	return nil
}

// ParseSalaryPeriod returns nil for anything outside the closed set.
func ParseSalaryPeriod(s string) *SalaryPeriod {
	switch v := SalaryPeriod(normalizeEnum(s)); v {
	case PeriodHour, PeriodMonth, PeriodYear:
		return &v
	}
	return nil
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Salary fields are independently nullable.
type Salary struct {
	Min      *float64      `json:"min"`
	Max      *float64      `json:"max"`
	Currency *string       `json:"currency"`
	Period   *SalaryPeriod `json:"period"`
}

// Job is the canonical posting, merged across providers.
type Job struct {
	ID                  uuid.UUID         `db:"id"                    json:"job_id"`
	ExternalIDs         map[string]string `db:"-"                     json:"external_ids"`
	Title               string            `db:"title"                 json:"title"`
	CompanyName         string            `db:"company_name"          json:"company_name"`
	CompanyIndustry     *string           `db:"company_industry"      json:"company_industry"`
	Location            Location          `db:"-"                     json:"location"`
	WorkLocationType    *WorkLocationType `db:"work_location_type"    json:"work_location_type"`
	EmploymentType      *EmploymentType   `db:"employment_type"       json:"employment_type"`
	ExperienceLevel     *ExperienceLevel  `db:"experience_level"      json:"experience_level"`
	ExperienceMinYears  *int              `db:"experience_min_years"  json:"experience_min_years,omitempty"`
	ExperienceMaxYears  *int              `db:"experience_max_years"  json:"experience_max_years,omitempty"`
	PostedAt            *time.Time        `db:"posted_at"             json:"posted_at"`
	ApplicationDeadline *time.Time        `db:"application_deadline"  json:"application_deadline"`
	Description         string            `db:"description"           json:"description"`
	Requirements        []string          `db:"requirements"          json:"requirements"`
	RequiredSkills      []string          `db:"required_skills"       json:"required_skills"`
	PreferredSkills     []string          `db:"preferred_skills"      json:"preferred_skills"`
	Salary              Salary            `db:"-"                     json:"salary"`
	ApplyURLs           map[string]string `db:"apply_urls"            json:"apply_urls"`
	DataSource          string            `db:"data_source"           json:"data_source"`
	ScrapedAt           time.Time         `db:"scraped_at"            json:"scraped_at"`
	LastUpdated         time.Time         `db:"last_updated"          json:"last_updated"`
	IsActive            bool              `db:"is_active"             json:"is_active"`
	DeactivatedReason   *string           `db:"deactivated_reason"    json:"deactivated_reason,omitempty"`
	MergedInto          *uuid.UUID        `db:"merged_into"           json:"-"`
}

// Validate checks the record-level invariants a store must enforce.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" && strings.TrimSpace(j.CompanyName) == "" {
		return errString("job needs a title or a company name")
	}
	if j.Salary.Min != nil && j.Salary.Max != nil && *j.Salary.Min > *j.Salary.Max {
		return errString("salary min exceeds salary max")
	}
	if j.ExperienceMinYears != nil && j.ExperienceMaxYears != nil && *j.ExperienceMinYears > *j.ExperienceMaxYears {
		return errString("experience min exceeds experience max")
	}
	if len(j.ExternalIDs) == 0 {
		return errString("job needs at least one external id")
	}
	if strings.TrimSpace(j.DataSource) == "" {
		return errString("job needs a data source")
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

// SkillKey is the comparison key for skill set membership.
func SkillKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeSkills deduplicates by SkillKey, keeping the first spelling,
// and returns the set sorted by key.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]string, len(skills))
	for _, s := range skills {
		k := SkillKey(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = strings.Join(strings.Fields(s), " ")
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// UnionSkills returns the normalized set union of a and b.
func UnionSkills(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return NormalizeSkills(all)
}

// MergeJob folds an incoming observation into an existing job.
// Scalars follow newest-wins by ScrapedAt (ties go to incoming); empty incoming
// values never erase existing ones. External ids, skills and apply urls union.
// The returned job keeps the existing ID and DataSource.
func MergeJob(existing, incoming *Job) *Job {
	out := *existing
	newer := !incoming.ScrapedAt.Before(existing.ScrapedAt)

	pickString := func(cur, in string) string {
		if in == "" {
			return cur
		}
		if newer || cur == "" {
			return in
		}
		return cur
	}

	out.Title = pickString(existing.Title, incoming.Title)
	out.CompanyName = pickString(existing.CompanyName, incoming.CompanyName)
	out.Description = pickString(existing.Description, incoming.Description)
	out.Location = Location{
		City:    pickString(existing.Location.City, incoming.Location.City),
		Region:  pickString(existing.Location.Region, incoming.Location.Region),
		Country: pickString(existing.Location.Country, incoming.Location.Country),
	}
	out.CompanyIndustry = pickPtr(existing.CompanyIndustry, incoming.CompanyIndustry, newer)
	out.WorkLocationType = pickPtr(existing.WorkLocationType, incoming.WorkLocationType, newer)
	out.EmploymentType = pickPtr(existing.EmploymentType, incoming.EmploymentType, newer)
	out.ExperienceLevel = pickPtr(existing.ExperienceLevel, incoming.ExperienceLevel, newer)
	out.ExperienceMinYears = pickPtr(existing.ExperienceMinYears, incoming.ExperienceMinYears, newer)
	out.ExperienceMaxYears = pickPtr(existing.ExperienceMaxYears, incoming.ExperienceMaxYears, newer)
	out.PostedAt = pickPtr(existing.PostedAt, incoming.PostedAt, newer)
	out.ApplicationDeadline = pickPtr(existing.ApplicationDeadline, incoming.ApplicationDeadline, newer)
	out.Salary = Salary{
		Min:      pickPtr(existing.Salary.Min, incoming.Salary.Min, newer),
		Max:      pickPtr(existing.Salary.Max, incoming.Salary.Max, newer),
		Currency: pickPtr(existing.Salary.Currency, incoming.Salary.Currency, newer),
		Period:   pickPtr(existing.Salary.Period, incoming.Salary.Period, newer),
	}
	if out.Salary.Min != nil && out.Salary.Max != nil && *out.Salary.Min > *out.Salary.Max {
		// mixed observations; keep the newest complete pair
		if newer {
			out.Salary.Min, out.Salary.Max = incoming.Salary.Min, incoming.Salary.Max
		} else {
			out.Salary.Min, out.Salary.Max = existing.Salary.Min, existing.Salary.Max
		}
	}

	if len(incoming.Requirements) > 0 && (newer || len(existing.Requirements) == 0) {
		out.Requirements = append([]string(nil), incoming.Requirements...)
	}

	out.RequiredSkills = UnionSkills(existing.RequiredSkills, incoming.RequiredSkills)
	out.PreferredSkills = UnionSkills(existing.PreferredSkills, incoming.PreferredSkills)
	out.ExternalIDs = mergeMaps(existing.ExternalIDs, incoming.ExternalIDs, newer)
	out.ApplyURLs = mergeMaps(existing.ApplyURLs, incoming.ApplyURLs, newer)

	if newer {
		out.IsActive = incoming.IsActive
		out.ScrapedAt = incoming.ScrapedAt
	}
	return &out
}

func pickPtr[T any](cur, in *T, newer bool) *T {
	if in == nil {
		return cur
	}
	if newer || cur == nil {
		v := *in
		return &v
	}
	return cur
}

func mergeMaps(cur, in map[string]string, newer bool) map[string]string {
	out := make(map[string]string, len(cur)+len(in))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range in {
		if v == "" {
			continue
		}
		if _, ok := out[k]; !ok || newer {
			out[k] = v
		}
	}
	return out
}
