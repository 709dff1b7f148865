// Package fixture serves a small, clearly labeled set of demo postings. It
// backs the static_fixture provider and stands in for any networked
// provider that has no credentials.
package fixture

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var catalogue []byte

type salary struct {
	Min      *float64 `mapstructure:"min"`
	Max      *float64 `mapstructure:"max"`
	Currency string   `mapstructure:"currency"`
	Period   string   `mapstructure:"period"`
}

type posting struct {
	ID               string   `mapstructure:"id"`
	Title            string   `mapstructure:"title"`
	Company          string   `mapstructure:"company"`
	Industry         string   `mapstructure:"industry"`
	Location         string   `mapstructure:"location"`
	WorkLocationType string   `mapstructure:"work_location_type"`
	EmploymentType   string   `mapstructure:"employment_type"`
	ExperienceLevel  string   `mapstructure:"experience_level"`
	ExperienceMin    *int     `mapstructure:"experience_min"`
	ExperienceMax    *int     `mapstructure:"experience_max"`
	PostedAt         any      `mapstructure:"posted_at"`
	Description      string   `mapstructure:"description"`
	RequiredSkills   []string `mapstructure:"required_skills"`
	PreferredSkills  []string `mapstructure:"preferred_skills"`
	Salary           *salary  `mapstructure:"salary"`
	ApplyURL         string   `mapstructure:"apply_url"`
}

// Postings returns the raw fixture set in catalogue order.
func Postings(fetchedAt time.Time) ([]source.RawPosting, error) {
	var doc struct {
		Jobs []map[string]any `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(catalogue, &doc); err != nil {
		return nil, fmt.Errorf("decoding fixture catalogue: %w", err)
	}
	out := make([]source.RawPosting, 0, len(doc.Jobs))
	for _, fields := range doc.Jobs {
		out = append(out, source.RawPosting{
			Provider:   models.ProviderStaticFixture,
			ExternalID: source.StringValue(fields["id"]),
			Fields:     fields,
			Fixture:    true,
			FetchedAt:  fetchedAt.UTC(),
		})
	}
	return out, nil
}

// Provider is the fixture variant. name is the provider it stands in for;
// postings are always attributed to static_fixture.
type Provider struct {
	name string
	now  func() time.Time
}

// New returns a fixture provider standing in for name.
func New(name string) *Provider {
	slog.Warn("provider running in fixture mode, serving labeled demo postings", "provider", name)
	return &Provider{name: name, now: time.Now}
}

// WithClock sets the time stamped on fetched postings.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) FixtureMode() bool { return true }

func (p *Provider) Authenticate(_ context.Context) (source.AuthState, error) {
	return source.AuthState{Authenticated: true, Fixture: true}, nil
}

// Search returns fixtures whose title or description shares a token with
// keywords; every fixture when keywords is empty.
func (p *Provider) Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := Postings(p.now())
	if err != nil {
		return nil, err
	}
	terms := textindex.Tokenize(req.Keywords)

	var out []source.RawPosting
	for _, raw := range all {
		if len(terms) > 0 && !matchesAny(raw, terms) {
			continue
		}
		out = append(out, raw)
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func matchesAny(raw source.RawPosting, terms []string) bool {
	have := make(map[string]bool)
	for _, tok := range textindex.Tokenize(source.StringValue(raw.Fields["title"]) + " " + source.StringValue(raw.Fields["description"])) {
		have[tok] = true
	}
	for _, t := range terms {
		if have[t] {
			return true
		}
	}
	return false
}

func (p *Provider) FetchDetail(_ context.Context, externalID string) (*source.RawPosting, error) {
	all, err := Postings(p.now())
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ExternalID == externalID {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (p *Provider) Normalize(raw source.RawPosting) (*models.Job, error) {
	var f posting
	if err := source.DecodeFields(raw.Fields, &f); err != nil {
		return nil, fmt.Errorf("decoding fixture %s: %w", raw.ExternalID, err)
	}

	job := source.NewJob(raw)
	job.Title = f.Title
	job.CompanyName = f.Company
	job.CompanyIndustry = source.StringPtr(f.Industry)
	job.Location = source.SplitLocation(f.Location)
	job.WorkLocationType = source.WorkLocationType(f.WorkLocationType)
	job.EmploymentType = source.EmploymentType(f.EmploymentType)
	job.ExperienceLevel = source.ExperienceLevel(f.ExperienceLevel)
	job.ExperienceMinYears = f.ExperienceMin
	job.ExperienceMaxYears = f.ExperienceMax
	job.PostedAt = source.ParseTime(f.PostedAt)
	job.Description = source.CleanText(f.Description)
	job.RequiredSkills = f.RequiredSkills
	job.PreferredSkills = f.PreferredSkills
	if f.Salary != nil {
		job.Salary = models.Salary{
			Min:      f.Salary.Min,
			Max:      f.Salary.Max,
			Currency: source.StringPtr(f.Salary.Currency),
			Period:   source.SalaryPeriod(f.Salary.Period),
		}
	}
	if f.ApplyURL != "" {
		job.ApplyURLs[raw.Provider] = f.ApplyURL
	}
	return source.Finish(raw, job)
}
