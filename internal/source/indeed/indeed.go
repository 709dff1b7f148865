// Package indeed talks to the Indeed publisher jobs API with an API key.
package indeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const (
	DefaultBaseURL = "https://apis.indeed.com"
	KeyAPIKey      = "api_key"

	maxPageSize = 25
)

type Config struct {
	BaseURL string
	APIKey  string
}

type Provider struct {
	cfg    Config
	client *source.Client
	now    func() time.Time
}

func New(cfg Config, client *source.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: client, now: time.Now}
}

func (p *Provider) Name() string { return models.ProviderIndeed }

func (p *Provider) FixtureMode() bool { return false }

// Authenticate has nothing to exchange; the key is sent on every request.
func (p *Provider) Authenticate(_ context.Context) (source.AuthState, error) {
	return source.AuthState{Authenticated: p.cfg.APIKey != ""}, nil
}

func (p *Provider) header() http.Header {
	return http.Header{"X-Api-Key": {p.cfg.APIKey}}
}

type searchResponse struct {
	Results      []map[string]any `json:"results"`
	TotalResults int              `json:"totalResults"`
}

func (p *Provider) Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = maxPageSize
	}

	var out []source.RawPosting
	for start := 0; len(out) < limit; {
		n := min(limit-len(out), maxPageSize)
		params := url.Values{
			"q":     {req.Keywords},
			"limit": {strconv.Itoa(n)},
			"start": {strconv.Itoa(start)},
			"sort":  {"date"},
		}
		if req.Location != "" {
			params.Set("l", req.Location)
		}
		if jt := req.Filters["employment_type"]; jt != "" {
			params.Set("jt", strings.ReplaceAll(jt, "_", ""))
		}

		var page searchResponse
		if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/v2/jobs/search?"+params.Encode(), p.header(), &page); err != nil {
			return nil, err
		}
		fetched := p.now().UTC()
		for _, r := range page.Results {
			key := source.StringValue(r["jobkey"])
			if key == "" {
				continue
			}
			out = append(out, source.RawPosting{Provider: p.Name(), ExternalID: key, Fields: r, FetchedAt: fetched})
		}
		start += len(page.Results)
		if len(page.Results) < n || (page.TotalResults > 0 && start >= page.TotalResults) {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Provider) FetchDetail(ctx context.Context, externalID string) (*source.RawPosting, error) {
	var fields map[string]any
	err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/v2/jobs/"+url.PathEscape(externalID), p.header(), &fields)
	if errors.Is(err, source.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &source.RawPosting{Provider: p.Name(), ExternalID: externalID, Fields: fields, FetchedAt: p.now().UTC()}, nil
}

type posting struct {
	JobTitle          string   `mapstructure:"jobtitle"`
	Company           string   `mapstructure:"company"`
	Industry          string   `mapstructure:"industry"`
	City              string   `mapstructure:"city"`
	State             string   `mapstructure:"state"`
	Country           string   `mapstructure:"country"`
	FormattedLocation string   `mapstructure:"formattedLocation"`
	Snippet           string   `mapstructure:"snippet"`
	Description       string   `mapstructure:"description"`
	Date              any      `mapstructure:"date"`
	Expires           any      `mapstructure:"expires"`
	Expired           bool     `mapstructure:"expired"`
	URL               string   `mapstructure:"url"`
	JobType           string   `mapstructure:"jobtype"`
	Level             string   `mapstructure:"level"`
	Remote            *bool    `mapstructure:"remote"`
	Hybrid            bool     `mapstructure:"hybrid"`
	Skills            []string `mapstructure:"skills"`
	Preferred         []string `mapstructure:"preferredSkills"`
	Requirements      []string `mapstructure:"requirements"`
	YearsMin          *int     `mapstructure:"yearsExperienceMin"`
	YearsMax          *int     `mapstructure:"yearsExperienceMax"`
	Salary            *struct {
		Min      *float64 `mapstructure:"min"`
		Max      *float64 `mapstructure:"max"`
		Currency string   `mapstructure:"currency"`
		Period   string   `mapstructure:"period"`
	} `mapstructure:"salary"`
}

func (p *Provider) Normalize(raw source.RawPosting) (*models.Job, error) {
	var f posting
	if err := source.DecodeFields(raw.Fields, &f); err != nil {
		return nil, fmt.Errorf("decoding indeed posting %s: %w", raw.ExternalID, err)
	}

	job := source.NewJob(raw)
	job.Title = strings.TrimSpace(f.JobTitle)
	job.CompanyName = strings.TrimSpace(f.Company)
	job.CompanyIndustry = source.StringPtr(f.Industry)
	if f.City != "" || f.Country != "" {
		job.Location = models.Location{City: f.City, Region: f.State, Country: f.Country}
	} else {
		job.Location = source.SplitLocation(f.FormattedLocation)
	}
	switch {
	case f.Hybrid:
		job.WorkLocationType = source.WorkLocationType("hybrid")
	case f.Remote != nil && *f.Remote:
		job.WorkLocationType = source.WorkLocationType("remote")
	case f.Remote != nil:
		job.WorkLocationType = source.WorkLocationType("on_site")
	}
	job.EmploymentType = source.EmploymentType(f.JobType)
	job.ExperienceLevel = source.ExperienceLevel(f.Level)
	job.ExperienceMinYears = f.YearsMin
	job.ExperienceMaxYears = f.YearsMax
	job.PostedAt = source.ParseTime(f.Date)
	job.ApplicationDeadline = source.ParseTime(f.Expires)
	job.IsActive = !f.Expired
	if f.Description != "" {
		job.Description = source.CleanText(f.Description)
	} else {
		job.Description = source.CleanText(f.Snippet)
	}
	job.Requirements = f.Requirements
	job.RequiredSkills = f.Skills
	job.PreferredSkills = f.Preferred
	if s := f.Salary; s != nil {
		job.Salary = models.Salary{
			Min:      s.Min,
			Max:      s.Max,
			Currency: source.StringPtr(s.Currency),
			Period:   source.SalaryPeriod(s.Period),
		}
	}
	if f.URL != "" {
		job.ApplyURLs[raw.Provider] = f.URL
	}
	return source.Finish(raw, job)
}
