// Package linkedin talks to the LinkedIn Jobs API with an OAuth2
// client-credentials token.
package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const (
	DefaultBaseURL = "https://api.linkedin.com"
	DefaultAuthURL = "https://www.linkedin.com/oauth/v2/accessToken"

	maxPageSize = 50
	viewURL     = "https://www.linkedin.com/jobs/view/"
)

// Credential keys resolved through the secrets reference.
const (
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
)

type Config struct {
	BaseURL       string
	AuthURL       string
	ClientID      string
	ClientSecret  string
	RefreshBuffer time.Duration
}

type Provider struct {
	cfg    Config
	client *source.Client
	tokens *source.TokenManager
	now    func() time.Time
}

// New builds the provider on client, which carries the rate limiter.
func New(cfg Config, client *source.Client, opts ...source.TokenOption) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &Provider{cfg: cfg, client: client, now: time.Now}
	opts = append([]source.TokenOption{source.WithTokenTimer(client.Timer())}, opts...)
	p.tokens = source.NewTokenManager(models.ProviderLinkedIn, p.fetchToken, cfg.RefreshBuffer, opts...)
	return p
}

func (p *Provider) Name() string { return models.ProviderLinkedIn }

func (p *Provider) FixtureMode() bool { return false }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *Provider) fetchToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}
	var resp tokenResponse
	if err := p.client.PostForm(ctx, p.cfg.AuthURL, form, &resp); err != nil {
		return "", time.Time{}, source.ClassifyTokenError(p.Name(), err)
	}
	if resp.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: linkedin: token response without access_token", apperr.ErrAuth)
	}
	return resp.AccessToken, p.now().Add(time.Duration(resp.ExpiresIn) * time.Second), nil
}

func (p *Provider) Authenticate(ctx context.Context) (source.AuthState, error) {
	if _, err := p.tokens.Token(ctx); err != nil {
		return source.AuthState{}, err
	}
	return p.tokens.State(), nil
}

// get issues an authorized GET. A 401 on a cached token forces one refresh
// before the failure is reported.
func (p *Provider) get(ctx context.Context, target string, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return err
		}
		header := http.Header{
			"Authorization":             {"Bearer " + token},
			"X-Restli-Protocol-Version": {"2.0.0"},
		}
		err = p.client.GetJSON(ctx, target, header, out)
		if errors.Is(err, apperr.ErrAuth) && attempt == 0 {
			p.tokens.Invalidate()
			continue
		}
		return err
	}
}

type searchResponse struct {
	Elements []map[string]any `json:"elements"`
}

func (p *Provider) Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = maxPageSize
	}

	var out []source.RawPosting
	for start := 0; len(out) < limit; {
		count := min(limit-len(out), maxPageSize)
		params := url.Values{
			"keywords": {req.Keywords},
			"count":    {strconv.Itoa(count)},
			"start":    {strconv.Itoa(start)},
			"sort":     {"DD"},
		}
		if req.Location != "" {
			params.Set("location", req.Location)
		}
		if lvl := req.Filters["experience_level"]; lvl != "" {
			params.Set("experience", experienceParam(lvl))
		}
		if req.Filters["work_location_type"] == string(models.WorkRemote) {
			params.Set("f_WT", "2")
		}

		var page searchResponse
		if err := p.get(ctx, p.cfg.BaseURL+"/v2/jobSearch?"+params.Encode(), &page); err != nil {
			return nil, err
		}
		fetched := p.now().UTC()
		for _, el := range page.Elements {
			id := source.StringValue(el["id"])
			if id == "" {
				continue
			}
			out = append(out, source.RawPosting{Provider: p.Name(), ExternalID: id, Fields: el, FetchedAt: fetched})
		}
		if len(page.Elements) < count {
			break
		}
		start += len(page.Elements)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func experienceParam(level string) string {
	switch models.ExperienceLevel(level) {
	case models.ExperienceEntry:
		return "ENTRY_LEVEL"
	case models.ExperienceMid:
		return "ASSOCIATE"
	case models.ExperienceSenior:
		return "MID_SENIOR"
	case models.ExperienceExecutive:
		return "DIRECTOR"
	}
	return strings.ToUpper(level)
}

func (p *Provider) FetchDetail(ctx context.Context, externalID string) (*source.RawPosting, error) {
	var fields map[string]any
	err := p.get(ctx, p.cfg.BaseURL+"/v2/jobs/"+url.PathEscape(externalID), &fields)
	if errors.Is(err, source.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &source.RawPosting{Provider: p.Name(), ExternalID: externalID, Fields: fields, FetchedAt: p.now().UTC()}, nil
}

type posting struct {
	Title          string `mapstructure:"title"`
	CompanyDetails struct {
		CompanyName string `mapstructure:"companyName"`
		Industries  []struct {
			LocalizedName string `mapstructure:"localizedName"`
		} `mapstructure:"industries"`
	} `mapstructure:"companyDetails"`
	LocationName struct {
		PreferredGeoPlace struct {
			CityName string `mapstructure:"cityName"`
			Region   string `mapstructure:"region"`
			Country  string `mapstructure:"country"`
		} `mapstructure:"preferredGeoPlace"`
	} `mapstructure:"locationName"`
	Description struct {
		Text string `mapstructure:"text"`
	} `mapstructure:"description"`
	EmploymentStatus string `mapstructure:"employmentStatus"`
	ExperienceLevel  string `mapstructure:"experienceLevel"`
	WorkplaceType    string `mapstructure:"workplaceType"`
	ListedAt         any    `mapstructure:"listedAt"`
	ExpireAt         any    `mapstructure:"expireAt"`
	JobPostingState  string `mapstructure:"jobPostingState"`
	ApplyMethod      struct {
		CompanyApplyURL string `mapstructure:"companyApplyUrl"`
	} `mapstructure:"applyMethod"`
	Compensation *struct {
		StartingAmount *float64 `mapstructure:"startingAmount"`
		EndingAmount   *float64 `mapstructure:"endingAmount"`
		CurrencyCode   string   `mapstructure:"currencyCode"`
		UnitReference  string   `mapstructure:"unitReference"`
	} `mapstructure:"compensation"`
	Skills []struct {
		Skill     string `mapstructure:"skill"`
		Preferred bool   `mapstructure:"preferred"`
	} `mapstructure:"skills"`
}

func (p *Provider) Normalize(raw source.RawPosting) (*models.Job, error) {
	var f posting
	if err := source.DecodeFields(raw.Fields, &f); err != nil {
		return nil, fmt.Errorf("decoding linkedin posting %s: %w", raw.ExternalID, err)
	}

	job := source.NewJob(raw)
	job.Title = strings.TrimSpace(f.Title)
	job.CompanyName = strings.TrimSpace(f.CompanyDetails.CompanyName)
	if len(f.CompanyDetails.Industries) > 0 {
		job.CompanyIndustry = source.StringPtr(f.CompanyDetails.Industries[0].LocalizedName)
	}
	geo := f.LocationName.PreferredGeoPlace
	job.Location = models.Location{City: geo.CityName, Region: geo.Region, Country: geo.Country}
	job.EmploymentType = source.EmploymentType(f.EmploymentStatus)
	job.ExperienceLevel = source.ExperienceLevel(f.ExperienceLevel)
	job.WorkLocationType = source.WorkLocationType(f.WorkplaceType)
	job.PostedAt = source.ParseTime(f.ListedAt)
	job.ApplicationDeadline = source.ParseTime(f.ExpireAt)
	job.Description = source.CleanText(f.Description.Text)
	job.IsActive = !source.ClosedState(f.JobPostingState)

	for _, s := range f.Skills {
		if s.Preferred {
			job.PreferredSkills = append(job.PreferredSkills, s.Skill)
		} else {
			job.RequiredSkills = append(job.RequiredSkills, s.Skill)
		}
	}
	if c := f.Compensation; c != nil {
		job.Salary = models.Salary{
			Min:      c.StartingAmount,
			Max:      c.EndingAmount,
			Currency: source.StringPtr(c.CurrencyCode),
			Period:   source.SalaryPeriod(c.UnitReference),
		}
	}

	if f.ApplyMethod.CompanyApplyURL != "" {
		job.ApplyURLs[raw.Provider] = f.ApplyMethod.CompanyApplyURL
	} else {
		job.ApplyURLs[raw.Provider] = viewURL + url.PathEscape(raw.ExternalID)
	}
	return source.Finish(raw, job)
}
