// Package glassdoor talks to the Glassdoor partner jobs API. Requests are
// signed with the partner id and key as query parameters.
package glassdoor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const (
	DefaultBaseURL = "https://api.glassdoor.com"

	KeyPartnerID = "partner_id"
	KeyAPIKey    = "api_key"

	maxPageSize = 30
)

type Config struct {
	BaseURL   string
	PartnerID string
	APIKey    string
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

func (p *Provider) Name() string { return models.ProviderGlassdoor }

func (p *Provider) FixtureMode() bool { return false }

func (p *Provider) Authenticate(_ context.Context) (source.AuthState, error) {
	return source.AuthState{Authenticated: p.cfg.PartnerID != "" && p.cfg.APIKey != ""}, nil
}

func (p *Provider) signed(params url.Values) url.Values {
	params.Set("t.p", p.cfg.PartnerID)
	params.Set("t.k", p.cfg.APIKey)
	params.Set("format", "json")
	return params
}

type searchResponse struct {
	Response struct {
		Jobs         []map[string]any `json:"jobListings"`
		TotalPages   int              `json:"totalNumberOfPages"`
		CurrentPage  int              `json:"currentPageNumber"`
		TotalRecords int              `json:"totalRecordCount"`
	} `json:"response"`
}

func (p *Provider) Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = maxPageSize
	}
	size := min(limit, maxPageSize)

	var out []source.RawPosting
	for page := 1; len(out) < limit; page++ {
		params := p.signed(url.Values{
			"keyword":  {req.Keywords},
			"pageSize": {strconv.Itoa(size)},
			"page":     {strconv.Itoa(page)},
		})
		if req.Location != "" {
			params.Set("location", req.Location)
		}

		var resp searchResponse
		if err := p.client.GetJSON(ctx, p.cfg.BaseURL+"/api/jobs/search?"+params.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		fetched := p.now().UTC()
		for _, j := range resp.Response.Jobs {
			id := source.StringValue(j["jobListingId"], j["id"])
			if id == "" {
				continue
			}
			out = append(out, source.RawPosting{Provider: p.Name(), ExternalID: id, Fields: j, FetchedAt: fetched})
		}
		if len(resp.Response.Jobs) < size || page >= resp.Response.TotalPages {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Provider) FetchDetail(ctx context.Context, externalID string) (*source.RawPosting, error) {
	var resp struct {
		Response map[string]any `json:"response"`
	}
	target := p.cfg.BaseURL + "/api/jobs/" + url.PathEscape(externalID) + "?" + p.signed(url.Values{}).Encode()
	err := p.client.GetJSON(ctx, target, nil, &resp)
	if errors.Is(err, source.ErrNotFound) || (err == nil && len(resp.Response) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &source.RawPosting{Provider: p.Name(), ExternalID: externalID, Fields: resp.Response, FetchedAt: p.now().UTC()}, nil
}

type posting struct {
	JobTitle        string   `mapstructure:"jobTitle"`
	EmployerName    string   `mapstructure:"employerName"`
	SectorName      string   `mapstructure:"sectorName"`
	Location        string   `mapstructure:"location"`
	City            string   `mapstructure:"city"`
	State           string   `mapstructure:"state"`
	Country         string   `mapstructure:"countryName"`
	RemoteType      string   `mapstructure:"remoteWorkType"`
	JobType         string   `mapstructure:"jobType"`
	Seniority       string   `mapstructure:"seniorityLevel"`
	DiscoverDate    any      `mapstructure:"discoverDate"`
	ExpiryDate      any      `mapstructure:"expiryDate"`
	IsExpired       bool     `mapstructure:"isExpired"`
	ListingStatus   string   `mapstructure:"listingStatus"`
	Description     string   `mapstructure:"jobDescription"`
	RequiredSkills  []string `mapstructure:"requiredSkills"`
	PreferredSkills []string `mapstructure:"preferredSkills"`
	JobViewURL      string   `mapstructure:"jobViewUrl"`
	PayCurrency     string   `mapstructure:"payCurrency"`
	PayPeriod       string   `mapstructure:"payPeriod"`
	PayLow          *float64 `mapstructure:"payPercentile10"`
	PayHigh         *float64 `mapstructure:"payPercentile90"`
}

func (p *Provider) Normalize(raw source.RawPosting) (*models.Job, error) {
	var f posting
	if err := source.DecodeFields(raw.Fields, &f); err != nil {
		return nil, fmt.Errorf("decoding glassdoor posting %s: %w", raw.ExternalID, err)
	}

	job := source.NewJob(raw)
	job.Title = strings.TrimSpace(f.JobTitle)
	job.CompanyName = strings.TrimSpace(f.EmployerName)
	job.CompanyIndustry = source.StringPtr(f.SectorName)
	if f.City != "" {
		job.Location = models.Location{City: f.City, Region: f.State, Country: f.Country}
	} else {
		job.Location = source.SplitLocation(f.Location)
	}
	job.WorkLocationType = source.WorkLocationType(f.RemoteType)
	job.EmploymentType = source.EmploymentType(f.JobType)
	job.ExperienceLevel = source.ExperienceLevel(f.Seniority)
	job.PostedAt = source.ParseTime(f.DiscoverDate)
	job.ApplicationDeadline = source.ParseTime(f.ExpiryDate)
	job.IsActive = !f.IsExpired && !source.ClosedState(f.ListingStatus)
	job.Description = source.CleanText(f.Description)
	job.RequiredSkills = f.RequiredSkills
	job.PreferredSkills = f.PreferredSkills
	if f.PayLow != nil || f.PayHigh != nil {
		job.Salary = models.Salary{
			Min:      f.PayLow,
			Max:      f.PayHigh,
			Currency: source.StringPtr(f.PayCurrency),
			Period:   source.SalaryPeriod(f.PayPeriod),
		}
	}
	if f.JobViewURL != "" {
		job.ApplyURLs[raw.Provider] = f.JobViewURL
	}
	return source.Finish(raw, job)
}
