package glassdoor_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/source/glassdoor"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id int) map[string]any {
	return map[string]any{
		"jobListingId":    id,
		"jobTitle":        "Business Analyst",
		"employerName":    "Roche",
		"sectorName":      "Pharmaceutical",
		"location":        "Basel, Switzerland",
		"remoteWorkType":  "Hybrid",
		"jobType":         "Full-time",
		"seniorityLevel":  "Mid-Senior",
		"discoverDate":    "2024-04-20",
		"jobDescription":  "<div>Requirements engineering</div><div>Stakeholder workshops</div>",
		"requiredSkills":  []any{"BPMN", "SQL"},
		"jobViewUrl":      fmt.Sprintf("https://www.glassdoor.ch/job-listing/%d", id),
		"payCurrency":     "CHF",
		"payPeriod":       "ANNUAL",
		"payPercentile10": 98000,
		"payPercentile90": 131000,
	}
}

type upstream struct {
	total  int
	pages  int
	status int
}

func (u *upstream) serve(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/search", func(w http.ResponseWriter, r *http.Request) {
		u.pages++
		if u.status != 0 {
			w.WriteHeader(u.status)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "partner", q.Get("t.p"))
		assert.Equal(t, "key", q.Get("t.k"))
		assert.Equal(t, "json", q.Get("format"))
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("pageSize"))

		var jobs []any
		for i := (page - 1) * size; i < page*size && i < u.total; i++ {
			jobs = append(jobs, listing(500+i))
		}
		totalPages := (u.total + size - 1) / size
		_ = json.NewEncoder(w).Encode(map[string]any{"response": map[string]any{
			"jobListings":        jobs,
			"totalNumberOfPages": totalPages,
			"currentPageNumber":  page,
		}})
	})
	mux.HandleFunc("/api/jobs/500", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": listing(500)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(baseURL string) *glassdoor.Provider {
	return glassdoor.New(glassdoor.Config{BaseURL: baseURL, PartnerID: "partner", APIKey: "key"},
		source.NewClient(models.ProviderGlassdoor, nil, time.Second))
}

func TestSearch_FollowsPages(t *testing.T) {
	u := &upstream{total: 45}
	p := newProvider(u.serve(t).URL)

	got, err := p.Search(context.Background(), source.SearchRequest{Keywords: "business analyst", Location: "Basel", Limit: 60})
	require.NoError(t, err)
	assert.Len(t, got, 45)
	assert.Equal(t, 2, u.pages)
	assert.Equal(t, "500", got[0].ExternalID)
	assert.Equal(t, "544", got[44].ExternalID)
}

func TestSearch_LimitCapsPageSize(t *testing.T) {
	u := &upstream{total: 45}
	p := newProvider(u.serve(t).URL)

	got, err := p.Search(context.Background(), source.SearchRequest{Keywords: "analyst", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, 1, u.pages)
}

func TestSearch_RateLimited(t *testing.T) {
	u := &upstream{status: http.StatusTooManyRequests}
	p := newProvider(u.serve(t).URL)

	_, err := p.Search(context.Background(), source.SearchRequest{Keywords: "analyst", Limit: 10})
	d, ok := apperr.RetryAfter(err)
	require.True(t, ok, "want a rate limit error, got %v", err)
	assert.Positive(t, d)
}

func TestFetchDetail(t *testing.T) {
	u := &upstream{}
	p := newProvider(u.serve(t).URL)

	raw, err := p.FetchDetail(context.Background(), "500")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "Roche", raw.Fields["employerName"])

	raw, err = p.FetchDetail(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNormalize(t *testing.T) {
	p := newProvider("")
	data, err := json.Marshal(listing(500))
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	job, err := p.Normalize(source.RawPosting{Provider: models.ProviderGlassdoor, ExternalID: "500", Fields: fields})
	require.NoError(t, err)

	assert.Equal(t, "Business Analyst", job.Title)
	assert.Equal(t, "Roche", job.CompanyName)
	assert.Equal(t, "Pharmaceutical", *job.CompanyIndustry)
	assert.Equal(t, models.Location{City: "Basel", Country: "Switzerland"}, job.Location)
	assert.Equal(t, models.WorkHybrid, *job.WorkLocationType)
	assert.Equal(t, models.EmploymentFullTime, *job.EmploymentType)
	assert.Equal(t, models.ExperienceSenior, *job.ExperienceLevel)
	assert.Equal(t, "Requirements engineering Stakeholder workshops", job.Description)
	assert.Equal(t, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), *job.PostedAt)
	assert.Equal(t, []string{"BPMN", "SQL"}, job.RequiredSkills)
	assert.Equal(t, 98000.0, *job.Salary.Min)
	assert.Equal(t, 131000.0, *job.Salary.Max)
	assert.Equal(t, models.PeriodYear, *job.Salary.Period)
	assert.Equal(t, "https://www.glassdoor.ch/job-listing/500", job.ApplyURLs[models.ProviderGlassdoor])
}

func TestNormalize_ExpiredListing(t *testing.T) {
	p := newProvider("")

	expired := listing(501)
	expired["isExpired"] = "true"
	job, err := p.Normalize(source.RawPosting{Provider: models.ProviderGlassdoor, ExternalID: "501", Fields: expired})
	require.NoError(t, err)
	assert.False(t, job.IsActive)

	filled := listing(502)
	filled["listingStatus"] = "Filled"
	job, err = p.Normalize(source.RawPosting{Provider: models.ProviderGlassdoor, ExternalID: "502", Fields: filled})
	require.NoError(t, err)
	assert.False(t, job.IsActive)

	job, err = p.Normalize(source.RawPosting{Provider: models.ProviderGlassdoor, ExternalID: "500", Fields: listing(500)})
	require.NoError(t, err)
	assert.True(t, job.IsActive)
}
