package careers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/source/careers"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listPage = `<!doctype html>
<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"Organization","name":"Helvetia"},
  {"@type":"ItemList","itemListElement":[
    {"@type":"ListItem","position":1,"item":{
      "@type":"JobPosting",
      "title":"Senior Business Analyst",
      "url":"/jobs/ba-1",
      "hiringOrganization":{"@type":"Organization","name":"Helvetia","industry":"Insurance"},
      "jobLocation":{"@type":"Place","address":{"addressLocality":"St. Gallen","addressRegion":"SG","addressCountry":{"@type":"Country","name":"Switzerland"}}},
      "employmentType":["FULL_TIME"],
      "datePosted":"2024-04-02",
      "validThrough":"2024-06-30T23:59:59Z",
      "description":"<p>Translate business needs.</p><ul><li>SQL</li></ul>",
      "skills":"SQL, BPMN",
      "experienceRequirements":{"@type":"OccupationalExperienceRequirements","monthsOfExperience":60},
      "baseSalary":{"@type":"MonetaryAmount","currency":"CHF","value":{"@type":"QuantitativeValue","minValue":110000,"maxValue":130000,"unitText":"YEAR"}}
    }},
    {"@type":"ListItem","position":2,"item":{
      "@type":"JobPosting",
      "title":"Claims Handler",
      "url":"/jobs/ch-2",
      "hiringOrganization":"Helvetia"
    }}
  ]}
]}
</script>
<script type="application/ld+json"><!--
[{"@type":["JobPosting"],"title":"Remote Data Analyst","hiringOrganization":{"name":"Helvetia"},"jobLocationType":"TELECOMMUTE","identifier":{"@type":"PropertyValue","value":"R-77"}}]
--></script>
<script type="application/ld+json">{not json</script>
</head><body></body></html>`

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/careers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listPage))
	})
	mux.HandleFunc("/jobs/ba-1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script type="application/ld+json">
{"@type":"JobPosting","title":"Senior Business Analyst","hiringOrganization":{"name":"Helvetia"}}
</script></head></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider() *careers.Provider {
	return careers.New(source.NewClient(models.ProviderCompanyCareer, nil, time.Second))
}

func TestExtract_FindsNestedPostings(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listPage))
	require.NoError(t, err)

	postings := careers.Extract(doc)
	require.Len(t, postings, 3)
	assert.Equal(t, "Senior Business Analyst", postings[0]["title"])
	assert.Equal(t, "Claims Handler", postings[1]["title"])
	assert.Equal(t, "Remote Data Analyst", postings[2]["title"])
}

func TestSearch_FiltersByTitleAndSkipsFailedPages(t *testing.T) {
	srv := newServer(t)
	p := newProvider()

	got, err := p.Search(context.Background(), source.SearchRequest{
		Keywords: "business analyst",
		URLs:     []string{srv.URL + "/missing", srv.URL + "/careers"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, srv.URL+"/jobs/ba-1", got[0].ExternalID)
	assert.Equal(t, "R-77", got[1].ExternalID)
	assert.Equal(t, srv.URL+"/careers", got[0].Fields["_source_url"])
}

func TestSearch_DeduplicatesAcrossPages(t *testing.T) {
	srv := newServer(t)
	p := newProvider()

	got, err := p.Search(context.Background(), source.SearchRequest{
		URLs: []string{srv.URL + "/careers", srv.URL + "/careers"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_AllPagesFailing(t *testing.T) {
	srv := newServer(t)
	p := newProvider()

	_, err := p.Search(context.Background(), source.SearchRequest{
		Keywords: "analyst",
		URLs:     []string{srv.URL + "/a", srv.URL + "/b"},
	})
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestFetchDetail(t *testing.T) {
	srv := newServer(t)
	p := newProvider()

	raw, err := p.FetchDetail(context.Background(), srv.URL+"/jobs/ba-1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "Senior Business Analyst", raw.Fields["title"])

	raw, err = p.FetchDetail(context.Background(), "R-77")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNormalize(t *testing.T) {
	srv := newServer(t)
	p := newProvider()
	got, err := p.Search(context.Background(), source.SearchRequest{URLs: []string{srv.URL + "/careers"}})
	require.NoError(t, err)
	require.Len(t, got, 3)

	job, err := p.Normalize(got[0])
	require.NoError(t, err)
	assert.Equal(t, "Senior Business Analyst", job.Title)
	assert.Equal(t, "Helvetia", job.CompanyName)
	assert.Equal(t, "Insurance", *job.CompanyIndustry)
	assert.Equal(t, models.Location{City: "St. Gallen", Region: "SG", Country: "Switzerland"}, job.Location)
	assert.Equal(t, models.EmploymentFullTime, *job.EmploymentType)
	assert.Nil(t, job.WorkLocationType)
	assert.Equal(t, 5, *job.ExperienceMinYears)
	assert.Equal(t, "Translate business needs. SQL", job.Description)
	assert.Equal(t, []string{"BPMN", "SQL"}, job.RequiredSkills)
	assert.Equal(t, 110000.0, *job.Salary.Min)
	assert.Equal(t, 130000.0, *job.Salary.Max)
	assert.Equal(t, models.PeriodYear, *job.Salary.Period)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), *job.PostedAt)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), *job.ApplicationDeadline)
	assert.True(t, job.IsActive, "a passed validThrough is settled by the store's deadline grace")
	assert.Equal(t, srv.URL+"/jobs/ba-1", job.ApplyURLs[models.ProviderCompanyCareer])

	job, err = p.Normalize(got[1])
	require.NoError(t, err)
	assert.Equal(t, "Helvetia", job.CompanyName)

	job, err = p.Normalize(got[2])
	require.NoError(t, err)
	assert.Equal(t, models.WorkRemote, *job.WorkLocationType)
	assert.Equal(t, srv.URL+"/careers", job.ApplyURLs[models.ProviderCompanyCareer])
}
