package fixture_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/source/fixture"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetched = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestPostings_AreLabeledAndBounded(t *testing.T) {
	all, err := fixture.Postings(fetched)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.LessOrEqual(t, len(all), 5)

	p := fixture.New(models.ProviderLinkedIn)
	for _, raw := range all {
		assert.True(t, raw.Fixture)
		assert.Equal(t, models.ProviderStaticFixture, raw.Provider)
		assert.True(t, strings.HasPrefix(raw.ExternalID, "fixture-"))

		job, err := p.Normalize(raw)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(job.Title, "[FIXTURE]"), job.Title)
		assert.Contains(t, job.CompanyName, "(demo)")
		assert.Equal(t, models.ProviderStaticFixture, job.DataSource)
		for _, u := range job.ApplyURLs {
			assert.Contains(t, u, ".invalid/")
		}
	}
}

func TestSearch_IsDeterministic(t *testing.T) {
	p := fixture.New(models.ProviderStaticFixture).WithClock(func() time.Time { return fetched })
	req := source.SearchRequest{Keywords: "business analyst", Limit: 10}

	a, err := p.Search(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ids := make([]string, 0, len(a))
	for _, raw := range a {
		ids = append(ids, raw.ExternalID)
	}
	assert.Equal(t, []string{"fixture-1", "fixture-4"}, ids)
}

func TestSearch_LimitAndEmptyKeywords(t *testing.T) {
	p := fixture.New(models.ProviderStaticFixture)

	got, err := p.Search(context.Background(), source.SearchRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = p.Search(context.Background(), source.SearchRequest{Keywords: "astronaut"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalize_MapsFields(t *testing.T) {
	p := fixture.New(models.ProviderStaticFixture)
	raw, err := p.FetchDetail(context.Background(), "fixture-1")
	require.NoError(t, err)
	require.NotNil(t, raw)

	job, err := p.Normalize(*raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"static_fixture": "fixture-1"}, job.ExternalIDs)
	assert.Equal(t, "Fixture City", job.Location.City)
	assert.Equal(t, models.WorkHybrid, *job.WorkLocationType)
	assert.Equal(t, models.ExperienceSenior, *job.ExperienceLevel)
	assert.Equal(t, 5, *job.ExperienceMinYears)
	assert.Equal(t, 10, *job.ExperienceMaxYears)
	assert.Equal(t, 90000.0, *job.Salary.Min)
	assert.Equal(t, models.PeriodYear, *job.Salary.Period)
	require.NotNil(t, job.PostedAt)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), *job.PostedAt)
	assert.Len(t, job.RequiredSkills, 4)
}

func TestNormalize_UnknownEnumIsNil(t *testing.T) {
	p := fixture.New(models.ProviderStaticFixture)
	raw, err := p.FetchDetail(context.Background(), "fixture-5")
	require.NoError(t, err)
	require.NotNil(t, raw)

	job, err := p.Normalize(*raw)
	require.NoError(t, err)
	assert.Nil(t, job.WorkLocationType)
	assert.Nil(t, job.ExperienceMaxYears)
}

func TestFetchDetail_UnknownID(t *testing.T) {
	p := fixture.New(models.ProviderStaticFixture)
	raw, err := p.FetchDetail(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
