package source_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Build reports. Own SQL & dashboards",
		source.CleanText("<p>Build reports.</p><ul><li>Own SQL &amp; dashboards</li></ul>"))
	assert.Equal(t, "plain text", source.CleanText("  plain \n text "))
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{"2024-05-01", "2024-05-01T00:00:00Z", float64(want.UnixMilli()), want.Unix()} {
		got := source.ParseTime(in)
		require.NotNil(t, got, "%v", in)
		assert.True(t, want.Equal(*got), "%v parsed as %v", in, got)
	}
	assert.Nil(t, source.ParseTime(""))
	assert.Nil(t, source.ParseTime("yesterday"))
	assert.Nil(t, source.ParseTime(nil))
}

func TestSplitLocation(t *testing.T) {
	assert.Equal(t, models.Location{City: "Zürich"}, source.SplitLocation("Zürich"))
	assert.Equal(t, models.Location{City: "Zürich", Country: "Switzerland"}, source.SplitLocation("Zürich, Switzerland"))
	assert.Equal(t, models.Location{City: "Zürich", Region: "ZH", Country: "Switzerland"}, source.SplitLocation("Zürich, ZH, Switzerland"))
	assert.Equal(t, models.Location{}, source.SplitLocation(" , "))
}

func TestEnumMapping_UnknownIsNil(t *testing.T) {
	assert.Equal(t, models.ExperienceSenior, *source.ExperienceLevel("MID_SENIOR"))
	assert.Equal(t, models.ExperienceEntry, *source.ExperienceLevel("Entry level"))
	assert.Nil(t, source.ExperienceLevel("wizard"))

	assert.Equal(t, models.EmploymentFullTime, *source.EmploymentType("FULL_TIME"))
	assert.Equal(t, models.EmploymentContract, *source.EmploymentType("contractor"))
	assert.Nil(t, source.EmploymentType("gig"))

	assert.Equal(t, models.WorkOnSite, *source.WorkLocationType("On-site"))
	assert.Equal(t, models.WorkRemote, *source.WorkLocationType("TELECOMMUTE"))
	assert.Nil(t, source.WorkLocationType(""))

	assert.Equal(t, models.PeriodYear, *source.SalaryPeriod("YEAR"))
	assert.Nil(t, source.SalaryPeriod("fortnight"))
}

func TestClosedState(t *testing.T) {
	for _, s := range []string{"CLOSED", "expired", "Filled", " suspended "} {
		assert.True(t, source.ClosedState(s), s)
	}
	for _, s := range []string{"", "LISTED", "open", "reposted"} {
		assert.False(t, source.ClosedState(s), s)
	}
}

func TestValueHelpers(t *testing.T) {
	assert.Equal(t, "3812345678", source.StringValue(nil, "", float64(3812345678)))
	assert.Equal(t, "Acme", source.StringValue(map[string]any{"name": "Acme"}))
	assert.Equal(t, 90000.0, *source.FloatValue("90,000"))
	assert.Nil(t, source.FloatValue("n/a"))
	assert.Equal(t, 5, *source.IntValue(5.7))
	assert.Nil(t, source.IntValue(-1))
	assert.Equal(t, []string{"SQL", "Excel"}, source.StringList("SQL, Excel"))
	assert.Equal(t, []string{"SQL", "Excel"}, source.StringList([]any{"SQL", "", "Excel"}))
	assert.Nil(t, source.StringPtr("  "))
}

func TestFinish_ValidatesAndNormalizesSkills(t *testing.T) {
	raw := source.RawPosting{Provider: "indeed", ExternalID: "I1"}
	job := source.NewJob(raw)
	job.Title = "Analyst"
	job.RequiredSkills = []string{"sql", "SQL", "Excel"}

	out, err := source.Finish(raw, job)
	require.NoError(t, err)
	assert.Len(t, out.RequiredSkills, 2)
	assert.Equal(t, map[string]string{"indeed": "I1"}, out.ExternalIDs)
	assert.Equal(t, "indeed", out.DataSource)

	empty := source.NewJob(raw)
	_, err = source.Finish(raw, empty)
	assert.Error(t, err)
}
