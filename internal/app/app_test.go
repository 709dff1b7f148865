package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/app"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/internal/ratelimit"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestBudgets_OnlyEnabledWithExplicitBudget(t *testing.T) {
	cfg := &config.Config{Providers: []config.ProviderConfig{
		{Name: models.ProviderLinkedIn, Enabled: true, HourlyBudget: 5, DailyBudget: 7},
		{Name: models.ProviderIndeed, Enabled: false, HourlyBudget: 1, DailyBudget: 1},
		{Name: models.ProviderStaticFixture, Enabled: true},
	}}

	got := app.Budgets(cfg)
	assert.Equal(t, map[string]ratelimit.Budget{
		models.ProviderLinkedIn: {Hourly: 5, Daily: 7},
	}, got)
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("jobhunter_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pg.Terminate(ctx)) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint
}

func TestApp_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	t.Setenv("JOBHUNTER_CONFIG", "")
	t.Setenv("DATABASE_URL", startPostgres(t, ctx))
	t.Setenv("REDIS_URL", startRedis(t, ctx))
	t.Setenv("SECRETS_REF", "env:JOBHUNTER_E2E_UNSET")

	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := app.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	// No credentials are set, so every provider serves fixtures.
	for _, st := range a.Registry.Statuses() {
		assert.True(t, st.FixtureMode, st.Provider)
	}

	results, err := a.Scheduler.RunOnce(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	fetched := 0
	for _, r := range results {
		fetched += r.Fetched
	}
	assert.Positive(t, fetched)

	page, err := a.Service.Search(ctx, jobsearch.SearchParams{UserID: "e2e", Keywords: "analyst"})
	require.NoError(t, err)
	require.NotEmpty(t, page.Jobs)

	matched, err := a.Service.Match(ctx, jobsearch.MatchParams{
		UserID:  "e2e",
		Profile: &models.Profile{Skills: []string{"SQL", "Excel"}, ExperienceYears: 4, TargetRole: "Business Analyst"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, matched.Results)

	srv := httptest.NewServer(a.Router())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
