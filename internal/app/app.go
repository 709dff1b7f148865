// Package app assembles the jobhunter runtime from configuration. The API
// server and the CLI share it so both see the same store, limiter and
// provider registry.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobhunter/internal/api"
	"github.com/kiranshivaraju/jobhunter/internal/api/handler"
	mw "github.com/kiranshivaraju/jobhunter/internal/api/middleware"
	"github.com/kiranshivaraju/jobhunter/internal/cache"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/ingest"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/internal/matching"
	"github.com/kiranshivaraju/jobhunter/internal/providers"
	"github.com/kiranshivaraju/jobhunter/internal/ratelimit"
	"github.com/kiranshivaraju/jobhunter/internal/secrets"
	"github.com/kiranshivaraju/jobhunter/internal/store"
)

// App owns every long-lived component. Close releases them.
type App struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Store     *store.PostgresStore
	Cache     *cache.RedisCache
	Limiter   *ratelimit.Limiter
	Registry  *providers.Registry
	Service   *jobsearch.Service
	Scheduler *ingest.Scheduler
}

// New connects to Postgres and Redis, applies migrations and wires the
// providers, limiter, matching engine, query service and scheduler.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := store.Connect(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Store.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	a := &App{Config: cfg, Pool: pool, Cache: redisCache}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	a.Store = store.NewPostgresStore(a.Pool,
		store.WithSearchLimits(cfg.API.DefaultSearchLimit, cfg.Store.SearchLimitMax),
		store.WithDeadlineGrace(cfg.Store.DeadlineGraceScrape),
	)

	a.Limiter = ratelimit.New(Budgets(cfg), ratelimit.Budget{
		Hourly: cfg.Ingest.DefaultBudget.Hourly,
		Daily:  cfg.Ingest.DefaultBudget.Daily,
	}, ratelimit.WithStateStore(a.Store))
	if err := a.Limiter.Validate(); err != nil {
		return err
	}
	if err := a.Limiter.Restore(ctx); err != nil {
		// Counters restart from zero; budgets still apply.
		slog.Warn("rate limit state not restored", "error", err)
	}

	resolver, err := secrets.NewEnvResolver(cfg.SecretsRef)
	if err != nil {
		return err
	}
	a.Registry, err = providers.Build(cfg, resolver, a.Limiter, a.Cache)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	a.Service = jobsearch.NewService(a.Store, matching.NewEngine(cfg.Matching), jobsearch.Limits{
		SearchDeadline:    cfg.API.SearchDeadline,
		WriteDeadline:     cfg.API.WriteDeadline,
		OverloadThreshold: int64(cfg.API.OverloadThreshold),
		DefaultLimit:      cfg.API.DefaultSearchLimit,
		DefaultTop:        cfg.API.DefaultMatchResults,
	},
		jobsearch.WithEvents(a.Cache),
		jobsearch.WithQuota(jobsearch.DailyQuota(a.Cache, cfg.API.UserSearchQuota, nil)),
	)

	a.Scheduler = ingest.New(a.Store, a.Limiter, ingest.Targets(cfg, a.Registry),
		ingest.WithTick(cfg.Ingest.Tick))
	return nil
}

// Budgets collects the per-provider request budgets of enabled providers.
// Providers without an explicit budget are left to the limiter fallback.
func Budgets(cfg *config.Config) map[string]ratelimit.Budget {
	out := make(map[string]ratelimit.Budget)
	for _, pc := range cfg.EnabledProviders() {
		if pc.HourlyBudget == 0 && pc.DailyBudget == 0 {
			continue
		}
		out[pc.Name] = ratelimit.Budget{Hourly: pc.HourlyBudget, Daily: pc.DailyBudget}
	}
	return out
}

// Router builds the HTTP API over the query service.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(a.Cache, a.Config.API.UserRequestsPerMin),

		HealthHandler:            handler.NewHealthHandler(a.Store, a.Cache),
		SearchHandler:            handler.NewSearchHandler(a.Service),
		GetJobHandler:            handler.NewGetJobHandler(a.Service),
		MatchHandler:             handler.NewMatchHandler(a.Service),
		RecordInteractionHandler: handler.NewRecordInteractionHandler(a.Service),
		ListUserJobsHandler:      handler.NewListUserJobsHandler(a.Service),
		PipelineHandler:          handler.NewPipelineHandler(a.Service),
	})
}

// Close releases the cache client and the connection pool.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
