package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// Config holds all configuration for the jobhunter server and CLI.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Redis      RedisConfig
	API        APIConfig
	Ingest     IngestConfig
	Log        LogConfig
	Providers  []ProviderConfig
	Matching   MatchingConfig
	SecretsRef string
}

type ServerConfig struct {
	Port int
	Env  string
}

// StoreConfig is the `store` section: dsn, pool_size, search_limit_max.
type StoreConfig struct {
	DSN                 string        `mapstructure:"dsn"`
	PoolSize            int           `mapstructure:"pool_size"`
	MinConns            int           `mapstructure:"min_conns"`
	ConnMaxLifetime     time.Duration `mapstructure:"conn_max_lifetime"`
	SearchLimitMax      int           `mapstructure:"search_limit_max"`
	DeadlineGraceScrape int           `mapstructure:"deadline_grace_scrapes"`
}

type RedisConfig struct {
	URL string
}

// APIConfig is the `api` section.
type APIConfig struct {
	SearchDeadline      time.Duration `mapstructure:"-"`
	WriteDeadline       time.Duration `mapstructure:"-"`
	SearchDeadlineMS    int           `mapstructure:"search_deadline_ms"`
	WriteDeadlineMS     int           `mapstructure:"write_deadline_ms"`
	OverloadThreshold   int           `mapstructure:"overload_threshold"`
	UserSearchQuota     int           `mapstructure:"user_search_quota_per_day"`
	UserRequestsPerMin  int           `mapstructure:"user_requests_per_minute"`
	DefaultSearchLimit  int           `mapstructure:"default_search_limit"`
	DefaultMatchResults int           `mapstructure:"default_match_results"`
}

type IngestConfig struct {
	Tick          time.Duration
	CacheTTL      time.Duration
	DefaultBudget BudgetConfig
}

type BudgetConfig struct {
	Hourly int
	Daily  int
}

type LogConfig struct {
	Level string
	File  string
}

// Query is one entry of a provider's query set. URLs is only read by the
// company_career provider.
type Query struct {
	Keywords string   `mapstructure:"keywords"`
	Location string   `mapstructure:"location"`
	Limit    int      `mapstructure:"limit"`
	URLs     []string `mapstructure:"urls"`
}

// ProviderConfig is one entry of the `providers` list.
type ProviderConfig struct {
	Name              string        `mapstructure:"name"`
	Enabled           bool          `mapstructure:"enabled"`
	HourlyBudget      int           `mapstructure:"hourly_budget"`
	DailyBudget       int           `mapstructure:"daily_budget"`
	Cadence           time.Duration `mapstructure:"cadence"`
	QuerySet          []Query       `mapstructure:"query_set"`
	CredentialsRef    string        `mapstructure:"credentials_ref"`
	BaseURL           string        `mapstructure:"base_url"`
	AuthURL           string        `mapstructure:"auth_url"`
	AuthRefreshBuffer time.Duration `mapstructure:"auth_refresh_buffer"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// Weights are the skill and context weights; experience fit is multiplicative.
type Weights struct {
	Required  float64 `mapstructure:"required"`
	Preferred float64 `mapstructure:"preferred"`
	Domain    float64 `mapstructure:"domain"`
	Context   float64 `mapstructure:"context"`
}

func (w Weights) Sum() float64 { return w.Required + w.Preferred + w.Domain + w.Context }

type SalaryBand struct {
	Min      float64 `mapstructure:"min"`
	Max      float64 `mapstructure:"max"`
	Currency string  `mapstructure:"currency"`
}

// ExperienceClamps are the lower bounds of experience_fit below and above range.
type ExperienceClamps struct {
	Below float64 `mapstructure:"below"`
	Above float64 `mapstructure:"above"`
}

// MatchingConfig is the `matching` section.
type MatchingConfig struct {
	Weights              Weights               `mapstructure:"weights"`
	SalaryTablePerDomain map[string]SalaryBand `mapstructure:"salary_table_per_domain"`
	ExperienceClamps     ExperienceClamps      `mapstructure:"experience_clamps"`
	SalaryVariation      float64               `mapstructure:"salary_variation"`
}

// providerDefaults are the budgets and cadences each adapter declares.
var providerDefaults = map[string]ProviderConfig{
	models.ProviderLinkedIn:      {HourlyBudget: 1000, DailyBudget: 10000, Cadence: time.Hour},
	models.ProviderIndeed:        {HourlyBudget: 500, DailyBudget: 5000, Cadence: 2 * time.Hour},
	models.ProviderGlassdoor:     {HourlyBudget: 300, DailyBudget: 3000, Cadence: 3 * time.Hour},
	models.ProviderCompanyCareer: {HourlyBudget: 120, DailyBudget: 1000, Cadence: 6 * time.Hour},
	models.ProviderStaticFixture: {HourlyBudget: 1000, DailyBudget: 10000, Cadence: time.Hour},
}

// ProviderDefaults returns the declared defaults for a provider name.
func ProviderDefaults(name string) (ProviderConfig, bool) {
	p, ok := providerDefaults[name]
	return p, ok
}

// DefaultMatching returns the built-in scoring configuration.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		Weights: Weights{Required: 0.50, Preferred: 0.30, Domain: 0.10, Context: 0.10},
		SalaryTablePerDomain: map[string]SalaryBand{
			"Business Analyst":  {Min: 70000, Max: 120000, Currency: "USD"},
			"Data Scientist":    {Min: 100000, Max: 180000, Currency: "USD"},
			"Software Engineer": {Min: 90000, Max: 160000, Currency: "USD"},
			"Product Manager":   {Min: 110000, Max: 190000, Currency: "USD"},
		},
		ExperienceClamps: ExperienceClamps{Below: 0.6, Above: 0.7},
		SalaryVariation:  0.05,
	}
}

func defaultProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, name := range []string{models.ProviderLinkedIn, models.ProviderIndeed, models.ProviderGlassdoor, models.ProviderCompanyCareer} {
		p := providerDefaults[name]
		p.Name = name
		p.Enabled = true
		p.CredentialsRef = name
		p.QuerySet = []Query{{Keywords: "business analyst"}}
		out = append(out, p)
	}
	return out
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Env: "development"},
		Store: StoreConfig{
			PoolSize:            25,
			MinConns:            5,
			ConnMaxLifetime:     5 * time.Minute,
			SearchLimitMax:      100,
			DeadlineGraceScrape: 3,
		},
		API: APIConfig{
			SearchDeadlineMS:    2000,
			WriteDeadlineMS:     500,
			OverloadThreshold:   64,
			UserRequestsPerMin:  60,
			DefaultSearchLimit:  20,
			DefaultMatchResults: 10,
		},
		Ingest: IngestConfig{
			Tick:          time.Minute,
			CacheTTL:      30 * time.Minute,
			DefaultBudget: BudgetConfig{Hourly: 10, Daily: 100},
		},
		Log:        LogConfig{Level: "info"},
		Providers:  defaultProviders(),
		Matching:   DefaultMatching(),
		SecretsRef: "env:JOBHUNTER",
	}
}

// Load builds the configuration from built-in defaults, the optional YAML
// document at path (or $JOBHUNTER_CONFIG when path is empty), and finally
// environment variables. Any invalid value fails with a *apperr.ConfigError.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("JOBHUNTER_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("JOBHUNTER_PORT", c.Server.Port)
	c.Server.Env = envString("JOBHUNTER_ENV", c.Server.Env)

	c.Store.DSN = envString("DATABASE_URL", c.Store.DSN)
	c.Store.PoolSize = envInt("DATABASE_MAX_OPEN_CONNS", c.Store.PoolSize)
	c.Store.MinConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Store.MinConns)
	c.Store.ConnMaxLifetime = envDuration("DATABASE_CONN_MAX_LIFETIME", c.Store.ConnMaxLifetime)
	c.Store.SearchLimitMax = envInt("SEARCH_LIMIT_MAX", c.Store.SearchLimitMax)

	c.Redis.URL = envString("REDIS_URL", c.Redis.URL)

	c.API.SearchDeadlineMS = envInt("SEARCH_DEADLINE_MS", c.API.SearchDeadlineMS)
	c.API.WriteDeadlineMS = envInt("WRITE_DEADLINE_MS", c.API.WriteDeadlineMS)
	c.API.OverloadThreshold = envInt("OVERLOAD_THRESHOLD", c.API.OverloadThreshold)
	c.API.UserSearchQuota = envInt("USER_SEARCH_QUOTA_PER_DAY", c.API.UserSearchQuota)
	c.API.UserRequestsPerMin = envInt("USER_REQUESTS_PER_MINUTE", c.API.UserRequestsPerMin)
	c.API.SearchDeadline = time.Duration(c.API.SearchDeadlineMS) * time.Millisecond
	c.API.WriteDeadline = time.Duration(c.API.WriteDeadlineMS) * time.Millisecond

	c.Ingest.Tick = envDuration("INGEST_TICK", c.Ingest.Tick)
	c.Ingest.CacheTTL = envDuration("ADAPTER_CACHE_TTL", c.Ingest.CacheTTL)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.File = envString("LOG_FILE", c.Log.File)

	c.SecretsRef = envString("SECRETS_REF", c.SecretsRef)
}

func (c *Config) validate() error {
	if c.Store.DSN == "" {
		return apperr.Configf("DATABASE_URL", "is required")
	}
	if c.Redis.URL == "" {
		return apperr.Configf("REDIS_URL", "is required")
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return apperr.Configf("REDIS_URL", "must start with redis:// or rediss://, got %q", c.Redis.URL)
	}
	if c.Store.PoolSize <= 0 {
		return apperr.Configf("store.pool_size", "must be positive, got %d", c.Store.PoolSize)
	}
	if c.Store.SearchLimitMax <= 0 || c.Store.SearchLimitMax > 1000 {
		return apperr.Configf("store.search_limit_max", "must be between 1 and 1000, got %d", c.Store.SearchLimitMax)
	}
	if c.API.SearchDeadlineMS <= 0 {
		return apperr.Configf("api.search_deadline_ms", "must be positive, got %d", c.API.SearchDeadlineMS)
	}
	if c.API.WriteDeadlineMS <= 0 {
		return apperr.Configf("api.write_deadline_ms", "must be positive, got %d", c.API.WriteDeadlineMS)
	}
	if c.API.OverloadThreshold <= 0 {
		return apperr.Configf("api.overload_threshold", "must be positive, got %d", c.API.OverloadThreshold)
	}
	if c.Ingest.Tick <= 0 {
		return apperr.Configf("INGEST_TICK", "must be positive, got %s", c.Ingest.Tick)
	}
	if c.Ingest.DefaultBudget.Hourly <= 0 || c.Ingest.DefaultBudget.Daily <= 0 {
		return apperr.Configf("providers.default_budget", "must be positive")
	}
	if _, ok := parseLogLevel(c.Log.Level); !ok {
		return apperr.Configf("LOG_LEVEL", "must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if !strings.HasPrefix(c.SecretsRef, "env:") {
		return apperr.Configf("secrets_ref", "unsupported scheme in %q, only env: is available", c.SecretsRef)
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return c.validateMatching()
}

func (c *Config) validateProviders() error {
	seen := make(map[string]bool)
	for i, p := range c.Providers {
		field := "providers[" + strconv.Itoa(i) + "]"
		if !models.IsKnownProvider(p.Name) {
			return apperr.Configf(field+".name", "unknown provider %q", p.Name)
		}
		if seen[p.Name] {
			return apperr.Configf(field+".name", "duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if !p.Enabled {
			continue
		}
		if p.HourlyBudget <= 0 || p.DailyBudget <= 0 {
			return apperr.Configf(field, "hourly_budget and daily_budget must be positive for %s", p.Name)
		}
		if p.Cadence <= 0 {
			return apperr.Configf(field+".cadence", "must be positive for %s", p.Name)
		}
		if len(p.QuerySet) == 0 {
			return apperr.Configf(field+".query_set", "must list at least one query for %s", p.Name)
		}
	}
	return nil
}

func (c *Config) validateMatching() error {
	w := c.Matching.Weights
	for _, v := range []struct {
		name  string
		value float64
	}{{"required", w.Required}, {"preferred", w.Preferred}, {"domain", w.Domain}, {"context", w.Context}} {
		if v.value < 0 {
			return apperr.Configf("matching.weights."+v.name, "must not be negative")
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return apperr.Configf("matching.weights", "must sum to 1.0, got %.6f", w.Sum())
	}
	cl := c.Matching.ExperienceClamps
	if cl.Below <= 0 || cl.Below > 1 || cl.Above <= 0 || cl.Above > 1 {
		return apperr.Configf("matching.experience_clamps", "must be in (0, 1]")
	}
	if c.Matching.SalaryVariation < 0 || c.Matching.SalaryVariation >= 1 {
		return apperr.Configf("matching.salary_variation", "must be in [0, 1)")
	}
	for domain, band := range c.Matching.SalaryTablePerDomain {
		if band.Min <= 0 || band.Max < band.Min {
			return apperr.Configf("matching.salary_table_per_domain."+domain, "needs 0 < min <= max")
		}
	}
	return nil
}

// EnabledProviders returns the enabled providers in configured order.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Provider looks up a provider entry by name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
