// Package ingest drives the source adapters on their cadences and writes
// what they return to the job store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/providers"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/robfig/cron/v3"
)

const (
	defaultTick        = time.Minute
	defaultLimit       = 25
	bookkeepingTimeout = 5 * time.Second
)

// Store is the persistence the scheduler needs.
type Store interface {
	UpsertJob(ctx context.Context, job *models.Job) (uuid.UUID, bool, error)
	ListProviderSyncs(ctx context.Context) ([]*models.ProviderSync, error)
	RecordSyncAttempt(ctx context.Context, provider string, at time.Time, syncErr error) error
	RecordSyncSuccess(ctx context.Context, provider string, at time.Time) error
	QuarantineProvider(ctx context.Context, provider, reason string) error
}

// Limiter answers whether a provider may issue a request now.
type Limiter interface {
	MayRequest(provider string) (bool, time.Duration, error)
}

// Adapter is the guarded source adapter, see source.Adapter.
type Adapter interface {
	Name() string
	Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error)
	Normalize(raw source.RawPosting) (*models.Job, error)
	Status() source.Status
	Enable()
}

// Target binds an adapter to its provider configuration.
type Target struct {
	Adapter Adapter
	Config  config.ProviderConfig
}

// Targets pairs every adapter of reg with its configuration.
func Targets(cfg *config.Config, reg *providers.Registry) []Target {
	var out []Target
	for _, pc := range cfg.EnabledProviders() {
		if a, ok := reg.Get(pc.Name); ok {
			out = append(out, Target{Adapter: a, Config: pc})
		}
	}
	return out
}

// Result summarizes one provider run.
type Result struct {
	Provider    string        `json:"provider"`
	Fetched     int           `json:"fetched"`
	Created     int           `json:"created"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	RateLimited bool          `json:"rate_limited"`
	FromCache   bool          `json:"from_cache"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

type Scheduler struct {
	store        Store
	limiter      Limiter
	targets      map[string]Target
	names        []string
	tick         time.Duration
	defaultLimit int
	now          func() time.Time

	cron *cron.Cron
	wg   sync.WaitGroup

	mu            sync.Mutex
	running       map[string]bool
	sleepUntil    map[string]time.Time
	disabledUntil map[string]time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTick sets how often the cron entry selects a provider.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithDefaultLimit sets the per-query limit for query-set entries without one.
func WithDefaultLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

func New(st Store, limiter Limiter, targets []Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:         st,
		limiter:       limiter,
		targets:       make(map[string]Target, len(targets)),
		tick:          defaultTick,
		defaultLimit:  defaultLimit,
		now:           time.Now,
		running:       make(map[string]bool),
		sleepUntil:    make(map[string]time.Time),
		disabledUntil: make(map[string]time.Time),
	}
	for _, t := range targets {
		name := t.Adapter.Name()
		if _, dup := s.targets[name]; !dup {
			s.names = append(s.names, name)
		}
		s.targets[name] = t
	}
	sort.Strings(s.names)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the tick and starts the cron runner. Runs launched by a
// tick inherit ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))

	spec := fmt.Sprintf("@every %s", s.tick)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	slog.Info("ingest scheduler started", "tick", s.tick.String(), "providers", len(s.names))
	return nil
}

// Stop halts the cron runner and waits for in-flight runs.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	slog.Info("ingest scheduler stopped")
}

// Wait blocks until every run launched by Tick has finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Tick selects at most one eligible provider and runs it in the background
// under a deadline of one cadence. It returns the provider started, or "".
func (s *Scheduler) Tick(ctx context.Context) string {
	t, ok := s.pick(ctx)
	if !ok {
		return ""
	}
	name := t.Adapter.Name()

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return ""
	}
	s.running[name] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, name)
			s.mu.Unlock()
		}()

		runCtx, cancel := context.WithTimeout(ctx, s.cadence(t))
		defer cancel()
		s.run(runCtx, t)
	}()
	return name
}

func (s *Scheduler) cadence(t Target) time.Duration {
	if t.Config.Cadence > 0 {
		return t.Config.Cadence
	}
	return s.tick
}

type candidate struct {
	target   Target
	lastSync *time.Time
}

// pick returns the eligible provider with the oldest successful sync. Never
// synced providers come first; ties break by name.
func (s *Scheduler) pick(ctx context.Context) (Target, bool) {
	syncs, err := s.store.ListProviderSyncs(ctx)
	if err != nil {
		slog.Error("failed to load provider syncs", "error", err)
		return Target{}, false
	}
	byName := make(map[string]*models.ProviderSync, len(syncs))
	for _, ps := range syncs {
		byName[ps.Provider] = ps
	}

	now := s.now()
	var eligible []candidate
	for _, name := range s.names {
		t := s.targets[name]
		ps := byName[name]
		if ps != nil && ps.Quarantined {
			continue
		}
		if t.Adapter.Status().Disabled {
			// released by an operator since the adapter disabled itself
			t.Adapter.Enable()
		}
		if !s.available(name, now) {
			continue
		}
		var last *time.Time
		if ps != nil {
			last = ps.LastSuccessfulSync
		}
		if last != nil && now.Sub(*last) < s.cadence(t) {
			continue
		}
		ok, wait, err := s.limiter.MayRequest(name)
		if err != nil {
			slog.Error("provider budget misconfigured", "provider", name, "error", err)
			continue
		}
		if !ok {
			s.sleep(name, now.Add(wait))
			continue
		}
		eligible = append(eligible, candidate{target: t, lastSync: last})
	}
	if len(eligible) == 0 {
		return Target{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].lastSync, eligible[j].lastSync
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return eligible[0].target, true
}

// available reports whether name is neither running nor sleeping.
func (s *Scheduler) available(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	if until, ok := s.sleepUntil[name]; ok && now.Before(until) {
		return false
	}
	if until, ok := s.disabledUntil[name]; ok && now.Before(until) {
		return false
	}
	return true
}

func (s *Scheduler) sleep(name string, until time.Time) {
	s.mu.Lock()
	s.sleepUntil[name] = until
	s.mu.Unlock()
}

func (s *Scheduler) disable(name string, until time.Time) {
	s.mu.Lock()
	s.disabledUntil[name] = until
	s.mu.Unlock()
}

// RunOnce runs provider, or every configured provider when provider is
// empty, synchronously and regardless of cadence. Quarantined providers are
// skipped. The returned error joins the per-provider failures.
func (s *Scheduler) RunOnce(ctx context.Context, provider string) ([]Result, error) {
	names := s.names
	if provider != "" {
		if _, ok := s.targets[provider]; !ok {
			return nil, apperr.Configf("provider", "%q is not configured or not enabled", provider)
		}
		names = []string{provider}
	}

	syncs, err := s.store.ListProviderSyncs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading provider syncs: %w", err)
	}
	quarantined := make(map[string]string)
	for _, ps := range syncs {
		if ps.Quarantined {
			reason := "quarantined"
			if ps.QuarantineReason != nil {
				reason = *ps.QuarantineReason
			}
			quarantined[ps.Provider] = reason
		}
	}

	var results []Result
	var errs []error
	for _, name := range names {
		if reason, ok := quarantined[name]; ok {
			err := fmt.Errorf("%w: %s is quarantined: %s", apperr.ErrAuth, name, reason)
			results = append(results, Result{Provider: name, Err: err})
			errs = append(errs, err)
			continue
		}
		res := s.run(ctx, s.targets[name])
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}

// run executes the query set of t and upserts every normalized posting.
func (s *Scheduler) run(ctx context.Context, t Target) Result {
	name := t.Adapter.Name()
	start := s.now()
	res := Result{Provider: name}

	reqs := providers.Requests(t.Config, s.defaultLimit)
	if len(reqs) == 0 {
		reqs = []source.SearchRequest{{Limit: s.defaultLimit}}
	}

	var runErr error
	for _, req := range reqs {
		postings, err := t.Adapter.Search(ctx, req)
		if err != nil {
			runErr = err
			break
		}
		st := t.Adapter.Status()
		if st.RateLimited {
			res.RateLimited = true
			res.RetryAfter = st.RetryAfter
			res.FromCache = res.FromCache || st.FromCache
		}

		res.Fetched += len(postings)
		if err := s.upsert(ctx, t.Adapter, postings, &res); err != nil {
			runErr = err
			break
		}
		if st.RateLimited && !st.FromCache {
			// remaining queries would be denied too
			break
		}
	}
	res.Duration = s.now().Sub(start)

	// ctx may be past its deadline; sync bookkeeping still has to land
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	now := s.now()
	switch {
	case runErr != nil:
		res.Err = runErr
		s.fail(ctx, t, runErr, now)
	case res.RateLimited:
		s.sleep(name, now.Add(res.RetryAfter))
		if !res.FromCache {
			res.Err = &apperr.RateLimitedError{Provider: name, RetryAfter: res.RetryAfter}
		}
		s.recordAttempt(ctx, name, now, &apperr.RateLimitedError{Provider: name, RetryAfter: res.RetryAfter})
		slog.Warn("ingest rate limited",
			"provider", name,
			"retry_after", res.RetryAfter.String(),
			"from_cache", res.FromCache,
			"created", res.Created,
			"updated", res.Updated,
		)
	default:
		s.recordAttempt(ctx, name, now, nil)
		if err := s.store.RecordSyncSuccess(ctx, name, now); err != nil {
			slog.Error("failed to record sync success", "provider", name, "error", err)
		}
		slog.Info("ingest completed",
			"provider", name,
			"fetched", res.Fetched,
			"created", res.Created,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}

func (s *Scheduler) upsert(ctx context.Context, a Adapter, postings []source.RawPosting, res *Result) error {
	for _, raw := range postings {
		job, err := a.Normalize(raw)
		if err != nil {
			res.Skipped++
			slog.Debug("skipping posting", "provider", a.Name(), "external_id", raw.ExternalID, "error", err)
			continue
		}
		_, created, err := s.store.UpsertJob(ctx, job)
		if err != nil {
			if errors.Is(err, apperr.ErrStoreUnavailable) || ctx.Err() != nil {
				return fmt.Errorf("upserting %s/%s: %w", a.Name(), raw.ExternalID, err)
			}
			res.Skipped++
			slog.Warn("failed to upsert posting", "provider", a.Name(), "external_id", raw.ExternalID, "error", err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return nil
}

// fail applies the error policy: authentication failures quarantine the
// provider, exhausted upstream failures disable it for one cadence.
func (s *Scheduler) fail(ctx context.Context, t Target, err error, now time.Time) {
	name := t.Adapter.Name()
	s.recordAttempt(ctx, name, now, err)

	switch {
	case errors.Is(err, apperr.ErrAuth):
		if qerr := s.store.QuarantineProvider(ctx, name, err.Error()); qerr != nil {
			slog.Error("failed to quarantine provider", "provider", name, "error", qerr)
		}
		slog.Error("provider quarantined", "provider", name, "error", err)
	case errors.Is(err, apperr.ErrUpstreamUnavailable), errors.Is(err, apperr.ErrTransientAuth):
		until := now.Add(s.cadence(t))
		s.disable(name, until)
		slog.Warn("provider disabled for one cadence", "provider", name, "until", until, "error", err)
	default:
		slog.Error("ingest failed", "provider", name, "error", err)
	}
}

func (s *Scheduler) recordAttempt(ctx context.Context, name string, at time.Time, err error) {
	if rerr := s.store.RecordSyncAttempt(ctx, name, at, err); rerr != nil {
		slog.Error("failed to record sync attempt", "provider", name, "error", rerr)
	}
}
