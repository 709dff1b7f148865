package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/cache"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// ResultCache is the slice of cache.Cache the adapter guard needs.
type ResultCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

type cachedResult struct {
	StoredAt time.Time    `json:"stored_at"`
	Postings []RawPosting `json:"postings"`
}

// Adapter wraps a Provider with the behaviour every variant shares: the
// rate-limit fallback to the last cached result, disabling on permanent auth
// failure, and an operator-visible status.
type Adapter struct {
	provider Provider
	cache    ResultCache
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	status Status
}

type AdapterOption func(*Adapter)

func WithAdapterClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter guards p. c may be nil, in which case a denied search always
// returns the empty list.
func NewAdapter(p Provider, c ResultCache, ttl time.Duration, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider: p,
		cache:    c,
		ttl:      ttl,
		now:      time.Now,
		status:   Status{Provider: p.Name(), FixtureMode: p.FixtureMode()},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.provider.Name() }

func (a *Adapter) FixtureMode() bool { return a.provider.FixtureMode() }

func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Disable stops the adapter until Enable is called.
func (a *Adapter) Disable(reason error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Disabled = true
	if reason != nil {
		a.status.LastError = reason.Error()
	}
}

func (a *Adapter) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Disabled = false
	a.status.LastError = ""
}

func (a *Adapter) disabledErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.status.Disabled {
		return nil
	}
	return fmt.Errorf("%w: %s is disabled: %s", apperr.ErrAuth, a.status.Provider, a.status.LastError)
}

// observe records the outcome of a provider call. ErrAuth disables the
// adapter.
func (a *Adapter) observe(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		a.status.LastError = ""
		return
	}
	a.status.LastError = err.Error()
	if errors.Is(err, apperr.ErrAuth) {
		a.status.Disabled = true
		slog.Error("provider disabled after authentication failure", "provider", a.status.Provider, "error", err)
	}
}

func (a *Adapter) Authenticate(ctx context.Context) (AuthState, error) {
	if err := a.disabledErr(); err != nil {
		return AuthState{}, err
	}
	state, err := a.provider.Authenticate(ctx)
	a.observe(err)
	return state, err
}

// Search runs the provider search. When the provider is rate limited the
// last cached result for the same keywords and location is returned if it
// is younger than the TTL; otherwise the result is empty and Status reports
// RateLimited with the wait. Neither case is an error.
func (a *Adapter) Search(ctx context.Context, req SearchRequest) ([]RawPosting, error) {
	if err := a.disabledErr(); err != nil {
		return nil, err
	}

	postings, err := a.provider.Search(ctx, req)
	if err == nil {
		if req.Limit > 0 && len(postings) > req.Limit {
			postings = postings[:req.Limit]
		}
		a.mu.Lock()
		a.status.RateLimited = false
		a.status.RetryAfter = 0
		a.status.FromCache = false
		a.status.LastError = ""
		a.mu.Unlock()
		a.store(ctx, req, postings)
		return postings, nil
	}

	wait, limited := apperr.RetryAfter(err)
	if !limited {
		a.observe(err)
		return nil, err
	}

	cached, ok := a.load(ctx, req)
	a.mu.Lock()
	a.status.RateLimited = true
	a.status.RetryAfter = wait
	a.status.FromCache = ok
	a.mu.Unlock()

	if ok {
		slog.Info("provider rate limited, serving cached result",
			"provider", a.Name(), "retry_after", wait.String(), "postings", len(cached))
		return cached, nil
	}
	slog.Warn("provider rate limited, no cached result",
		"provider", a.Name(), "retry_after", wait.String())
	return []RawPosting{}, nil
}

func (a *Adapter) store(ctx context.Context, req SearchRequest, postings []RawPosting) {
	if a.cache == nil || a.ttl <= 0 || a.provider.FixtureMode() {
		return
	}
	data, err := json.Marshal(cachedResult{StoredAt: a.now().UTC(), Postings: postings})
	if err != nil {
		slog.Warn("failed to encode adapter result", "provider", a.Name(), "error", err)
		return
	}
	key := cache.AdapterResultKey(a.Name(), req.Keywords, req.Location)
	if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
		slog.Warn("failed to cache adapter result", "provider", a.Name(), "error", err)
	}
}

func (a *Adapter) load(ctx context.Context, req SearchRequest) ([]RawPosting, bool) {
	if a.cache == nil || a.ttl <= 0 {
		return nil, false
	}
	key := cache.AdapterResultKey(a.Name(), req.Keywords, req.Location)
	data, found, err := a.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to read cached adapter result", "provider", a.Name(), "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var res cachedResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	if a.now().Sub(res.StoredAt) >= a.ttl {
		return nil, false
	}
	postings := res.Postings
	if req.Limit > 0 && len(postings) > req.Limit {
		postings = postings[:req.Limit]
	}
	return postings, true
}

func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (*RawPosting, error) {
	if err := a.disabledErr(); err != nil {
		return nil, err
	}
	raw, err := a.provider.FetchDetail(ctx, externalID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil && !errors.Is(err, apperr.ErrRateLimited) {
		a.observe(err)
	}
	return raw, err
}

func (a *Adapter) Normalize(raw RawPosting) (*models.Job, error) {
	return a.provider.Normalize(raw)
}
