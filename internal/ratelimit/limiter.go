// Package ratelimit enforces per-provider hourly and daily request budgets.
// Buckets are aligned to the UTC hour and the UTC day and rotate lazily on
// access; there are no background timers.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// Budget is the request allowance of one provider.
type Budget struct {
	Hourly int
	Daily  int
}

func (b Budget) valid() bool { return b.Hourly > 0 && b.Daily > 0 }

// StateStore persists bucket counters so they survive restarts.
type StateStore interface {
	LoadRateLimitState(ctx context.Context) ([]models.RateLimitWindow, error)
	SaveRateLimitState(ctx context.Context, w models.RateLimitWindow) error
}

// Limiter holds one bucket per provider, each behind its own mutex.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	budgets  map[string]Budget
	fallback Budget
	now      func() time.Time
	state    StateStore
}

type bucket struct {
	mu        sync.Mutex
	provider  string
	budget    Budget
	hourStart time.Time
	dayStart  time.Time
	hourUsed  int
	dayUsed   int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithStateStore enables persistence of counters after every accepted request.
func WithStateStore(s StateStore) Option {
	return func(l *Limiter) { l.state = s }
}

// New creates a Limiter. Providers missing from budgets get fallback.
func New(budgets map[string]Budget, fallback Budget, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		budgets:  make(map[string]Budget, len(budgets)),
		fallback: fallback,
		now:      time.Now,
	}
	for name, b := range budgets {
		l.budgets[name] = b
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Validate returns a ConfigError for the first non-positive budget.
func (l *Limiter) Validate() error {
	names := make([]string, 0, len(l.budgets))
	for name := range l.budgets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !l.budgets[name].valid() {
			return misconfigured(name, l.budgets[name])
		}
	}
	if !l.fallback.valid() {
		return misconfigured("default", l.fallback)
	}
	return nil
}

func misconfigured(provider string, b Budget) error {
	return apperr.Configf("providers."+provider+".budget",
		"hourly and daily budgets must be positive, got hourly=%d daily=%d", b.Hourly, b.Daily)
}

// Restore re-hydrates counters from the state store. Windows whose buckets
// have already elapsed are ignored by the next rotation.
func (l *Limiter) Restore(ctx context.Context) error {
	if l.state == nil {
		return nil
	}
	windows, err := l.state.LoadRateLimitState(ctx)
	if err != nil {
		return fmt.Errorf("load rate limit state: %w", err)
	}
	for _, w := range windows {
		b := l.bucketFor(w.Provider)
		b.mu.Lock()
		b.hourStart = w.HourBucket.UTC()
		b.dayStart = w.DayBucket.UTC()
		b.hourUsed = w.HourlyUsed
		b.dayUsed = w.DailyUsed
		b.mu.Unlock()
	}
	return nil
}

func (l *Limiter) bucketFor(provider string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[provider]
	if !ok {
		budget, known := l.budgets[provider]
		if !known {
			budget = l.fallback
		}
		b = &bucket{provider: provider, budget: budget}
		l.buckets[provider] = b
	}
	return b
}

// MayRequest reports whether provider may issue a request now. When denied,
// retryAfter is the time until the blocking bucket rolls over. A non-positive
// budget is never allowed and yields a ConfigError.
func (l *Limiter) MayRequest(provider string) (bool, time.Duration, error) {
	b := l.bucketFor(provider)
	now := l.now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.budget.valid() {
		return false, 0, misconfigured(provider, b.budget)
	}
	b.rotate(now)
	ok, wait := b.check(now)
	return ok, wait, nil
}

// RecordRequest counts one outgoing request. It refuses, with a
// RateLimitedError, a request that would exceed either budget.
func (l *Limiter) RecordRequest(ctx context.Context, provider string) error {
	_, err := l.Acquire(ctx, provider)
	return err
}

// Acquire checks and records atomically with respect to other callers for
// the same provider. A denial is returned as *apperr.RateLimitedError.
func (l *Limiter) Acquire(ctx context.Context, provider string) (models.RateLimitWindow, error) {
	b := l.bucketFor(provider)
	now := l.now().UTC()

	b.mu.Lock()
	if !b.budget.valid() {
		b.mu.Unlock()
		return models.RateLimitWindow{}, misconfigured(provider, b.budget)
	}
	b.rotate(now)
	ok, wait := b.check(now)
	if !ok {
		snap := b.snapshot()
		b.mu.Unlock()
		return snap, &apperr.RateLimitedError{Provider: provider, RetryAfter: wait}
	}
	b.hourUsed++
	b.dayUsed++
	snap := b.snapshot()
	b.mu.Unlock()

	if l.state != nil {
		if err := l.state.SaveRateLimitState(ctx, snap); err != nil {
			slog.Warn("persist rate limit state failed", "provider", provider, "error", err)
		}
	}
	return snap, nil
}

// Snapshot returns the current window of provider after rotation.
func (l *Limiter) Snapshot(provider string) models.RateLimitWindow {
	b := l.bucketFor(provider)
	now := l.now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotate(now)
	return b.snapshot()
}

func (b *bucket) rotate(now time.Time) {
	hour := now.Truncate(time.Hour)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !b.hourStart.Equal(hour) {
		b.hourStart = hour
		b.hourUsed = 0
	}
	if !b.dayStart.Equal(day) {
		b.dayStart = day
		b.dayUsed = 0
	}
}

func (b *bucket) check(now time.Time) (bool, time.Duration) {
	hourFull := b.hourUsed >= b.budget.Hourly
	dayFull := b.dayUsed >= b.budget.Daily
	if !hourFull && !dayFull {
		return true, 0
	}
	var wait time.Duration
	if hourFull {
		wait = b.hourStart.Add(time.Hour).Sub(now)
	}
	if dayFull {
		if d := b.dayStart.AddDate(0, 0, 1).Sub(now); d > wait {
			wait = d
		}
	}
	return false, wait
}

func (b *bucket) snapshot() models.RateLimitWindow {
	return models.RateLimitWindow{
		Provider:     b.provider,
		HourlyBudget: b.budget.Hourly,
		DailyBudget:  b.budget.Daily,
		HourBucket:   b.hourStart,
		DayBucket:    b.dayStart,
		HourlyUsed:   b.hourUsed,
		DailyUsed:    b.dayUsed,
	}
}
