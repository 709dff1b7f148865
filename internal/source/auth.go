package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
)

const DefaultRefreshBuffer = 300 * time.Second

// TokenFetcher exchanges credentials for a token. It returns
// apperr.ErrTransientAuth for failures worth retrying and apperr.ErrAuth
// for rejected credentials.
type TokenFetcher func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenManager caches one bearer token and refreshes it when it is within
// buffer of expiry. At most one refresh is in flight.
type TokenManager struct {
	provider string
	fetch    TokenFetcher
	buffer   time.Duration
	now      func() time.Time
	timer    backoff.Timer

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type TokenOption func(*TokenManager)

func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

func WithTokenTimer(t backoff.Timer) TokenOption {
	return func(m *TokenManager) { m.timer = t }
}

func NewTokenManager(provider string, fetch TokenFetcher, buffer time.Duration, opts ...TokenOption) *TokenManager {
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	m := &TokenManager{
		provider: provider,
		fetch:    fetch,
		buffer:   buffer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid token, refreshing first when needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt.Add(-m.buffer)) {
		return m.token, nil
	}

	var (
		token     string
		expiresAt time.Time
	)
	err := retry(ctx, m.timer, func() error {
		var err error
		token, expiresAt, err = m.fetch(ctx)
		return err
	})
	if err != nil {
		m.token = ""
		return "", fmt.Errorf("%s: refreshing token: %w", m.provider, err)
	}
	m.token = token
	m.expiresAt = expiresAt
	return token, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

func (m *TokenManager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AuthState{Authenticated: m.token != "", ExpiresAt: m.expiresAt}
}

// ClassifyTokenError maps a token endpoint failure for a TokenFetcher:
// upstream trouble is transient, a rejected request is permanent.
func ClassifyTokenError(provider string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrAuth), errors.Is(err, apperr.ErrRateLimited):
		return err
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		return fmt.Errorf("%w: %s: %v", apperr.ErrTransientAuth, provider, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", apperr.ErrAuth, provider, err)
	}
}
