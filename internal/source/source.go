// Package source holds the provider adapter capability set and the plumbing
// every concrete provider shares: the rate-limited HTTP client, token
// refresh with backoff, the cache-backed search guard and normalization
// helpers.
package source

import (
	"context"
	"time"

	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// RawPosting is one posting in the provider's own shape.
type RawPosting struct {
	Provider   string         `json:"provider"`
	ExternalID string         `json:"external_id"`
	Fields     map[string]any `json:"fields"`
	Fixture    bool           `json:"fixture,omitempty"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

// SearchRequest is the provider-independent search input. URLs lists the
// pages to crawl for providers that read career sites.
type SearchRequest struct {
	Keywords string
	Location string
	Filters  map[string]string
	Limit    int
	URLs     []string
}

// AuthState describes the credential an adapter currently holds.
type AuthState struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Fixture       bool      `json:"fixture"`
}

// Provider is implemented by each concrete source variant.
type Provider interface {
	Name() string
	// FixtureMode reports whether the provider runs without credentials and
	// serves the labeled fixture set instead of calling the network.
	FixtureMode() bool
	Authenticate(ctx context.Context) (AuthState, error)
	// Search returns at most req.Limit postings.
	Search(ctx context.Context, req SearchRequest) ([]RawPosting, error)
	// FetchDetail returns nil, nil when the provider does not know the id.
	FetchDetail(ctx context.Context, externalID string) (*RawPosting, error)
	// Normalize maps a raw posting to the canonical record. It is pure.
	Normalize(raw RawPosting) (*models.Job, error)
}

// Limiter is the slice of the rate limiter an HTTP client needs.
type Limiter interface {
	Acquire(ctx context.Context, provider string) (models.RateLimitWindow, error)
}

// Status is the operator-facing state of one adapter.
type Status struct {
	Provider    string        `json:"provider"`
	FixtureMode bool          `json:"fixture_mode"`
	Disabled    bool          `json:"disabled"`
	RateLimited bool          `json:"rate_limited"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
	FromCache   bool          `json:"from_cache,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}
