package source_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns whatever the test queues.
type stubProvider struct {
	postings []source.RawPosting
	err      error
	calls    int
	fixture  bool
}

func (p *stubProvider) Name() string      { return "indeed" }
func (p *stubProvider) FixtureMode() bool { return p.fixture }

func (p *stubProvider) Authenticate(context.Context) (source.AuthState, error) {
	return source.AuthState{Authenticated: p.err == nil}, p.err
}

func (p *stubProvider) Search(context.Context, source.SearchRequest) ([]source.RawPosting, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.postings, nil
}

func (p *stubProvider) FetchDetail(context.Context, string) (*source.RawPosting, error) {
	return nil, p.err
}

func (p *stubProvider) Normalize(raw source.RawPosting) (*models.Job, error) {
	job := source.NewJob(raw)
	job.Title = source.StringValue(raw.Fields["title"])
	return source.Finish(raw, job)
}

// memCache is an in-memory ResultCache that ignores TTLs; the adapter checks
// freshness itself.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func postings(ids ...string) []source.RawPosting {
	out := make([]source.RawPosting, 0, len(ids))
	for _, id := range ids {
		out = append(out, source.RawPosting{Provider: "indeed", ExternalID: id, Fields: map[string]any{"title": "Analyst " + id}})
	}
	return out
}

func rateLimited() error {
	return fmt.Errorf("search: %w", &apperr.RateLimitedError{Provider: "indeed", RetryAfter: 20 * time.Minute})
}

func TestAdapter_RateLimitedServesFreshCache(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &stubProvider{postings: postings("I1", "I2")}
	a := source.NewAdapter(p, newMemCache(), 30*time.Minute, source.WithAdapterClock(func() time.Time { return now }))
	req := source.SearchRequest{Keywords: "data analyst", Location: "Zurich", Limit: 10}

	got, err := a.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got, 2)

	p.err = rateLimited()
	now = now.Add(10 * time.Minute)
	got, err = a.Search(context.Background(), source.SearchRequest{Keywords: "Data  Analyst", Location: "zurich", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	st := a.Status()
	assert.True(t, st.RateLimited)
	assert.True(t, st.FromCache)
	assert.Equal(t, 20*time.Minute, st.RetryAfter)
}

func TestAdapter_RateLimitedWithoutCacheReturnsEmpty(t *testing.T) {
	p := &stubProvider{err: rateLimited()}
	a := source.NewAdapter(p, newMemCache(), 30*time.Minute)

	got, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x", Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	st := a.Status()
	assert.True(t, st.RateLimited)
	assert.False(t, st.FromCache)
	assert.Equal(t, 20*time.Minute, st.RetryAfter)
}

func TestAdapter_StaleCacheIsIgnored(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &stubProvider{postings: postings("I1")}
	a := source.NewAdapter(p, newMemCache(), 30*time.Minute, source.WithAdapterClock(func() time.Time { return now }))
	req := source.SearchRequest{Keywords: "x", Limit: 5}

	_, err := a.Search(context.Background(), req)
	require.NoError(t, err)

	p.err = rateLimited()
	now = now.Add(31 * time.Minute)
	got, err := a.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, a.Status().FromCache)
}

func TestAdapter_SuccessClearsRateLimitedStatus(t *testing.T) {
	p := &stubProvider{err: rateLimited()}
	a := source.NewAdapter(p, nil, 0)

	_, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	require.NoError(t, err)
	require.True(t, a.Status().RateLimited)

	p.err = nil
	p.postings = postings("I1")
	_, err = a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	require.NoError(t, err)
	assert.False(t, a.Status().RateLimited)
}

func TestAdapter_AuthErrorDisablesUntilEnabled(t *testing.T) {
	p := &stubProvider{err: fmt.Errorf("%w: status 401", apperr.ErrAuth)}
	a := source.NewAdapter(p, nil, 0)

	_, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.True(t, a.Status().Disabled)

	p.err = nil
	p.postings = postings("I1")
	_, err = a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, 1, p.calls, "disabled adapter must not call the provider")

	a.Enable()
	got, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAdapter_UpstreamErrorIsReturned(t *testing.T) {
	p := &stubProvider{err: fmt.Errorf("%w: status 503", apperr.ErrUpstreamUnavailable)}
	a := source.NewAdapter(p, newMemCache(), time.Minute)

	_, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	st := a.Status()
	assert.False(t, st.Disabled)
	assert.Contains(t, st.LastError, "503")
}

func TestAdapter_TruncatesToLimit(t *testing.T) {
	p := &stubProvider{postings: postings("I1", "I2", "I3")}
	a := source.NewAdapter(p, nil, 0)

	got, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAdapter_FixtureResultsAreNotCached(t *testing.T) {
	c := newMemCache()
	p := &stubProvider{postings: postings("fixture-1"), fixture: true}
	a := source.NewAdapter(p, c, time.Hour)

	_, err := a.Search(context.Background(), source.SearchRequest{Keywords: "x"})
	require.NoError(t, err)
	assert.Empty(t, c.data)
	assert.True(t, a.Status().FixtureMode)
}
