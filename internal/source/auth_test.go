package source_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RefreshesWithinBuffer(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	var fetches atomic.Int64
	fetch := func(context.Context) (string, time.Time, error) {
		n := fetches.Add(1)
		return fmt.Sprintf("tok-%d", n), now.Add(time.Hour), nil
	}
	m := source.NewTokenManager("linkedin", fetch, 5*time.Minute, source.WithTokenClock(clock), source.WithTokenTimer(newFakeTimer()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	now = now.Add(54 * time.Minute)
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok, "still outside the refresh buffer")

	now = now.Add(time.Minute)
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.True(t, m.State().Authenticated)
}

func TestTokenManager_RetriesTransientFailures(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(context.Context) (string, time.Time, error) {
		if fetches.Add(1) < 3 {
			return "", time.Time{}, fmt.Errorf("%w: token endpoint 503", apperr.ErrTransientAuth)
		}
		return "tok", time.Now().Add(time.Hour), nil
	}
	timer := newFakeTimer()
	m := source.NewTokenManager("linkedin", fetch, 0, source.WithTokenTimer(timer))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.Delays())
}

func TestTokenManager_PermanentFailureIsNotRetried(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(context.Context) (string, time.Time, error) {
		fetches.Add(1)
		return "", time.Time{}, fmt.Errorf("%w: invalid_client", apperr.ErrAuth)
	}
	m := source.NewTokenManager("linkedin", fetch, 0, source.WithTokenTimer(newFakeTimer()))

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, int64(1), fetches.Load())
	assert.False(t, m.State().Authenticated)
}

func TestTokenManager_ExhaustedTransientFailureSurfaces(t *testing.T) {
	fetch := func(context.Context) (string, time.Time, error) {
		return "", time.Time{}, apperr.ErrTransientAuth
	}
	timer := newFakeTimer()
	m := source.NewTokenManager("linkedin", fetch, 0, source.WithTokenTimer(timer))

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, apperr.ErrTransientAuth)
	assert.Len(t, timer.Delays(), source.RetryMaxAttempts-1)
}

func TestTokenManager_SingleRefreshInFlight(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(context.Context) (string, time.Time, error) {
		fetches.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "tok", time.Now().Add(time.Hour), nil
	}
	m := source.NewTokenManager("linkedin", fetch, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), fetches.Load())
}

func TestTokenManager_InvalidateForcesRefresh(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(context.Context) (string, time.Time, error) {
		fetches.Add(1)
		return "tok", time.Now().Add(time.Hour), nil
	}
	m := source.NewTokenManager("linkedin", fetch, 0)

	_, err := m.Token(context.Background())
	require.NoError(t, err)
	m.Invalidate()
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestClassifyTokenError(t *testing.T) {
	assert.NoError(t, source.ClassifyTokenError("linkedin", nil))
	assert.ErrorIs(t, source.ClassifyTokenError("linkedin", fmt.Errorf("%w: 503", apperr.ErrUpstreamUnavailable)), apperr.ErrTransientAuth)
	assert.ErrorIs(t, source.ClassifyTokenError("linkedin", fmt.Errorf("%w: 401", apperr.ErrAuth)), apperr.ErrAuth)
	assert.ErrorIs(t, source.ClassifyTokenError("linkedin", fmt.Errorf("status 400")), apperr.ErrAuth)
	assert.ErrorIs(t, source.ClassifyTokenError("linkedin", context.Canceled), context.Canceled)
}
