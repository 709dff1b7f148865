package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/api"
	mw "github.com/kiranshivaraju/jobhunter/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub counter ---

type stubCounter struct{ n int64 }

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.n++
	return c.n, nil
}

// --- router tests ---

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"data":{}}`))
}

func newTestRouter(rl *mw.RateLimit) http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit:     rl,
		HealthHandler: ok,
		SearchHandler: ok,
		GetJobHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"data":{"route":"get_job"}}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UserEndpoints_RequireUser(t *testing.T) {
	router := newTestRouter(nil)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/jobs/search"},
		{"GET", "/api/v1/jobs/7f7e54c2-5d0e-4a4e-9a8e-1f0a3b3c2d1e"},
		{"POST", "/api/v1/match"},
		{"POST", "/api/v1/interactions"},
		{"GET", "/api/v1/me/jobs"},
		{"GET", "/api/v1/me/pipeline"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "MISSING_USER", errObj["code"])
		})
	}
}

func TestRouter_SearchIsNotAJobID(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/jobs/search?keywords=analyst", nil)
	req.Header.Set(mw.UserHeader, "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "get_job")
}

func TestRouter_UnwiredHandlerIsNotImplemented(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/me/pipeline", nil)
	req.Header.Set(mw.UserHeader, "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_RateLimitAppliesPerUser(t *testing.T) {
	router := newTestRouter(mw.NewRateLimit(&stubCounter{}, 1))

	first := httptest.NewRequest("GET", "/api/v1/jobs/search", nil)
	first.Header.Set(mw.UserHeader, "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest("GET", "/api/v1/jobs/search", nil)
	second.Header.Set(mw.UserHeader, "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
