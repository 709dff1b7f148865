package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/api/response"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	response.JSON(w, map[string]string{"name": "test"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "test", data["name"])
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, map[string]string{"interaction_id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "abc", data["interaction_id"])
}

func TestCollection(t *testing.T) {
	w := httptest.NewRecorder()
	items := []map[string]string{{"id": "1"}, {"id": "2"}}

	response.Collection(w, items, response.PaginationMeta{Limit: 2, Total: 50, NextCursor: "bzoy"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"].([]any), 2)

	m := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), m["limit"])
	assert.Equal(t, float64(50), m["total"])
	assert.Equal(t, "bzoy", m["next_cursor"])
	assert.Equal(t, true, m["has_next"])
}

func TestCollection_LastPage(t *testing.T) {
	w := httptest.NewRecorder()
	response.Collection(w, []string{}, response.PaginationMeta{Limit: 20, Total: 0})

	m := decode(t, w)["meta"].(map[string]any)
	assert.Equal(t, false, m["has_next"])
	_, hasCursor := m["next_cursor"]
	assert.False(t, hasCursor)
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid params", map[string][]string{
		"limit": {"must be a number"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	errObj := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_FILTER", errObj["code"])
	assert.Equal(t, "Invalid params", errObj["message"])
	assert.NotNil(t, errObj["details"])
}

func TestError_NoDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, "UNKNOWN_JOB", "Not found", nil)

	errObj := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "UNKNOWN_JOB", errObj["code"])
	_, hasDetails := errObj["details"]
	assert.False(t, hasDetails)
}

func TestFromError_ClassifiedKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("record: %w", apperr.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{fmt.Errorf("get: %w", apperr.ErrUnknownJob), http.StatusNotFound, "UNKNOWN_JOB"},
		{apperr.ErrProfileInvalid, http.StatusBadRequest, "PROFILE_INVALID"},
		{apperr.ErrOverloaded, http.StatusServiceUnavailable, "OVERLOADED"},
		{apperr.ErrQuotaExceeded, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		response.FromError(w, tt.err)

		assert.Equal(t, tt.status, w.Code, tt.code)
		errObj := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, tt.code, errObj["code"])
		assert.Equal(t, tt.err.Error(), errObj["message"])
	}
}

func TestFromError_RateLimitedSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	response.FromError(w, &apperr.RateLimitedError{Provider: "indeed", RetryAfter: 1500 * time.Millisecond})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	details := decode(t, w)["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, float64(2), details["retry_after_seconds"])
}

func TestFromError_InternalHidesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	response.FromError(w, errors.New("pq: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errObj := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errObj["code"])
	assert.NotContains(t, errObj["message"], "10.0.0.3")
}

func TestFromError_InfrastructureHidesMessage(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("search jobs: %w: dial tcp 10.0.0.3:5432: connect: connection refused", apperr.ErrStoreUnavailable),
			http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{fmt.Errorf("indeed: %w: dial tcp 10.0.0.4:443: i/o timeout", apperr.ErrUpstreamUnavailable),
			http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{fmt.Errorf("token endpoint https://10.0.0.5/oauth: %w", apperr.ErrAuth), http.StatusBadGateway, "AUTH_ERROR"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		response.FromError(w, tt.err)

		assert.Equal(t, tt.status, w.Code, tt.code)
		errObj := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, tt.code, errObj["code"])
		assert.NotEmpty(t, errObj["message"])
		assert.NotContains(t, errObj["message"], "10.0.0.")
		assert.NotContains(t, errObj["message"], "dial tcp")
	}
}
