package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestCode_WrappedSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("record: %w", apperr.ErrInvalidTransition), "INVALID_TRANSITION"},
		{fmt.Errorf("get: %w", apperr.ErrUnknownJob), "UNKNOWN_JOB"},
		{apperr.Configf("providers[0].hourly_budget", "must be positive"), "CONFIG_ERROR"},
		{&apperr.RateLimitedError{Provider: "linkedin", RetryAfter: time.Minute}, "RATE_LIMITED"},
		{fmt.Errorf("search: %w", context.DeadlineExceeded), "DEADLINE_EXCEEDED"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, apperr.Code(tt.err), tt.err.Error())
	}
	assert.Equal(t, "", apperr.Code(nil))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, apperr.ExitCode(nil))
	assert.Equal(t, 2, apperr.ExitCode(apperr.Configf("store.dsn", "is required")))
	assert.Equal(t, 3, apperr.ExitCode(fmt.Errorf("linkedin: %w", apperr.ErrAuth)))
	assert.Equal(t, 4, apperr.ExitCode(&apperr.RateLimitedError{Provider: "indeed"}))
	assert.Equal(t, 1, apperr.ExitCode(apperr.ErrStoreUnavailable))
	assert.Equal(t, 1, apperr.ExitCode(errors.New("other")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(apperr.ErrInvalidTransition))
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(apperr.ErrUnknownJob))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(apperr.ErrOverloaded))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(errors.New("x")))
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("tick: %w", &apperr.RateLimitedError{Provider: "glassdoor", RetryAfter: 42 * time.Second})
	d, ok := apperr.RetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, d)

	_, ok = apperr.RetryAfter(errors.New("nope"))
	assert.False(t, ok)
}
