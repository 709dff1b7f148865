// Package apperr defines the error kinds shared by every component and the
// stable codes, HTTP statuses and exit codes they map to.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrConfig              = errors.New("configuration error")
	ErrAuth                = errors.New("upstream authentication failed")
	ErrTransientAuth       = errors.New("upstream authentication temporarily failed")
	ErrRateLimited         = errors.New("provider rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUnknownJob          = errors.New("unknown job")
	ErrProfileInvalid      = errors.New("profile invalid")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrOverloaded          = errors.New("overloaded")
	ErrQuotaExceeded       = errors.New("search quota exceeded")
)

// ConfigError names the offending setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Configf builds a ConfigError for field.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RateLimitedError carries the wait until the tighter bucket rolls over.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider %s rate limited, retry after %s", e.Provider, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfter extracts the wait from a rate-limit error anywhere in the chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

type kind struct {
	err    error
	code   string
	status int
	exit   int
}

var kinds = []kind{
	{ErrConfig, "CONFIG_ERROR", http.StatusInternalServerError, 2},
	{ErrAuth, "AUTH_ERROR", http.StatusBadGateway, 3},
	{ErrTransientAuth, "TRANSIENT_AUTH_ERROR", http.StatusBadGateway, 3},
	{ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests, 4},
	{ErrUpstreamUnavailable, "UPSTREAM_UNAVAILABLE", http.StatusBadGateway, 1},
	{ErrStoreUnavailable, "STORE_UNAVAILABLE", http.StatusServiceUnavailable, 1},
	{ErrUnknownJob, "UNKNOWN_JOB", http.StatusNotFound, 1},
	{ErrProfileInvalid, "PROFILE_INVALID", http.StatusBadRequest, 1},
	{ErrInvalidFilter, "INVALID_FILTER", http.StatusBadRequest, 1},
	{ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict, 1},
	{ErrOverloaded, "OVERLOADED", http.StatusServiceUnavailable, 1},
	{ErrQuotaExceeded, "QUOTA_EXCEEDED", http.StatusTooManyRequests, 1},
	{context.DeadlineExceeded, "DEADLINE_EXCEEDED", http.StatusGatewayTimeout, 1},
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// ExitCode maps err to the CLI exit code: 0 ok, 2 config, 3 auth,
// 4 rate limited without fallback, 1 anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if k, ok := lookup(err); ok {
		return k.exit
	}
	return 1
}
