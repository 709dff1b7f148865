package source

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
)

// Retry policy shared by auth refresh and upstream calls.
const (
	RetryBase        = time.Second
	RetryCap         = 30 * time.Second
	RetryMaxAttempts = 5
)

// NewBackOff returns the capped exponential policy: 1s, 2s, 4s, 8s between
// the five attempts, never more than 30s, no jitter.
func NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = RetryBase
	eb.MaxInterval = RetryCap
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithMaxRetries(eb, RetryMaxAttempts-1)
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, apperr.ErrTransientAuth) || errors.Is(err, apperr.ErrUpstreamUnavailable)
}

// retry runs op under the shared policy. Non-retryable errors stop at once.
// timer may be nil.
func retry(ctx context.Context, timer backoff.Timer, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithContext(NewBackOff(), ctx)
	err := backoff.RetryNotifyWithTimer(wrapped, b, nil, timer)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
