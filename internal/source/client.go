package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "jobhunter/1.0 (+https://github.com/kiranshivaraju/jobhunter)"
)

// Client is the HTTP client every networked provider uses. It takes a
// rate-limit token before each round trip and retries upstream failures.
type Client struct {
	provider string
	limiter  Limiter
	http     *http.Client
	timer    backoff.Timer
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimer replaces the backoff timer, letting tests skip real waits.
func WithTimer(t backoff.Timer) ClientOption {
	return func(c *Client) { c.timer = t }
}

// NewClient creates a client for provider. A nil limiter disables
// accounting, which only tests should do.
func NewClient(provider string, limiter Limiter, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		provider: provider,
		limiter:  limiter,
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timer exposes the configured backoff timer to token managers.
func (c *Client) Timer() backoff.Timer { return c.timer }

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, target string, header http.Header, out any) error {
	return retry(ctx, c.timer, func() error {
		body, err := c.roundTrip(ctx, http.MethodGet, target, header, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding %s response: %v", apperr.ErrUpstreamUnavailable, c.provider, err)
		}
		return nil
	})
}

// GetDocument issues a GET and parses the body as HTML.
func (c *Client) GetDocument(ctx context.Context, target string, header http.Header) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry(ctx, c.timer, func() error {
		body, err := c.roundTrip(ctx, http.MethodGet, target, header, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		doc, err = goquery.NewDocumentFromReader(io.LimitReader(body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("%w: parsing %s page: %v", apperr.ErrUpstreamUnavailable, c.provider, err)
		}
		return nil
	})
	return doc, err
}

// PostForm issues a single form POST without retrying; token managers own
// the retry policy for credential exchanges.
func (c *Client) PostForm(ctx context.Context, target string, form url.Values, out any) error {
	header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	body, err := c.roundTrip(ctx, http.MethodPost, target, header, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", apperr.ErrUpstreamUnavailable, c.provider, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, header http.Header, body io.Reader) (io.ReadCloser, error) {
	if c.limiter != nil {
		if _, err := c.limiter.Acquire(ctx, c.provider); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classifyError(ctx, err)
	}
	if err := c.classifyStatus(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// classifyError maps transport-level errors to the error taxonomy. A client
// timeout is an upstream failure; the caller's own deadline is not.
func (c *Client) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: timeout: %v", apperr.ErrUpstreamUnavailable, c.provider, err)
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrUpstreamUnavailable, c.provider, err)
}

func (c *Client) classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d", apperr.ErrAuth, c.provider, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &apperr.RateLimitedError{Provider: c.provider, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s: status %d", ErrNotFound, c.provider, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s: status %d", apperr.ErrUpstreamUnavailable, c.provider, resp.StatusCode)
	default:
		return fmt.Errorf("%s: unexpected status %d", c.provider, resp.StatusCode)
	}
}

// ErrNotFound is returned for a 404 from a provider.
var ErrNotFound = errors.New("not found upstream")

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Minute
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return time.Minute
}
