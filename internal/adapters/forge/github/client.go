// Package github provides a resilient GitHub GraphQL client for discovery
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
)

const (
	endpointDefault   = "https://api.github.com/graphql"
	defaultTimeout    = 30 * time.Second
	defaultUA         = "issueradar-discovery"
	defaultMaxRetries = 3
	defaultConcurrent = 5
	defaultPageSize   = 100
)

// Options configures the Client
type Options struct {
	Endpoint  string
	Token     string
	UserAgent string

	// Per-request timeout; a timed out page is retried
	Timeout time.Duration

	// Retry attempts per page before the page is dropped
	MaxRetries int

	// Process-wide cap on in-flight forge requests
	MaxConcurrent int64

	// Quota shape used to derive the limiter's minimum spacing
	QuotaWindow time.Duration
	QuotaLimit  int
}

// Client executes parameterized graph queries against the forge endpoint
// with retries, pagination, and rate-limit awareness
type Client struct {
	http  *http.Client
	opts  Options
	lim   *Limiter
	sem   *semaphore.Weighted
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.Endpoint == "" {
		o.Endpoint = endpointDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultConcurrent
	}
	if o.QuotaWindow <= 0 {
		o.QuotaWindow = time.Hour
	}
	if o.QuotaLimit <= 0 {
		o.QuotaLimit = 5000
	}
	return &Client{
		http:  &http.Client{},
		opts:  o,
		lim:   NewLimiter(o.QuotaWindow, o.QuotaLimit),
		sem:   semaphore.NewWeighted(o.MaxConcurrent),
		log:   *logger.Named("forge"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Limiter exposes the client's rate limiter for stats surfaces
func (c *Client) Limiter() *Limiter { return c.lim }

// Close releases pooled connections. Safe to call once on shutdown
func (c *Client) Close() { c.http.CloseIdleConnections() }

// gqlRequest is the JSON body of a graph query
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// execute runs one graph query with the page retry policy:
// 403 sleeps 60s*(attempt+1), 5xx and transport errors sleep 5s*(attempt+1),
// other 4xx fail immediately. Decodes the data envelope into out.
// The request itself is detached from ctx cancellation so an in-flight page
// completes during drain; ctx is consulted between attempts
func (c *Client) execute(ctx context.Context, query string, vars map[string]any, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "forge marshal request failed")
	}

	var last error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.lim.Acquire(ctx); err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
		resp, lat, err := c.post(reqCtx, body)
		cancel()

		if err != nil {
			c.lim.Failure()
			last = perr.Wrapf(err, perr.ErrorCodeUnavailable, "forge transport error")
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("forge transport error retrying")
			if se := c.sleep(ctx, transientWait(attempt)); se != nil {
				return se
			}
			continue
		}

		rem, reset := parseRateHeaders(resp.Header)
		c.log.Debug().
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", lat).
			Int("rate_remaining", rem).
			Time("rate_reset", reset).
			Msg("forge http response")

		switch {
		case resp.StatusCode == http.StatusOK:
			env, derr := decodeEnvelope(resp.Body)
			if derr != nil {
				c.lim.Failure()
				last = derr
				if se := c.sleep(ctx, transientWait(attempt)); se != nil {
					return se
				}
				continue
			}
			if rem >= 0 {
				c.lim.Update(rem, reset)
			}
			c.lim.Success()
			// partial errors with data present are logged and tolerated
			for _, ge := range env.Errors {
				c.log.Warn().Str("type", ge.Type).Str("message", ge.Message).Msg("forge partial error")
			}
			if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
				return perr.Newf(perr.ErrorCodeUnknown, "forge empty data")
			}
			if err := json.Unmarshal(env.Data, out); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeJSON, "forge decode data failed")
			}
			return nil

		case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
			drainAndClose(resp.Body)
			c.lim.Failure()
			if rem >= 0 {
				c.lim.Update(rem, reset)
			}
			last = perr.Newf(perr.ErrorCodeTooManyRequests, "forge rate limited status %d", resp.StatusCode)
			wait := rateLimitWait(attempt)
			c.log.Warn().Dur("sleep", wait).Int("attempt", attempt).Msg("forge rate limited backing off")
			if se := c.sleep(ctx, wait); se != nil {
				return se
			}
			continue

		case resp.StatusCode >= 500:
			drainAndClose(resp.Body)
			c.lim.Failure()
			last = perr.Newf(perr.ErrorCodeUnavailable, "forge server error status %d", resp.StatusCode)
			c.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("forge transient error retrying")
			if se := c.sleep(ctx, transientWait(attempt)); se != nil {
				return se
			}
			continue

		default:
			// non-403 4xx is terminal for the page
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return perr.Newf(perr.ErrorCodeInvalidArgument,
				"forge unexpected status %d body %s", resp.StatusCode, string(tail))
		}
	}
	if last == nil {
		last = perr.Newf(perr.ErrorCodeUnavailable, "forge retries exhausted")
	}
	return last
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	start := c.now()
	resp, err := c.http.Do(req)
	return resp, c.now().Sub(start), err
}

func decodeEnvelope(rc io.ReadCloser) (gqlEnvelope, error) {
	defer func() { _ = rc.Close() }()
	var env gqlEnvelope
	b, err := io.ReadAll(io.LimitReader(rc, 8<<20))
	if err != nil {
		return env, perr.Wrapf(err, perr.ErrorCodeUnavailable, "forge read body failed")
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, perr.Wrapf(err, perr.ErrorCodeJSON, "forge decode envelope failed")
	}
	return env, nil
}
