package github

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	headerUsed      = "X-RateLimit-Used"
	headerRetry     = "Retry-After"

	// rateLimitSlack is added to the reset time to compensate the clock skew.
	rateLimitSlack = time.Second
	// DefaultSecondaryWait is used for the secondary rate limits without Retry-After.
	DefaultSecondaryWait = time.Minute
)

// RateLimit is the snapshot of the REST API quota.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	Reset     time.Time
	// Known is false until the first response with the quota headers arrives.
	Known bool
}

type rateLimitTracker struct {
	mu    sync.Mutex
	state RateLimit
}

func (t *rateLimitTracker) update(header http.Header) {
	remaining, err := strconv.Atoi(header.Get(headerRemaining))
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Known = true
	t.state.Remaining = remaining
	if limit, err := strconv.Atoi(header.Get(headerLimit)); err == nil {
		t.state.Limit = limit
	}
	if used, err := strconv.Atoi(header.Get(headerUsed)); err == nil {
		t.state.Used = used
	}
	if reset, err := strconv.ParseInt(header.Get(headerReset), 10, 64); err == nil {
		t.state.Reset = time.Unix(reset, 0)
	}
}

func (t *rateLimitTracker) snapshot() RateLimit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// verdict is the decision about an unsuccessful response.
type verdict struct {
	retry bool
	wait  time.Duration
	err   error
}

// judge classifies an unsuccessful response. attempt is zero-based.
func (c *Client) judge(method, url string, status int, header http.Header, body []byte,
	attempt int) verdict {
	switch {
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		if header.Get(headerRemaining) == "0" {
			reset := c.now()
			if unix, err := strconv.ParseInt(header.Get(headerReset), 10, 64); err == nil {
				reset = time.Unix(unix, 0)
			}
			wait := reset.Sub(c.now()) + rateLimitSlack
			if wait < rateLimitSlack {
				wait = rateLimitSlack
			}
			return c.rateLimited(&RateLimitError{Reset: reset, Wait: wait})
		}
		if retryAfter := header.Get(headerRetry); retryAfter != "" {
			wait := DefaultSecondaryWait
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				wait = time.Duration(seconds) * time.Second
			}
			return c.rateLimited(&RateLimitError{
				Reset: c.now().Add(wait), Wait: wait, Secondary: true})
		}
		if bytes.Contains(bytes.ToLower(body), []byte("secondary rate limit")) {
			return c.rateLimited(&RateLimitError{
				Reset: c.now().Add(DefaultSecondaryWait), Wait: DefaultSecondaryWait, Secondary: true})
		}
		return verdict{err: newHTTPError(method, url, status, body)}
	case status == http.StatusNotFound || status == http.StatusGone:
		return verdict{err: &NotFoundError{URL: url}}
	case status >= 500:
		return verdict{retry: true, wait: c.backoff(attempt), err: newHTTPError(method, url, status, body)}
	}
	return verdict{err: newHTTPError(method, url, status, body)}
}

func (c *Client) rateLimited(err *RateLimitError) verdict {
	if err.Wait > c.opts.MaxWait {
		return verdict{err: err}
	}
	c.log.Warnf("%s; sleeping %s", err.Error(), err.Wait.Round(time.Second))
	return verdict{retry: true, wait: err.Wait, err: err}
}

// backoff returns BaseBackoff * 2^attempt capped by MaxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.opts.BaseBackoff
	for i := 0; i < attempt && wait < c.opts.MaxBackoff; i++ {
		wait *= 2
	}
	if wait > c.opts.MaxBackoff {
		wait = c.opts.MaxBackoff
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
