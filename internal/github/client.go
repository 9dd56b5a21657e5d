// Package github implements the small subset of the GitHub REST and GraphQL APIs which is
// needed to inspect the CI of a repository. The client retries on rate limits and server
// errors, follows the pagination links and revalidates cached responses with ETags.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the REST endpoint of github.com.
	DefaultAPIURL = "https://api.github.com"
	// DefaultGraphQLURL is the GraphQL endpoint of github.com.
	DefaultGraphQLURL = "https://api.github.com/graphql"
	// DefaultPerPage is the page size of list requests. It is also the maximum GitHub allows.
	DefaultPerPage = 100
	// DefaultMaxRetries is the number of extra attempts after a retriable failure.
	DefaultMaxRetries = 5
	// DefaultBaseBackoff is the first delay of the exponential backoff.
	DefaultBaseBackoff = time.Second
	// DefaultMaxBackoff caps the exponential backoff.
	DefaultMaxBackoff = time.Minute
	// DefaultMaxWait caps the sleep until the rate limit resets.
	DefaultMaxWait = time.Hour
	// DefaultTimeout limits a single HTTP exchange.
	DefaultTimeout = 2 * time.Minute

	apiVersion     = "2022-11-28"
	mediaTypeJSON  = "application/vnd.github+json"
	userAgent      = "citheater"
	maxMessageSize = 200
	maxRedirects   = 5
)

// CachedResponse is a successful GET response kept for the revalidation.
type CachedResponse struct {
	ETag string
	// Link is the pagination header. 304 replies are not required to repeat it.
	Link string
	Body []byte
}

// Cache stores the bodies of successful GET responses together with their ETags.
type Cache interface {
	LoadResponse(key string) (CachedResponse, bool)
	SaveResponse(key string, response CachedResponse) error
}

// Options configure NewClient(). Zero values are replaced with the defaults.
type Options struct {
	Token       string
	APIURL      string
	GraphQLURL  string
	PerPage     int
	// MaxRetries < 0 disables the retries.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxWait     time.Duration
	Timeout     time.Duration
	Cache       Cache
	Logger      core.Logger
}

// Client talks to GitHub. It is safe for concurrent use.
type Client struct {
	opts     Options
	http     *http.Client
	download *http.Client
	limits   rateLimitTracker
	log      core.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Response is the successful reply to Client.Do().
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Cached is true if the body was taken from the cache after a 304.
	Cached bool
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if opts.GraphQLURL == "" {
		opts.GraphQLURL = DefaultGraphQLURL
	}
	if opts.PerPage <= 0 || opts.PerPage > DefaultPerPage {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = core.NewLogger()
	}
	var transport http.RoundTripper = http.DefaultTransport
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   transport,
		}
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			// the signed download URLs must not receive the token
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		download: &http.Client{Timeout: opts.Timeout},
		log:      opts.Logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// RateLimit returns the last known REST quota.
func (c *Client) RateLimit() RateLimit {
	return c.limits.snapshot()
}

// PerPage returns the configured page size.
func (c *Client) PerPage() int {
	return c.opts.PerPage
}

// Do executes the request with retries. GET requests are revalidated against the cache.
// GET redirects inside the API host are followed, e.g. for renamed repositories.
// Any other 3xx reply is an *HTTPError.
func (c *Client) Do(ctx context.Context, method, requestURL string, body []byte) (*Response, error) {
	for hops := 0; ; hops++ {
		resp, err := c.do(ctx, method, requestURL, body, method == http.MethodGet)
		if err != nil {
			return nil, err
		}
		if resp.Status < 300 || resp.Status >= 400 {
			return resp, nil
		}
		if method != http.MethodGet || hops == maxRedirects || !isRedirect(resp.Status) {
			return nil, newHTTPError(method, requestURL, resp.Status, resp.Body)
		}
		location, err := c.redirectTarget(requestURL, resp.Header.Get("Location"))
		if err != nil {
			return nil, err
		}
		c.log.Infof("%s moved to %s", requestURL, location)
		requestURL = location
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirectTarget resolves Location against the request URL. The token is sent to every
// followed URL, so only the API host is allowed.
func (c *Client) redirectTarget(requestURL, location string) (string, error) {
	if location == "" {
		return "", errors.Errorf("%s: redirect without Location", requestURL)
	}
	base, err := url.Parse(requestURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid URL %s", requestURL)
	}
	target, err := base.Parse(location)
	if err != nil {
		return "", errors.Wrapf(err, "invalid redirect from %s", requestURL)
	}
	if target.Host != base.Host {
		return "", errors.Errorf("%s redirects to another host: %s", requestURL, target.Host)
	}
	return target.String(), nil
}

func (c *Client) do(ctx context.Context, method, requestURL string, body []byte, cacheable bool) (
	*Response, error) {
	var cacheKey, etag string
	var cached CachedResponse
	useCache := cacheable && c.opts.Cache != nil
	if useCache {
		cacheKey = CacheKey(requestURL)
		var ok bool
		if cached, ok = c.opts.Cache.LoadResponse(cacheKey); ok {
			etag = cached.ETag
		}
	}
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		var wait time.Duration
		resp, err := c.exchange(ctx, method, requestURL, body, etag)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			wait = c.backoff(attempt)
		} else {
			c.limits.update(resp.Header)
			switch {
			case resp.Status == http.StatusNotModified && etag != "":
				header := resp.Header.Clone()
				if header.Get("Link") == "" && cached.Link != "" {
					header.Set("Link", cached.Link)
				}
				return &Response{Status: http.StatusOK, Header: header, Body: cached.Body, Cached: true}, nil
			case resp.Status < 400:
				if useCache && resp.Status == http.StatusOK {
					if newTag := resp.Header.Get("ETag"); newTag != "" {
						entry := CachedResponse{
							ETag: newTag,
							Link: strings.Join(resp.Header.Values("Link"), ", "),
							Body: resp.Body,
						}
						if err := c.opts.Cache.SaveResponse(cacheKey, entry); err != nil {
							c.log.Warnf("failed to cache %s: %v", requestURL, err)
						}
					}
				}
				return resp, nil
			}
			v := c.judge(method, requestURL, resp.Status, resp.Header, resp.Body, attempt)
			if !v.retry {
				return nil, v.err
			}
			lastErr = v.err
			wait = v.wait
		}
		if attempt == c.opts.MaxRetries {
			break
		}
		c.log.Warnf("%s %s attempt %d/%d failed: %v", method, requestURL,
			attempt+1, c.opts.MaxRetries+1, lastErr)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, errors.Wrapf(lastErr, "giving up after %d attempts", c.opts.MaxRetries+1)
}

func (c *Client) exchange(ctx context.Context, method, requestURL string, body []byte,
	etag string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, requestURL)
	}
	req.Header.Set("Accept", mediaTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, requestURL)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", requestURL)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// getJSON fetches the resource and decodes it into `result`.
func (c *Client) getJSON(ctx context.Context, requestURL string, result interface{}) (*Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", requestURL)
	}
	return resp, nil
}

// endpoint builds the absolute REST URL. `format` arguments are path-escaped.
func (c *Client) endpoint(query url.Values, format string, args ...interface{}) string {
	escaped := make([]interface{}, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			escaped[i] = url.PathEscape(s)
		} else {
			escaped[i] = arg
		}
	}
	result := c.opts.APIURL + fmt.Sprintf(format, escaped...)
	if len(query) > 0 {
		result += "?" + query.Encode()
	}
	return result
}

func newHTTPError(method, requestURL string, status int, body []byte) *HTTPError {
	var reply struct {
		Message string `json:"message"`
	}
	message := ""
	if json.Unmarshal(body, &reply) == nil {
		message = reply.Message
	} else {
		message = strings.TrimSpace(string(body))
	}
	if len(message) > maxMessageSize {
		message = message[:maxMessageSize] + "..."
	}
	return &HTTPError{Method: method, URL: requestURL, Status: status, Message: message}
}
