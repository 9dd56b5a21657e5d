package github

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// RunStatusCompleted filters the finished workflow runs.
	RunStatusCompleted = "completed"
	// DefaultMaxDownload limits the size of downloaded archives.
	DefaultMaxDownload = 50 << 20
)

// Repository fetches the repository metadata.
func (c *Client) Repository(ctx context.Context, owner, name string) (*Repository, error) {
	repo := &Repository{}
	if _, err := c.getJSON(ctx, c.endpoint(nil, "/repos/%s/%s", owner, name), repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// CommitsOptions narrow ListCommits().
type CommitsOptions struct {
	// Branch is the branch name or the SHA to start listing commits from.
	Branch string
	Since  time.Time
	Until  time.Time
	// Max limits the number of returned commits. 0 means no limit.
	Max int
}

// ListCommits returns the commits reachable from CommitsOptions.Branch, newest first.
func (c *Client) ListCommits(ctx context.Context, owner, name string, opts CommitsOptions) (
	[]Commit, error) {
	query := c.pageQuery()
	if opts.Branch != "" {
		query.Set("sha", opts.Branch)
	}
	if !opts.Since.IsZero() {
		query.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		query.Set("until", opts.Until.UTC().Format(time.RFC3339))
	}
	commits, err := listAll[Commit](ctx, c, c.endpoint(query, "/repos/%s/%s/commits", owner, name), "", opts.Max)
	if err != nil {
		// empty repositories answer 409
		if httpErr, ok := errors.Cause(err).(*HTTPError); ok && httpErr.Status == http.StatusConflict {
			return nil, nil
		}
	}
	return commits, err
}

// ListWorkflows returns the Actions workflows of the repository.
func (c *Client) ListWorkflows(ctx context.Context, owner, name string) ([]Workflow, error) {
	return listAll[Workflow](ctx, c,
		c.endpoint(c.pageQuery(), "/repos/%s/%s/actions/workflows", owner, name), "workflows", 0)
}

// FileContent returns the decoded contents of the file at `ref`. Empty ref means
// the default branch.
func (c *Client) FileContent(ctx context.Context, owner, name, path, ref string) ([]byte, error) {
	query := url.Values{}
	if ref != "" {
		query.Set("ref", ref)
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	requestURL := c.endpoint(nil, "/repos/%s/%s/contents/", owner, name) + strings.Join(segments, "/")
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	reply := content{}
	if _, err := c.getJSON(ctx, requestURL, &reply); err != nil {
		return nil, err
	}
	if reply.Type != "" && reply.Type != "file" {
		return nil, errors.Errorf("%s is a %s, not a file", path, reply.Type)
	}
	if reply.Encoding != "base64" {
		return []byte(reply.Content), nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(reply.Content, "\n", ""))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return data, nil
}

// RunsOptions narrow ListWorkflowRuns().
type RunsOptions struct {
	Branch string
	// Event is the trigger, e.g. "push". Empty means any.
	Event string
	// Status is "completed", "success", "failure", etc. Empty means any.
	Status string
	Since  time.Time
	Until  time.Time
	// WorkflowID restricts the runs to a single workflow when non-zero.
	WorkflowID int64
	// Max limits the number of returned runs. 0 means no limit.
	Max int
}

// ListWorkflowRuns returns the workflow runs, newest first.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, name string, opts RunsOptions) (
	[]WorkflowRun, error) {
	query := c.pageQuery()
	if opts.Branch != "" {
		query.Set("branch", opts.Branch)
	}
	if opts.Event != "" {
		query.Set("event", opts.Event)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if created := createdFilter(opts.Since, opts.Until); created != "" {
		query.Set("created", created)
	}
	var requestURL string
	if opts.WorkflowID != 0 {
		requestURL = c.endpoint(query, "/repos/%s/%s/actions/workflows/%d/runs", owner, name, opts.WorkflowID)
	} else {
		requestURL = c.endpoint(query, "/repos/%s/%s/actions/runs", owner, name)
	}
	return listAll[WorkflowRun](ctx, c, requestURL, "workflow_runs", opts.Max)
}

func createdFilter(since, until time.Time) string {
	const layout = "2006-01-02T15:04:05Z"
	switch {
	case since.IsZero() && until.IsZero():
		return ""
	case until.IsZero():
		return ">=" + since.UTC().Format(layout)
	case since.IsZero():
		return "<=" + until.UTC().Format(layout)
	}
	return since.UTC().Format(layout) + ".." + until.UTC().Format(layout)
}

// ListCheckRuns returns the check runs reported for the commit.
func (c *Client) ListCheckRuns(ctx context.Context, owner, name, sha string) ([]CheckRun, error) {
	return listAll[CheckRun](ctx, c,
		c.endpoint(c.pageQuery(), "/repos/%s/%s/commits/%s/check-runs", owner, name, sha), "check_runs", 0)
}

// ListArtifacts returns the artifacts uploaded by the workflow run.
func (c *Client) ListArtifacts(ctx context.Context, owner, name string, runID int64) ([]Artifact, error) {
	return listAll[Artifact](ctx, c,
		c.endpoint(c.pageQuery(), "/repos/%s/%s/actions/runs/%d/artifacts", owner, name, runID),
		"artifacts", 0)
}

// DownloadArtifact returns the zip archive of the artifact. Archives bigger than `limit`
// bytes are rejected. Expired artifacts yield NotFoundError.
func (c *Client) DownloadArtifact(ctx context.Context, owner, name string, id int64, limit int64) (
	[]byte, error) {
	return c.fetchArchive(ctx,
		c.endpoint(nil, "/repos/%s/%s/actions/artifacts/%d/zip", owner, name, id), limit)
}

// DownloadRunLogs returns the zip archive with the logs of all the jobs of the run.
func (c *Client) DownloadRunLogs(ctx context.Context, owner, name string, runID int64, limit int64) (
	[]byte, error) {
	return c.fetchArchive(ctx,
		c.endpoint(nil, "/repos/%s/%s/actions/runs/%d/logs", owner, name, runID), limit)
}

// Tree lists the files at `ref` recursively. The second result is true if GitHub
// truncated the listing.
func (c *Client) Tree(ctx context.Context, owner, name, ref string) ([]TreeEntry, bool, error) {
	query := url.Values{"recursive": {"1"}}
	reply := tree{}
	if _, err := c.getJSON(ctx, c.endpoint(query, "/repos/%s/%s/git/trees/%s", owner, name, ref), &reply); err != nil {
		return nil, false, err
	}
	return reply.Tree, reply.Truncated, nil
}

func (c *Client) pageQuery() url.Values {
	return url.Values{"per_page": {strconv.Itoa(c.opts.PerPage)}}
}

// fetchArchive follows the redirect to the signed storage URL without the token.
func (c *Client) fetchArchive(ctx context.Context, requestURL string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxDownload
	}
	resp, err := c.do(ctx, http.MethodGet, requestURL, nil, false)
	if err != nil {
		return nil, err
	}
	if resp.Status < 300 || resp.Status >= 400 {
		return checkSize(requestURL, resp.Body, limit)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, errors.Errorf("%s: redirect without Location", requestURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redirect from %s", requestURL)
	}
	req.Header.Set("User-Agent", userAgent)
	reply, err := c.download.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", requestURL)
	}
	defer reply.Body.Close()
	switch {
	case reply.StatusCode == http.StatusNotFound || reply.StatusCode == http.StatusGone:
		return nil, &NotFoundError{URL: requestURL}
	case reply.StatusCode >= 300:
		return nil, &HTTPError{Method: http.MethodGet, URL: location, Status: reply.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(reply.Body, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", requestURL)
	}
	return checkSize(requestURL, data, limit)
}

func checkSize(requestURL string, data []byte, limit int64) ([]byte, error) {
	if int64(len(data)) > limit {
		return nil, errors.Errorf("%s is bigger than %d bytes", requestURL, limit)
	}
	return data, nil
}
