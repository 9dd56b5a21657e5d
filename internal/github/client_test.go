package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rvishravars/citheater/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) (*Client, *sleepRecorder) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.APIURL = server.URL
	opts.GraphQLURL = server.URL + "/graphql"
	opts.Logger = core.NewLoggerWithConfig(core.LogConfig{Level: "error", Output: io.Discard})
	client := NewClient(opts)
	recorder := &sleepRecorder{}
	client.sleep = recorder.sleep
	client.now = func() time.Time { return testNow }
	return client, recorder
}

func TestNextPage(t *testing.T) {
	header := http.Header{}
	assert.Equal(t, "", NextPage(header))
	header.Set("Link", `<https://api.github.com/x?page=2>; rel="next", <https://api.github.com/x?page=9>; rel="last"`)
	assert.Equal(t, "https://api.github.com/x?page=2", NextPage(header))
	header.Set("Link", `<https://api.github.com/x?page=1>; rel="prev", <https://api.github.com/x?page=1>; rel="first"`)
	assert.Equal(t, "", NextPage(header))
	header.Set("Link", `garbage; rel="next"`)
	assert.Equal(t, "", NextPage(header))
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(Options{PerPage: 500, MaxRetries: -1,
		Logger: core.NewLoggerWithConfig(core.LogConfig{Output: io.Discard})})
	assert.Equal(t, DefaultPerPage, client.PerPage())
	assert.Equal(t, 0, client.opts.MaxRetries)
	assert.Equal(t, DefaultAPIURL, client.opts.APIURL)
	assert.Equal(t, DefaultGraphQLURL, client.opts.GraphQLURL)
	assert.Equal(t, DefaultMaxWait, client.opts.MaxWait)
	assert.False(t, client.RateLimit().Known)
	client = NewClient(Options{Logger: client.log})
	assert.Equal(t, DefaultMaxRetries, client.opts.MaxRetries)
}

func TestClientBackoff(t *testing.T) {
	client := NewClient(Options{Logger: core.NewLoggerWithConfig(core.LogConfig{Output: io.Discard})})
	assert.Equal(t, time.Second, client.backoff(0))
	assert.Equal(t, 2*time.Second, client.backoff(1))
	assert.Equal(t, 32*time.Second, client.backoff(5))
	assert.Equal(t, time.Minute, client.backoff(6))
	assert.Equal(t, time.Minute, client.backoff(100))
}

func TestClientToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, mediaTypeJSON, r.Header.Get("Accept"))
		assert.Equal(t, "/repos/rust-lang/cargo", r.URL.Path)
		w.Header().Set(headerRemaining, "4999")
		w.Header().Set(headerLimit, "5000")
		w.Header().Set(headerReset, strconv.FormatInt(testNow.Add(time.Hour).Unix(), 10))
		fmt.Fprint(w, `{"full_name": "rust-lang/cargo", "default_branch": "master", "language": "Go"}`)
	}, Options{Token: "secret"})
	repo, err := client.Repository(context.Background(), "rust-lang", "cargo")
	require.NoError(t, err)
	assert.Equal(t, "master", repo.DefaultBranch)
	assert.Equal(t, "Go", repo.Language)
	limit := client.RateLimit()
	assert.True(t, limit.Known)
	assert.Equal(t, 4999, limit.Remaining)
	assert.Equal(t, 5000, limit.Limit)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), limit.Reset.Unix())
}

func TestClientPrimaryRateLimit(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set(headerRemaining, "0")
			w.Header().Set(headerReset, strconv.FormatInt(testNow.Add(30*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}
		fmt.Fprint(w, `{"default_branch": "main"}`)
	}, Options{})
	repo, err := client.Repository(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, []time.Duration{31 * time.Second}, recorder.waits)
	assert.Equal(t, int32(2), calls)
}

func TestClientPrimaryRateLimitTooLong(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(headerRemaining, "0")
		w.Header().Set(headerReset, strconv.FormatInt(testNow.Add(2*time.Hour).Unix(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}, Options{})
	_, err := client.Repository(context.Background(), "o", "r")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.Contains(t, err.Error(), "primary rate limit")
	assert.Empty(t, recorder.waits)
	assert.Equal(t, int32(1), calls)
}

func TestClientSecondaryRateLimit(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set(headerRetry, "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "You have exceeded a secondary rate limit. Please wait."}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}, Options{})
	_, err := client.Repository(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second, DefaultSecondaryWait}, recorder.waits)
}

func TestClientServerErrors(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{}`)
	}, Options{})
	_, err := client.Repository(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recorder.waits)
}

func TestClientGiveUp(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "oops"}`)
	}, Options{MaxRetries: 2})
	_, err := client.Repository(context.Background(), "o", "r")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls)
	assert.Len(t, recorder.waits, 2)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Contains(t, err.Error(), "HTTP 500: oops")
}

func TestClientNotFound(t *testing.T) {
	var calls int32
	client, recorder := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}, Options{})
	_, err := client.Repository(context.Background(), "o", "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRateLimit(err))
	assert.Equal(t, int32(1), calls)
	assert.Empty(t, recorder.waits)
}

func TestClientForbidden(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Resource not accessible by integration"}`)
	}, Options{})
	_, err := client.Repository(context.Background(), "o", "r")
	require.Error(t, err)
	httpErr, ok := err.(*HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, "Resource not accessible by integration", httpErr.Message)
}

func TestClientCanceledWhileWaiting(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	client.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}
	_, err := client.Repository(ctx, "o", "r")
	assert.Equal(t, context.Canceled, err)
}

func TestClientETagCache(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `{"default_branch": "trunk"}`)
	}, Options{Cache: NewMemoryCache()})
	resp, err := client.Do(context.Background(), http.MethodGet, client.opts.APIURL+"/repos/o/r", nil)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, client.opts.Cache.(*MemoryCache).Len())
	resp, err = client.Do(context.Background(), http.MethodGet, client.opts.APIURL+"/repos/o/r", nil)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"default_branch": "trunk"}`, string(resp.Body))
	assert.Equal(t, int32(2), calls)
}

func TestClientFollowsMovedRepository(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/a":
			w.Header().Set("Location", "/repositories/42")
			w.WriteHeader(http.StatusMovedPermanently)
			fmt.Fprint(w, `{"message": "Moved Permanently", "url": "/repositories/42"}`)
		case "/repositories/42":
			fmt.Fprint(w, `{"id": 42, "full_name": "o/b", "default_branch": "trunk"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, Options{})
	repo, err := client.Repository(context.Background(), "o", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), repo.ID)
	assert.Equal(t, "o/b", repo.FullName)
	assert.Equal(t, "trunk", repo.DefaultBranch)
}

func TestClientRedirectErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/away":
			w.Header().Set("Location", "https://example.com/repos/o/away")
			w.WriteHeader(http.StatusMovedPermanently)
		case "/repos/o/bare":
			w.WriteHeader(http.StatusFound)
		case "/repos/o/loop":
			w.Header().Set("Location", "/repos/o/loop")
			w.WriteHeader(http.StatusTemporaryRedirect)
		case "/repos/o/choice":
			w.WriteHeader(http.StatusMultipleChoices)
			fmt.Fprint(w, `{"message": "pick one"}`)
		}
	}, Options{})
	ctx := context.Background()
	repo, err := client.Repository(ctx, "o", "away")
	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another host")
	_, err = client.Repository(ctx, "o", "bare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without Location")
	_, err = client.Repository(ctx, "o", "loop")
	require.Error(t, err)
	httpErr, ok := err.(*HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTemporaryRedirect, httpErr.Status)
	_, err = client.Repository(ctx, "o", "choice")
	require.Error(t, err)
	httpErr, ok = err.(*HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusMultipleChoices, httpErr.Status)
	assert.Equal(t, "pick one", httpErr.Message)
	_, err = client.Do(ctx, http.MethodPost, client.opts.APIURL+"/repos/o/loop", []byte("{}"))
	assert.Error(t, err)
}

func TestListWorkflowsWarmCache(t *testing.T) {
	var revalidated int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		etag := `"page-` + page + `"`
		if r.Header.Get("If-None-Match") == etag {
			atomic.AddInt32(&revalidated, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		if page == "1" {
			w.Header().Set("Link", fmt.Sprintf(
				`<http://%s/repos/o/r/actions/workflows?page=2&per_page=100>; rel="next"`, r.Host))
		}
		id, _ := strconv.Atoi(page)
		data, _ := json.Marshal(map[string]interface{}{
			"total_count": 2,
			"workflows":   []Workflow{{ID: int64(id), Path: fmt.Sprintf(".github/workflows/%d.yml", id)}},
		})
		w.Write(data)
	}, Options{Cache: NewMemoryCache()})
	ctx := context.Background()
	cold, err := client.ListWorkflows(ctx, "o", "r")
	require.NoError(t, err)
	assert.Len(t, cold, 2)
	assert.Equal(t, int32(0), revalidated)
	warm, err := client.ListWorkflows(ctx, "o", "r")
	require.NoError(t, err)
	assert.Equal(t, cold, warm)
	assert.Equal(t, int32(2), revalidated)
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("https://api.github.com/repos/o/r")
	assert.Len(t, key, 16)
	assert.Equal(t, key, CacheKey("https://api.github.com/repos/o/r"))
	assert.NotEqual(t, key, CacheKey("https://api.github.com/repos/o/s"))
}

func TestListWorkflowRunsPagination(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "/repos/o/r/actions/runs", r.URL.Path)
		assert.Equal(t, "main", query.Get("branch"))
		assert.Equal(t, "push", query.Get("event"))
		assert.Equal(t, RunStatusCompleted, query.Get("status"))
		assert.Equal(t, "2024-01-01T00:00:00Z..2024-06-01T00:00:00Z", query.Get("created"))
		assert.Equal(t, "2", query.Get("per_page"))
		page, _ := strconv.Atoi(query.Get("page"))
		if page == 0 {
			page = 1
		}
		if page < 3 {
			next := *r.URL
			q := next.Query()
			q.Set("page", strconv.Itoa(page+1))
			next.RawQuery = q.Encode()
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, next.RequestURI()))
		}
		runs := []WorkflowRun{{ID: int64(page * 10)}, {ID: int64(page*10 + 1)}}
		data, _ := json.Marshal(map[string]interface{}{"total_count": 6, "workflow_runs": runs})
		w.Write(data)
	}, Options{PerPage: 2})
	opts := RunsOptions{
		Branch: "main", Event: "push", Status: RunStatusCompleted,
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	runs, err := client.ListWorkflowRuns(context.Background(), "o", "r", opts)
	require.NoError(t, err)
	ids := []int64{}
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	assert.Equal(t, []int64{10, 11, 20, 21, 30, 31}, ids)
	opts.Max = 3
	runs, err = client.ListWorkflowRuns(context.Background(), "o", "r", opts)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestCreatedFilter(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "", createdFilter(time.Time{}, time.Time{}))
	assert.Equal(t, ">=2024-01-01T00:00:00Z", createdFilter(since, time.Time{}))
	assert.Equal(t, "<=2024-01-01T00:00:00Z", createdFilter(time.Time{}, since))
}

func TestListCommitsEmptyRepository(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message": "Git Repository is empty."}`)
	}, Options{})
	commits, err := client.ListCommits(context.Background(), "o", "r", CommitsOptions{Branch: "main"})
	assert.NoError(t, err)
	assert.Empty(t, commits)
}

func TestListCommits(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("sha"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("since"))
		fmt.Fprint(w, `[
			{"sha": "b", "commit": {"committer": {"date": "2024-02-02T10:00:00Z"}, "author": {"date": "2024-02-01T10:00:00Z"}}},
			{"sha": "a", "commit": {"author": {"date": "2024-01-05T10:00:00Z"}}}
		]`)
	}, Options{})
	commits, err := client.ListCommits(context.Background(), "o", "r", CommitsOptions{
		Branch: "main", Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC), commits[0].When().UTC())
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), commits[1].When().UTC())
}

func TestFileContent(t *testing.T) {
	payload := "name: CI\non: push\n"
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/contents/.github/workflows/ci.yml", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		encoded := base64.StdEncoding.EncodeToString([]byte(payload))
		data, _ := json.Marshal(map[string]string{
			"type": "file", "encoding": "base64", "content": encoded[:8] + "\n" + encoded[8:]})
		w.Write(data)
	}, Options{})
	data, err := client.FileContent(context.Background(), "o", "r", ".github/workflows/ci.yml", "main")
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestDownloadArtifactRedirect(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/blob/1":
			fmt.Fprint(w, "PK-archive")
		default:
			w.WriteHeader(http.StatusGone)
		}
	}))
	defer storage.Close()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/repos/o/r/actions/artifacts/"), "/zip")
		http.Redirect(w, r, storage.URL+"/blob/"+id, http.StatusFound)
	}, Options{Token: "secret"})
	data, err := client.DownloadArtifact(context.Background(), "o", "r", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "PK-archive", string(data))
	_, err = client.DownloadArtifact(context.Background(), "o", "r", 1, 4)
	assert.Error(t, err)
	_, err = client.DownloadArtifact(context.Background(), "o", "r", 2, 100)
	assert.True(t, IsNotFound(err))
}

func TestDownloadRunLogsDirect(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/actions/runs/42/logs", r.URL.Path)
		fmt.Fprint(w, "zipdata")
	}, Options{})
	data, err := client.DownloadRunLogs(context.Background(), "o", "r", 42, 0)
	require.NoError(t, err)
	assert.Equal(t, "zipdata", string(data))
}

func TestTree(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha": "x", "truncated": true, "tree": [
			{"path": "src/lib.rs", "type": "blob", "size": 10},
			{"path": "tests", "type": "tree"}]}`)
	}, Options{})
	entries, truncated, err := client.Tree(context.Background(), "o", "r", "main")
	require.NoError(t, err)
	assert.True(t, truncated)
	require.Len(t, entries, 2)
	assert.Equal(t, "src/lib.rs", entries[0].Path)
	assert.Equal(t, int64(10), entries[0].Size)
}

func TestCommitHistoryGraphQL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		request := graphQLRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "o", request.Variables["owner"])
		assert.Equal(t, "2024-01-01T00:00:00Z", request.Variables["since"])
		if request.Variables["cursor"] == nil {
			fmt.Fprint(w, `{"data": {"repository": {"defaultBranchRef": {"target": {"history": {
				"pageInfo": {"hasNextPage": true, "endCursor": "c1"},
				"nodes": [{"oid": "b", "committedDate": "2024-03-01T00:00:00Z"}]}}}}}}`)
			return
		}
		assert.Equal(t, "c1", request.Variables["cursor"])
		fmt.Fprint(w, `{"data": {"repository": {"defaultBranchRef": {"target": {"history": {
			"pageInfo": {"hasNextPage": false, "endCursor": "c2"},
			"nodes": [{"oid": "a", "committedDate": "2024-02-01T00:00:00Z",
			           "author": {"name": "x", "date": "2024-01-31T00:00:00Z"}}]}}}}}}`)
	}, Options{})
	commits, err := client.CommitHistoryGraphQL(context.Background(), "o", "r",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "b", commits[0].SHA)
	assert.Equal(t, "a", commits[1].SHA)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), commits[1].When().UTC())
	assert.Equal(t, "x", commits[1].Commit.Author.Name)
}

func TestCommitHistoryGraphQLErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"repository": null}, "errors": [{"type": "NOT_FOUND", "message": "no"}]}`)
	}, Options{})
	_, err := client.CommitHistoryGraphQL(context.Background(), "o", "r", time.Time{}, time.Time{}, 0)
	assert.True(t, IsNotFound(err))

	client, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"repository": {"defaultBranchRef": null}}}`)
	}, Options{})
	commits, err := client.CommitHistoryGraphQL(context.Background(), "o", "r", time.Time{}, time.Time{}, 0)
	assert.NoError(t, err)
	assert.Empty(t, commits)

	client, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors": [{"message": "bad query"}]}`)
	}, Options{})
	_, err = client.CommitHistoryGraphQL(context.Background(), "o", "r", time.Time{}, time.Time{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad query")
}
