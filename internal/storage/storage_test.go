package storage

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rvishravars/citheater/internal/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	store, err := Open("sqlite:" + filepath.Join(t.TempDir(), "citheater.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestParseDSN(t *testing.T) {
	driver, source, err := parseDSN("postgres://u:p@localhost/db?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, driver)
	assert.Equal(t, "postgres://u:p@localhost/db?sslmode=disable", source)
	driver, _, err = parseDSN("postgresql://localhost/db")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, driver)
	driver, source, err = parseDSN("sqlite:/tmp/x.db")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, driver)
	assert.Equal(t, "/tmp/x.db", source)
	driver, source, err = parseDSN("runs.db")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, driver)
	assert.Equal(t, "runs.db", source)
	_, _, err = parseDSN("")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	store := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", store.rebind("SELECT a FROM t WHERE b = ? AND c = ?"))
	store.dialect = DialectSQLite
	assert.Equal(t, "SELECT ? ?", store.rebind("SELECT ? ?"))
}

func TestResponseCache(t *testing.T) {
	store := openTestStore(t)
	assert.Equal(t, DialectSQLite, store.Dialect())
	_, ok := store.LoadResponse("k")
	assert.False(t, ok)
	link := `<https://api.github.com/repos/o/r/actions/workflows?page=2>; rel="next"`
	require.NoError(t, store.SaveResponse("k", github.CachedResponse{
		ETag: `"v1"`, Link: link, Body: []byte("body1")}))
	response, ok := store.LoadResponse("k")
	assert.True(t, ok)
	assert.Equal(t, `"v1"`, response.ETag)
	assert.Equal(t, link, response.Link)
	assert.Equal(t, []byte("body1"), response.Body)
	require.NoError(t, store.SaveResponse("k", github.CachedResponse{ETag: `"v2"`, Body: []byte("body2")}))
	response, ok = store.LoadResponse("k")
	assert.True(t, ok)
	assert.Equal(t, `"v2"`, response.ETag)
	assert.Empty(t, response.Link)
	assert.Equal(t, []byte("body2"), response.Body)
}

func TestResponseCacheConcurrent(t *testing.T) {
	store := openTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.SaveResponse(string(rune('a'+i)),
				github.CachedResponse{ETag: "e", Body: []byte{byte(i)}}))
		}(i)
	}
	wg.Wait()
	response, ok := store.LoadResponse("h")
	assert.True(t, ok)
	assert.Equal(t, []byte{7}, response.Body)
}

func TestRuns(t *testing.T) {
	store := openTestStore(t)
	id, err := store.BeginRun("v1.0.0", 2, []string{"coverage", "broken-builds"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	run, err := store.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", run.Version)
	assert.Equal(t, 2, run.Repositories)
	assert.Equal(t, []string{"broken-builds", "coverage"}, run.Analyses)
	assert.False(t, run.Done())
	assert.Empty(t, run.Failed)

	type payload struct {
		Percent float64 `json:"percent"`
	}
	require.NoError(t, store.SaveResult(id, "coverage", "o/b", payload{Percent: 50}))
	require.NoError(t, store.SaveResult(id, "coverage", "o/a", payload{Percent: 10}))
	require.NoError(t, store.SaveResult(id, "coverage", "o/a", payload{Percent: 20}))
	require.NoError(t, store.SaveResult(id, "broken-builds", "o/a", map[string]int{"stretches": 3}))
	require.NoError(t, store.FinishRun(id, map[string]string{"o/c": "not found"}))

	run, err = store.GetRun(id[:8])
	require.NoError(t, err)
	assert.True(t, run.Done())
	assert.False(t, run.Finished.Before(run.Started))
	assert.Equal(t, map[string]string{"o/c": "not found"}, run.Failed)

	results, err := store.RunResults(id)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "broken-builds", results[0].Analysis)
	assert.Equal(t, "o/a", results[1].Repository)
	assert.Equal(t, "o/b", results[2].Repository)
	decoded := payload{}
	require.NoError(t, json.Unmarshal(results[1].Payload, &decoded))
	assert.Equal(t, 20.0, decoded.Percent)

	other, err := store.BeginRun("v1.0.1", 0, nil)
	require.NoError(t, err)
	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, id)
	assert.Contains(t, ids, other)
	for _, run := range runs {
		if run.ID == other {
			assert.Nil(t, run.Analyses)
		}
	}
}

func TestRunNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetRun("nope")
	assert.Equal(t, ErrNotFound, err)
	assert.Equal(t, ErrNotFound, store.FinishRun("nope", nil))
	results, err := store.RunResults("nope")
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	store, err := Open(path)
	require.NoError(t, err)
	id, err := store.BeginRun("v", 1, []string{"coverage"})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	store, err = Open("sqlite:" + path)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
}
