package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rvishravars/citheater"
	"github.com/rvishravars/citheater/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *storage.Store {
	store, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreResults(t *testing.T) {
	store := openTestStore(t)
	leaf := newTableLeaf([]string{"a/b", "1"}, []string{"c/d", "2"})
	plain := &fakeLeaf{}
	deployed := []citheater.LeafPipelineItem{leaf, plain}
	runID, err := storeResults(store, deployed, fakeResults(leaf, plain))
	require.NoError(t, err)
	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.True(t, run.Done())
	assert.Equal(t, 3, run.Repositories)
	assert.Equal(t, runVersion(), run.Version)
	assert.Equal(t, []string{"Fake", "Fake"}, run.Analyses)
	assert.Equal(t, map[string]string{"x/broken": "WorkflowRuns failed: 404"}, run.Failed)
	results, err := store.RunResults(runID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a/b", results[0].Repository)
	assert.Equal(t, "Fake", results[0].Analysis)
	row := map[string]string{}
	require.NoError(t, json.Unmarshal(results[1].Payload, &row))
	assert.Equal(t, map[string]string{"repository": "c/d", "value": "2"}, row)
}

func TestPrintRuns(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)
	buffer := &bytes.Buffer{}
	printRuns(buffer, []storage.Run{{
		ID: "11111111-2222-3333-4444-555555555555", Started: started, Finished: started.Add(time.Minute),
		Repositories: 12, Analyses: []string{"CITheater", "Coverage"}, Failed: map[string]string{"a/b": "x"},
	}, {
		ID: "66666666-2222-3333-4444-555555555555", Started: started, Repositories: 3,
	}})
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID "))
	assert.Equal(t, []string{"11111111-2222-3333-4444-555555555555", "2024-01-15", "10:00:00",
		"12", "1", "CITheater,Coverage"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"66666666-2222-3333-4444-555555555555", "2024-01-15", "10:00:00",
		"3", "-"}, strings.Fields(lines[2]))
}

func TestShowAndDiffRuns(t *testing.T) {
	store := openTestStore(t)
	first := newTableLeaf([]string{"a/b", "1"}, []string{"c/d", "2"})
	oldID, err := storeResults(store, []citheater.LeafPipelineItem{first}, fakeResults(first))
	require.NoError(t, err)
	second := newTableLeaf([]string{"a/b", "5"}, []string{"c/d", "2"})
	newID, err := storeResults(store, []citheater.LeafPipelineItem{second}, fakeResults(second))
	require.NoError(t, err)

	run, results, err := loadRun(store, oldID[:8])
	require.NoError(t, err)
	assert.Equal(t, oldID, run.ID)
	buffer := &bytes.Buffer{}
	printRun(buffer, run)
	assert.Contains(t, buffer.String(), "  id: "+oldID+"\n")
	assert.Contains(t, buffer.String(), "  analyses: [\"Fake\"]\n")
	buffer.Reset()
	require.NoError(t, printRunResults(buffer, run, results))
	assert.Equal(t, `failed:
  "x/broken": "WorkflowRuns failed: 404"
results:
  Fake:
    "a/b":
      value: "1"
    "c/d":
      value: "2"
`, buffer.String())
	oldText := buffer.String()

	run, results, err = loadRun(store, newID)
	require.NoError(t, err)
	buffer.Reset()
	require.NoError(t, printRunResults(buffer, run, results))
	newText := buffer.String()

	buffer.Reset()
	assert.False(t, printDiff(buffer, oldID, oldID, oldText, oldText))
	assert.Empty(t, buffer.String())
	assert.True(t, printDiff(buffer, oldID, newID, oldText, newText))
	diff := buffer.String()
	assert.True(t, strings.HasPrefix(diff, "--- "+oldID+"\n+++ "+newID+"\n"))
	assert.Contains(t, diff, "\n-      value: \"1\"\n")
	assert.Contains(t, diff, "\n+      value: \"5\"\n")
	assert.Contains(t, diff, "\n       value: \"2\"\n")

	_, _, err = loadRun(store, "ffffffff")
	assert.EqualError(t, err, "run ffffffff does not exist")
}

func TestPrintRunResultsEmpty(t *testing.T) {
	buffer := &bytes.Buffer{}
	require.NoError(t, printRunResults(buffer, &storage.Run{}, nil))
	assert.Equal(t, "failed: {}\nresults: {}\n", buffer.String())
}

func TestWriteReport(t *testing.T) {
	run := &storage.Run{
		ID:           "0123456789abcdef",
		Version:      "1@deadbeef",
		Started:      time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Repositories: 3,
		Failed:       map[string]string{"x/broken": "WorkflowRuns failed:\n404"},
	}
	results := []storage.Result{
		{Analysis: "CITheater", Repository: "a/b",
			Payload: json.RawMessage(`{"repository":"a/b","anti_patterns":"2","slow_builds":"true"}`)},
		{Analysis: "CITheater", Repository: "c/d",
			Payload: json.RawMessage(`{"repository":"c/d","anti_patterns":"0","slow_builds":"false"}`)},
		{Analysis: "Coverage", Repository: "a/b",
			Payload: json.RawMessage(`{"repository":"a/b","detail":"x|y"}`)},
	}
	buffer := &bytes.Buffer{}
	require.NoError(t, writeReport(buffer, run, results))
	report := buffer.String()
	assert.True(t, strings.HasPrefix(report, "# CI theater report\n"))
	assert.Contains(t, report, "| 01234567 | 1@deadbeef | 2024-01-15 10:00 UTC | 3 | 1 |\n")
	assert.Contains(t, report, "**1** of 2 repositories show at least one CI anti-pattern.")
	assert.Contains(t, report, "## CITheater\n\n| repository | anti_patterns | slow_builds |\n"+
		"| --- | --- | --- |\n| a/b | 2 | true |\n| c/d | 0 | false |\n")
	assert.Contains(t, report, "## Coverage\n\n| repository | detail |\n| --- | --- |\n| a/b | x\\|y |\n")
	assert.Contains(t, report, "## Failures\n\n- `x/broken`: WorkflowRuns failed: 404\n")
}

func TestWriteReportWithoutTheater(t *testing.T) {
	buffer := &bytes.Buffer{}
	require.NoError(t, writeReport(buffer, &storage.Run{ID: "abc"}, []storage.Result{{
		Analysis: "Coverage", Repository: "a/b", Payload: json.RawMessage(`{"percent":"80"}`)}}))
	assert.NotContains(t, buffer.String(), "anti-pattern")
	assert.NotContains(t, buffer.String(), "## Failures")
	assert.Contains(t, buffer.String(), "| a/b | 80 |")
}

func TestLists(t *testing.T) {
	buffer := &bytes.Buffer{}
	require.NoError(t, printLists(buffer))
	assert.Contains(t, buffer.String(), "builtin:rust")
	buffer.Reset()
	require.NoError(t, printList(buffer, "builtin:rust"))
	assert.True(t, strings.HasPrefix(buffer.String(), "tooling:\n  - rust-lang/cargo\n"))
	assert.Contains(t, buffer.String(), "\nasync:\n  - tokio-rs/tokio\n")
	assert.Error(t, printList(buffer, "nope"))
}
