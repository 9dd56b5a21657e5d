package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater"
	"github.com/rvishravars/citheater/internal/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

type fakeLeaf struct {
	rows [][]string
}

func (leaf *fakeLeaf) Name() string {
	return "Fake"
}

func (leaf *fakeLeaf) Provides() []string {
	return []string{}
}

func (leaf *fakeLeaf) Requires() []string {
	return []string{}
}

func (leaf *fakeLeaf) ListConfigurationOptions() []citheater.ConfigurationOption {
	return nil
}

func (leaf *fakeLeaf) Configure(facts map[string]interface{}) error {
	return nil
}

func (leaf *fakeLeaf) Initialize() error {
	return nil
}

func (leaf *fakeLeaf) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	return nil, nil
}

func (leaf *fakeLeaf) Flag() string {
	return "fake"
}

func (leaf *fakeLeaf) Description() string {
	return "Fakes the results."
}

func (leaf *fakeLeaf) Finalize() interface{} {
	return len(leaf.rows)
}

func (leaf *fakeLeaf) Serialize(result interface{}, binary bool, writer io.Writer) error {
	if binary {
		_, err := fmt.Fprintf(writer, "binary:%v", result)
		return err
	}
	_, err := fmt.Fprintf(writer, "  value: %v\n", result)
	return err
}

// tableLeaf is fakeLeaf which supports CSV.
type tableLeaf struct {
	*fakeLeaf
}

func (leaf tableLeaf) CSV(result interface{}) ([]string, [][]string) {
	return []string{"repository", "value"}, leaf.rows
}

func fakeResults(leaves ...citheater.LeafPipelineItem) map[citheater.LeafPipelineItem]interface{} {
	results := map[citheater.LeafPipelineItem]interface{}{
		nil: &citheater.CommonAnalysisResult{
			BeginTime:    1704067200,
			EndTime:      1705276799,
			Repositories: 2,
			Failed:       map[string]string{"x/broken": "WorkflowRuns failed: 404"},
			RunTime:      1500 * time.Millisecond,
		},
	}
	for _, leaf := range leaves {
		results[leaf] = leaf.Finalize()
	}
	return results
}

func newTableLeaf(rows ...[]string) tableLeaf {
	return tableLeaf{&fakeLeaf{rows: rows}}
}

func TestPrintResults(t *testing.T) {
	leaf := newTableLeaf([]string{"a/b", "1"}, []string{"c/d", "2"})
	deployed := []citheater.LeafPipelineItem{leaf}
	buffer := &bytes.Buffer{}
	require.NoError(t, printResults(buffer, "abc", deployed, fakeResults(leaf)))
	parsed := map[string]interface{}{}
	require.NoError(t, yamlv3.Unmarshal(buffer.Bytes(), &parsed))
	header := parsed["citheater"].(map[string]interface{})
	assert.Equal(t, citheater.BinaryVersion, header["version"])
	assert.Equal(t, "abc", header["run_id"])
	assert.Equal(t, 2, header["repositories"])
	assert.Equal(t, 1704067200, header["begin_unix_time"])
	assert.Equal(t, 1500, header["run_time"])
	assert.Equal(t, map[string]interface{}{"x/broken": "WorkflowRuns failed: 404"}, header["failed"])
	assert.Equal(t, map[string]interface{}{"value": 2}, parsed["Fake"])
}

func TestPrintResultsNoFailures(t *testing.T) {
	leaf := &fakeLeaf{}
	results := fakeResults(leaf)
	results[nil].(*citheater.CommonAnalysisResult).Failed = map[string]string{}
	buffer := &bytes.Buffer{}
	require.NoError(t, printResults(buffer, "", []citheater.LeafPipelineItem{leaf}, results))
	assert.Contains(t, buffer.String(), "  failed: {}\n")
	assert.NotContains(t, buffer.String(), "run_id")
}

func TestProtobufResults(t *testing.T) {
	leaf := newTableLeaf([]string{"a/b", "1"})
	buffer := &bytes.Buffer{}
	require.NoError(t, protobufResults(buffer, []citheater.LeafPipelineItem{leaf}, fakeResults(leaf)))
	message := pb.AnalysisResults{}
	require.NoError(t, proto.Unmarshal(buffer.Bytes(), &message))
	assert.Equal(t, int32(citheater.BinaryVersion), message.Header.Version)
	assert.Equal(t, int32(2), message.Header.Repositories)
	assert.Equal(t, int64(1500), message.Header.RunTime)
	assert.Equal(t, "WorkflowRuns failed: 404", message.Header.Failed["x/broken"])
	assert.Equal(t, []byte("binary:1"), message.Contents["Fake"])
}

func TestWriteCSV(t *testing.T) {
	table := newTableLeaf([]string{"a/b", "1"}, []string{"c/d", "2"})
	plain := &fakeLeaf{}
	dir := filepath.Join(t.TempDir(), "out", "csv")
	deployed := []citheater.LeafPipelineItem{table, plain}
	require.NoError(t, writeCSV(dir, deployed, fakeResults(table, plain)))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fake.csv", entries[0].Name())
	file, err := os.Open(filepath.Join(dir, "fake.csv"))
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"repository", "value"}, {"a/b", "1"}, {"c/d", "2"}}, records)
}

func TestRootFlags(t *testing.T) {
	flags := rootCmd.Flags()
	for _, name := range []string{"pb", "csv", "quiet", "workers", "fail-fast", "ci-theater",
		"commit-frequency", "build-duration", "broken-builds", "coverage", "test-footprint",
		"since", "until", "dry-run", "dump-dag", "slow-build-minutes"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
	for _, name := range []string{"config", "env-file", "store"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, cmdlineDeployed["CITheater"])
	assert.Contains(t, cmdlineFacts, citheater.ConfigPipelineDryRun)
}

func TestFormatUsage(t *testing.T) {
	buffer := &bytes.Buffer{}
	rootCmd.SetOut(buffer)
	defer rootCmd.SetOut(nil)
	require.NoError(t, formatUsage(rootCmd))
	usage := buffer.String()
	assert.Contains(t, usage, "Analyses (at least one is required):")
	assert.Contains(t, usage, "--ci-theater")
	assert.Contains(t, usage, "--slow-build-minutes float")
	assert.Contains(t, usage, "Data sources:")
	assert.Contains(t, usage, "builtin:rust")
	assert.Contains(t, usage, "Commands:")
	assert.Contains(t, usage, "--workers int")
	// the flags of the analyses are not repeated in the general section
	analyses := strings.Index(usage, "Analyses (")
	assert.NotContains(t, usage[:analyses], "--ci-theater")
	// the option flags are visible again
	assert.False(t, rootCmd.Flags().Lookup("ci-theater").Hidden)
	assert.NotContains(t, versionCmd.UsageString(), "Analyses (")
}

func TestVersionCmd(t *testing.T) {
	buffer := &bytes.Buffer{}
	versionCmd.SetOut(buffer)
	defer versionCmd.SetOut(nil)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buffer.String(), fmt.Sprintf("Version: %d\n", citheater.BinaryVersion))
	assert.Contains(t, buffer.String(), "Git:     "+citheater.BinaryGitHash)
}

func TestRunAnalysesDryRun(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "citheater.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: error\n"), 0644))
	rootCmd.SetErr(io.Discard)
	defer rootCmd.SetErr(nil)

	rootCmd.SetArgs([]string{"--config", configPath, "--env-file", "", "--quiet", "owner/name"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no analysis was selected")

	dagPath := filepath.Join(dir, "dag.dot")
	rootCmd.SetArgs([]string{"--config", configPath, "--env-file", "", "--quiet",
		"--ci-theater", "--dry-run", "--dump-dag", dagPath, "owner/name"})
	require.NoError(t, rootCmd.Execute())
	dag, err := os.ReadFile(dagPath)
	require.NoError(t, err)
	assert.Contains(t, string(dag), "CITheater")
	assert.Contains(t, string(dag), "WorkflowRuns")
}
