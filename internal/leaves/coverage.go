package leaves

import (
	"context"
	"fmt"
	"io"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/coverage"
	"github.com/rvishravars/citheater/internal/pb"
	items "github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/testdetect"
	"github.com/rvishravars/citheater/internal/yaml"
)

// CoverageAnalysis collects the line coverage reported by CI together with the test runners
// and the coverage tools mentioned in the workflows.
type CoverageAnalysis struct {
	records []CoverageRecord
	l       core.Logger
}

// CoverageRecord is the coverage summary of a single repository.
type CoverageRecord struct {
	Repository string
	coverage.Coverage
	// Workflows is the number of active workflows which could be parsed.
	Workflows int
	testdetect.WorkflowInspection
}

// TestsInCI checks whether any workflow runs tests.
func (r CoverageRecord) TestsInCI() bool {
	return len(r.TestCommands) > 0
}

// CoverageInCI checks whether any workflow measures coverage.
func (r CoverageRecord) CoverageInCI() bool {
	return len(r.CoverageTools) > 0
}

// CoverageResult is returned by CoverageAnalysis.Finalize().
type CoverageResult struct {
	Repositories []CoverageRecord
}

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (ca *CoverageAnalysis) Name() string {
	return "Coverage"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (ca *CoverageAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (ca *CoverageAnalysis) Requires() []string {
	return []string{items.DependencyCoverage, items.DependencyWorkflows}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (ca *CoverageAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return nil
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (ca *CoverageAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		ca.l = l
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (ca *CoverageAnalysis) Flag() string {
	return "coverage"
}

// Description returns the text which explains what the analysis is doing.
func (ca *CoverageAnalysis) Description() string {
	return "Finds the line coverage reported by the recent successful CI runs in the check runs, " +
		"the artifacts or the logs, and detects the test runners and the coverage tools in the workflows."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (ca *CoverageAnalysis) Initialize() error {
	if ca.l == nil {
		ca.l = core.NewLogger()
	}
	ca.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (ca *CoverageAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	cov := deps[items.DependencyCoverage].(coverage.Coverage)
	files := deps[items.DependencyWorkflows].([]items.WorkflowFile)
	record := CoverageRecord{
		Repository:         repo.FullName(),
		Coverage:           cov,
		WorkflowInspection: items.MergeInspections(files),
	}
	for _, file := range files {
		if file.Parsed && (file.State == "" || file.State == "active") {
			record.Workflows++
		}
	}
	if !cov.Found && record.CoverageInCI() {
		ca.l.Infof("%s: %v are configured but no coverage was found",
			repo.FullName(), record.CoverageTools)
	}
	ca.records = append(ca.records, record)
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (ca *CoverageAnalysis) Finalize() interface{} {
	return CoverageResult{Repositories: ca.records}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (ca *CoverageAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	cr := result.(CoverageResult)
	if binary {
		return ca.serializeBinary(&cr, writer)
	}
	ca.serializeText(&cr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (ca *CoverageAnalysis) CSV(result interface{}) ([]string, [][]string) {
	cr := result.(CoverageResult)
	header := csvHeader("Repository", "Found", "Percent", "Source", "Tool", "RunID", "Workflows",
		"TestsInCI", "CoverageInCI", "TestCommands", "CoverageTools")
	rows := make([][]string, len(cr.Repositories))
	for i, r := range cr.Repositories {
		percent := ""
		if r.Found {
			percent = csvFloat(r.Percent)
		}
		rows[i] = []string{
			r.Repository, csvBool(r.Found), percent, r.Source, r.Tool, fmt.Sprint(r.RunID),
			csvInt(r.Workflows), csvBool(r.TestsInCI()), csvBool(r.CoverageInCI()),
			csvList(r.TestCommands), csvList(r.CoverageTools),
		}
	}
	return header, rows
}

func (ca *CoverageAnalysis) serializeText(result *CoverageResult, writer io.Writer) {
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      found: %t\n", r.Found)
		if r.Found {
			fmt.Fprintf(writer, "      percent: %s\n", yaml.Float(r.Percent))
			fmt.Fprintf(writer, "      source: %s\n", r.Source)
			fmt.Fprintf(writer, "      tool: %s\n", yaml.SafeString(r.Tool))
			fmt.Fprintf(writer, "      run_id: %d\n", r.RunID)
			fmt.Fprintf(writer, "      detail: %s\n", yaml.SafeString(r.Detail))
		}
		fmt.Fprintf(writer, "      workflows: %d\n", r.Workflows)
		fmt.Fprintf(writer, "      tests_in_ci: %t\n", r.TestsInCI())
		fmt.Fprintf(writer, "      coverage_in_ci: %t\n", r.CoverageInCI())
		yaml.PrintStrings(writer, 6, "test_commands", r.TestCommands)
		yaml.PrintStrings(writer, 6, "coverage_tools", r.CoverageTools)
	}
}

func (ca *CoverageAnalysis) serializeBinary(result *CoverageResult, writer io.Writer) error {
	message := pb.CoverageResults{
		Repositories: make([]*pb.CoverageRecord, len(result.Repositories)),
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.CoverageRecord{
			Repository:    r.Repository,
			Found:         r.Found,
			Percent:       r.Percent,
			Source:        r.Source,
			Tool:          r.Tool,
			RunId:         r.RunID,
			TestsInCi:     r.TestsInCI(),
			CoverageInCi:  r.CoverageInCI(),
			TestCommands:  r.TestCommands,
			CoverageTools: r.CoverageTools,
		}
	}
	serialized, err := proto.Marshal(&message)
	if err != nil {
		return err
	}
	_, err = writer.Write(serialized)
	return err
}

func init() {
	core.Registry.Register(&CoverageAnalysis{})
}
