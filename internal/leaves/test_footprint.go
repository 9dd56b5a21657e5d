package leaves

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/pb"
	items "github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/testdetect"
	"github.com/rvishravars/citheater/internal/yaml"
)

// TestFootprintAnalysis measures how much of the code base is tests.
type TestFootprintAnalysis struct {
	records []TestFootprintRecord
	l       core.Logger
}

// TestFootprintRecord is the test footprint of a single repository.
type TestFootprintRecord struct {
	Repository string
	testdetect.Footprint
}

// TestFootprintResult is returned by TestFootprintAnalysis.Finalize().
type TestFootprintResult struct {
	Repositories []TestFootprintRecord
}

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (tfa *TestFootprintAnalysis) Name() string {
	return "TestFootprint"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (tfa *TestFootprintAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (tfa *TestFootprintAnalysis) Requires() []string {
	return []string{items.DependencyFootprint}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (tfa *TestFootprintAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return nil
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (tfa *TestFootprintAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		tfa.l = l
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (tfa *TestFootprintAnalysis) Flag() string {
	return "test-footprint"
}

// Description returns the text which explains what the analysis is doing.
func (tfa *TestFootprintAnalysis) Description() string {
	return "Clones the default branch and counts the test files and the lines of test code " +
		"compared to the rest of the code."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (tfa *TestFootprintAnalysis) Initialize() error {
	if tfa.l == nil {
		tfa.l = core.NewLogger()
	}
	tfa.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (tfa *TestFootprintAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	footprint := deps[items.DependencyFootprint].(testdetect.Footprint)
	if footprint.Files == 0 {
		tfa.l.Warnf("%s: no source files", repo.FullName())
	}
	tfa.records = append(tfa.records, TestFootprintRecord{Repository: repo.FullName(), Footprint: footprint})
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (tfa *TestFootprintAnalysis) Finalize() interface{} {
	return TestFootprintResult{Repositories: tfa.records}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (tfa *TestFootprintAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	tfr := result.(TestFootprintResult)
	if binary {
		return tfa.serializeBinary(&tfr, writer)
	}
	tfa.serializeText(&tfr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (tfa *TestFootprintAnalysis) CSV(result interface{}) ([]string, [][]string) {
	tfr := result.(TestFootprintResult)
	header := csvHeader("Repository", "Files", "VendoredFiles", "TestFiles", "InlineTestFiles",
		"CodeLines", "TestLines", "TestRatio", "PrimaryLanguage")
	rows := make([][]string, len(tfr.Repositories))
	for i, r := range tfr.Repositories {
		rows[i] = []string{
			r.Repository, csvInt(r.Files), csvInt(r.VendoredFiles), csvInt(r.TestFiles),
			csvInt(r.InlineTestFiles), csvInt(r.CodeLines), csvInt(r.TestLines),
			csvFloat(r.TestRatio), r.PrimaryLanguage,
		}
	}
	return header, rows
}

func (tfa *TestFootprintAnalysis) serializeText(result *TestFootprintResult, writer io.Writer) {
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      files: %d\n", r.Files)
		fmt.Fprintf(writer, "      vendored_files: %d\n", r.VendoredFiles)
		fmt.Fprintf(writer, "      test_files: %d\n", r.TestFiles)
		fmt.Fprintf(writer, "      inline_test_files: %d\n", r.InlineTestFiles)
		fmt.Fprintf(writer, "      code_lines: %d\n", r.CodeLines)
		fmt.Fprintf(writer, "      test_lines: %d\n", r.TestLines)
		fmt.Fprintf(writer, "      test_ratio: %s\n", yaml.Float(r.TestRatio))
		fmt.Fprintf(writer, "      primary_language: %s\n", yaml.SafeString(r.PrimaryLanguage))
		if len(r.Languages) == 0 {
			fmt.Fprintln(writer, "      languages: {}")
			continue
		}
		fmt.Fprintln(writer, "      languages:")
		langs := make([]string, 0, len(r.Languages))
		for lang := range r.Languages {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			fmt.Fprintf(writer, "        %s: %d\n", yaml.SafeString(lang), r.Languages[lang])
		}
	}
}

func (tfa *TestFootprintAnalysis) serializeBinary(result *TestFootprintResult, writer io.Writer) error {
	message := pb.TestFootprintResults{
		Repositories: make([]*pb.TestFootprintRecord, len(result.Repositories)),
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.TestFootprintRecord{
			Repository:      r.Repository,
			Files:           int32(r.Files),
			TestFiles:       int32(r.TestFiles),
			InlineTestFiles: int32(r.InlineTestFiles),
			CodeLines:       int64(r.CodeLines),
			TestLines:       int64(r.TestLines),
			TestRatio:       r.TestRatio,
			PrimaryLanguage: r.PrimaryLanguage,
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
	core.Registry.Register(&TestFootprintAnalysis{})
}
