package leaves

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/pb"
	items "github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/stats"
	"github.com/rvishravars/citheater/internal/yaml"
)

// BrokenBuildAnalysis measures for how long the workflows stay red.
type BrokenBuildAnalysis struct {
	// BrokenDays is the length of a stretch above which it counts as long.
	BrokenDays float64

	windowEnd time.Time
	records   []BrokenBuildRecord
	l         core.Logger
}

// BrokenBuildRecord is the broken build summary of a single repository.
type BrokenBuildRecord struct {
	Repository string
	stats.BrokenBuilds
	// LongStretchList contains the stretches longer than BrokenDays.
	LongStretchList []stats.Stretch
}

// BrokenBuildResult is returned by BrokenBuildAnalysis.Finalize().
type BrokenBuildResult struct {
	Repositories []BrokenBuildRecord
	BrokenDays   float64
}

const (
	// ConfigBrokenBuildDays is the name of the option which sets the long stretch threshold.
	ConfigBrokenBuildDays = "BrokenBuilds.Days"
	// DefaultBrokenBuildDays is the default value of ConfigBrokenBuildDays.
	DefaultBrokenBuildDays = 4.0

	stretchDateLayout = "2006-01-02T15:04:05Z"
)

func brokenDaysOption() core.ConfigurationOption {
	return core.ConfigurationOption{
		Name:        ConfigBrokenBuildDays,
		Description: "Broken build stretches longer than this number of days are long.",
		Flag:        "broken-days",
		Type:        core.FloatConfigurationOption,
		Default:     DefaultBrokenBuildDays,
	}
}

func days(val float64) time.Duration {
	return time.Duration(val * float64(24*time.Hour))
}

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (bba *BrokenBuildAnalysis) Name() string {
	return "BrokenBuilds"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (bba *BrokenBuildAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (bba *BrokenBuildAnalysis) Requires() []string {
	return []string{items.DependencyWorkflowRuns}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (bba *BrokenBuildAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{brokenDaysOption()}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (bba *BrokenBuildAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		bba.l = l
	}
	if val, exists := facts[ConfigBrokenBuildDays].(float64); exists {
		bba.BrokenDays = val
	}
	if val, exists := facts[core.FactWindow].(core.Window); exists {
		bba.windowEnd = val.Until
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (bba *BrokenBuildAnalysis) Flag() string {
	return "broken-builds"
}

// Description returns the text which explains what the analysis is doing.
func (bba *BrokenBuildAnalysis) Description() string {
	return "Finds the periods when the workflows on the default branch stayed red and measures " +
		"how long it took to fix them."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (bba *BrokenBuildAnalysis) Initialize() error {
	if bba.l == nil {
		bba.l = core.NewLogger()
	}
	if bba.BrokenDays <= 0 {
		bba.BrokenDays = DefaultBrokenBuildDays
	}
	if bba.windowEnd.IsZero() {
		bba.windowEnd = time.Now().UTC()
	}
	bba.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (bba *BrokenBuildAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	runs := deps[items.DependencyWorkflowRuns].([]github.WorkflowRun)
	threshold := days(bba.BrokenDays)
	summary, stretches := stats.BrokenBuildsOf(stats.BuildsFromRuns(runs), bba.windowEnd, threshold)
	record := BrokenBuildRecord{Repository: repo.FullName(), BrokenBuilds: summary}
	for _, stretch := range stretches {
		if stretch.Duration() > threshold {
			record.LongStretchList = append(record.LongStretchList, stretch)
		}
	}
	bba.records = append(bba.records, record)
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (bba *BrokenBuildAnalysis) Finalize() interface{} {
	return BrokenBuildResult{Repositories: bba.records, BrokenDays: bba.BrokenDays}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (bba *BrokenBuildAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	bbr := result.(BrokenBuildResult)
	if binary {
		return bba.serializeBinary(&bbr, writer)
	}
	bba.serializeText(&bbr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (bba *BrokenBuildAnalysis) CSV(result interface{}) ([]string, [][]string) {
	bbr := result.(BrokenBuildResult)
	header := csvHeader("Repository", "Runs", "Failures", "Stretches", "OpenStretches",
		"LongStretches", "LongestDays", "MeanDays", "MedianDays")
	rows := make([][]string, len(bbr.Repositories))
	for i, r := range bbr.Repositories {
		rows[i] = []string{
			r.Repository, csvInt(r.Builds), csvInt(r.Failures), csvInt(r.Stretches),
			csvInt(r.Open), csvInt(r.LongStretches), csvFloat(r.LongestDays),
			csvFloat(r.MeanDays), csvFloat(r.MedianDays),
		}
	}
	return header, rows
}

func (bba *BrokenBuildAnalysis) serializeText(result *BrokenBuildResult, writer io.Writer) {
	fmt.Fprintf(writer, "  broken_days: %s\n", yaml.Float(result.BrokenDays))
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      runs: %d\n", r.Builds)
		fmt.Fprintf(writer, "      failures: %d\n", r.Failures)
		fmt.Fprintf(writer, "      stretches: %d\n", r.Stretches)
		fmt.Fprintf(writer, "      open_stretches: %d\n", r.Open)
		fmt.Fprintf(writer, "      longest_days: %s\n", yaml.Float(r.LongestDays))
		fmt.Fprintf(writer, "      mean_days: %s\n", yaml.Float(r.MeanDays))
		fmt.Fprintf(writer, "      median_days: %s\n", yaml.Float(r.MedianDays))
		if len(r.LongStretchList) == 0 {
			fmt.Fprintln(writer, "      long_stretches: []")
			continue
		}
		fmt.Fprintln(writer, "      long_stretches:")
		for _, s := range r.LongStretchList {
			fmt.Fprintf(writer, "        - workflow: %s\n", yaml.SafeString(s.Workflow))
			fmt.Fprintf(writer, "          start: %s\n", s.Start.UTC().Format(stretchDateLayout))
			fmt.Fprintf(writer, "          days: %s\n", yaml.Float(s.Duration().Hours()/24))
			fmt.Fprintf(writer, "          failures: %d\n", s.Failures)
			fmt.Fprintf(writer, "          open: %t\n", s.Open)
		}
	}
}

func (bba *BrokenBuildAnalysis) serializeBinary(result *BrokenBuildResult, writer io.Writer) error {
	message := pb.BrokenBuildResults{
		BrokenDays:   result.BrokenDays,
		Repositories: make([]*pb.BrokenBuildRecord, len(result.Repositories)),
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.BrokenBuildRecord{
			Repository:    r.Repository,
			Runs:          int32(r.Builds),
			Failures:      int32(r.Failures),
			Stretches:     int32(r.Stretches),
			LongStretches: int32(r.LongStretches),
			LongestDays:   r.LongestDays,
			MeanDays:      r.MeanDays,
			Open:          r.Open > 0,
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
	core.Registry.Register(&BrokenBuildAnalysis{})
}
