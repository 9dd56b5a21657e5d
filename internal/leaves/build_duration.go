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

// BuildDurationAnalysis measures how long the CI builds take.
type BuildDurationAnalysis struct {
	// SlowBuildMinutes is the duration above which a build is slow.
	SlowBuildMinutes float64

	records []BuildDurationRecord
	l       core.Logger
}

// BuildDurationRecord is the build duration summary of a single repository.
type BuildDurationRecord struct {
	Repository string
	stats.BuildDuration
}

// BuildDurationResult is returned by BuildDurationAnalysis.Finalize().
type BuildDurationResult struct {
	Repositories     []BuildDurationRecord
	SlowBuildMinutes float64
}

const (
	// ConfigBuildDurationSlowMinutes is the name of the option which sets the slow build threshold.
	ConfigBuildDurationSlowMinutes = "BuildDuration.SlowMinutes"
	// DefaultSlowBuildMinutes is the default value of ConfigBuildDurationSlowMinutes.
	DefaultSlowBuildMinutes = 10.0
)

func slowBuildOption() core.ConfigurationOption {
	return core.ConfigurationOption{
		Name:        ConfigBuildDurationSlowMinutes,
		Description: "Builds which take longer than this number of minutes are slow.",
		Flag:        "slow-build-minutes",
		Type:        core.FloatConfigurationOption,
		Default:     DefaultSlowBuildMinutes,
	}
}

func minutes(val float64) time.Duration {
	return time.Duration(val * float64(time.Minute))
}

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (bda *BuildDurationAnalysis) Name() string {
	return "BuildDuration"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (bda *BuildDurationAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (bda *BuildDurationAnalysis) Requires() []string {
	return []string{items.DependencyWorkflowRuns}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (bda *BuildDurationAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{slowBuildOption()}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (bda *BuildDurationAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		bda.l = l
	}
	if val, exists := facts[ConfigBuildDurationSlowMinutes].(float64); exists {
		bda.SlowBuildMinutes = val
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (bda *BuildDurationAnalysis) Flag() string {
	return "build-duration"
}

// Description returns the text which explains what the analysis is doing.
func (bda *BuildDurationAnalysis) Description() string {
	return "Measures the duration of the completed CI runs on the default branch."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (bda *BuildDurationAnalysis) Initialize() error {
	if bda.l == nil {
		bda.l = core.NewLogger()
	}
	if bda.SlowBuildMinutes <= 0 {
		bda.SlowBuildMinutes = DefaultSlowBuildMinutes
	}
	bda.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (bda *BuildDurationAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	runs := deps[items.DependencyWorkflowRuns].([]github.WorkflowRun)
	summary := stats.BuildDurationOf(stats.BuildsFromRuns(runs), minutes(bda.SlowBuildMinutes))
	if summary.Skipped > 0 {
		bda.l.Warnf("%s: skipped %d runs with inconsistent timestamps", repo.FullName(), summary.Skipped)
	}
	bda.records = append(bda.records, BuildDurationRecord{
		Repository: repo.FullName(), BuildDuration: summary})
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (bda *BuildDurationAnalysis) Finalize() interface{} {
	return BuildDurationResult{Repositories: bda.records, SlowBuildMinutes: bda.SlowBuildMinutes}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (bda *BuildDurationAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	bdr := result.(BuildDurationResult)
	if binary {
		return bda.serializeBinary(&bdr, writer)
	}
	bda.serializeText(&bdr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (bda *BuildDurationAnalysis) CSV(result interface{}) ([]string, [][]string) {
	bdr := result.(BuildDurationResult)
	header := csvHeader("Repository", "Runs", "Skipped", "MeanMinutes", "MedianMinutes",
		"P90Minutes", "MaxMinutes", "SlowRuns", "SlowShare")
	rows := make([][]string, len(bdr.Repositories))
	for i, r := range bdr.Repositories {
		rows[i] = []string{
			r.Repository, csvInt(r.Builds), csvInt(r.Skipped), csvFloat(r.MeanMinutes),
			csvFloat(r.MedianMinutes), csvFloat(r.P90Minutes), csvFloat(r.MaxMinutes),
			csvInt(r.Slow), csvFloat(r.SlowShare),
		}
	}
	return header, rows
}

func (bda *BuildDurationAnalysis) serializeText(result *BuildDurationResult, writer io.Writer) {
	fmt.Fprintf(writer, "  slow_build_minutes: %s\n", yaml.Float(result.SlowBuildMinutes))
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      runs: %d\n", r.Builds)
		fmt.Fprintf(writer, "      skipped: %d\n", r.Skipped)
		fmt.Fprintf(writer, "      mean_minutes: %s\n", yaml.Float(r.MeanMinutes))
		fmt.Fprintf(writer, "      median_minutes: %s\n", yaml.Float(r.MedianMinutes))
		fmt.Fprintf(writer, "      p90_minutes: %s\n", yaml.Float(r.P90Minutes))
		fmt.Fprintf(writer, "      max_minutes: %s\n", yaml.Float(r.MaxMinutes))
		fmt.Fprintf(writer, "      slow: [%d, %s]\n", r.Slow, yaml.Float(r.SlowShare))
	}
}

func (bda *BuildDurationAnalysis) serializeBinary(result *BuildDurationResult, writer io.Writer) error {
	message := pb.BuildDurationResults{
		SlowBuildMinutes: result.SlowBuildMinutes,
		Repositories:     make([]*pb.BuildDurationRecord, len(result.Repositories)),
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.BuildDurationRecord{
			Repository:    r.Repository,
			Runs:          int32(r.Builds),
			MeanMinutes:   r.MeanMinutes,
			MedianMinutes: r.MedianMinutes,
			P90Minutes:    r.P90Minutes,
			SlowShare:     r.SlowShare,
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
	core.Registry.Register(&BuildDurationAnalysis{})
}
