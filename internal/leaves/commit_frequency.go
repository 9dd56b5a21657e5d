package leaves

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/pb"
	items "github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/stats"
	"github.com/rvishravars/citheater/internal/yaml"
)

// CommitFrequencyAnalysis measures how often the default branch receives commits.
type CommitFrequencyAnalysis struct {
	// TickSize is the length of the interval which is checked for activity.
	TickSize time.Duration

	window  core.Window
	records []CommitFrequencyRecord
	l       core.Logger
}

// CommitFrequencyRecord is the commit frequency of a single repository.
type CommitFrequencyRecord struct {
	Repository string
	stats.CommitFrequency
}

// CommitFrequencyResult is returned by CommitFrequencyAnalysis.Finalize().
type CommitFrequencyResult struct {
	Repositories []CommitFrequencyRecord
	TickSize     time.Duration
}

const (
	// ConfigCommitFrequencyTickSize is the name of the option which sets the tick size in hours.
	ConfigCommitFrequencyTickSize = "CommitFrequency.TickSize"
	// DefaultCommitFrequencyTickSize is the default tick size in hours: one week.
	DefaultCommitFrequencyTickSize = 168
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (cfa *CommitFrequencyAnalysis) Name() string {
	return "CommitFrequency"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (cfa *CommitFrequencyAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (cfa *CommitFrequencyAnalysis) Requires() []string {
	return []string{items.DependencyCommits}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (cfa *CommitFrequencyAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigCommitFrequencyTickSize,
		Description: "Size of the interval in hours which must contain at least one commit to count as active.",
		Flag:        "tick-size",
		Type:        core.IntConfigurationOption,
		Default:     DefaultCommitFrequencyTickSize,
	}}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (cfa *CommitFrequencyAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		cfa.l = l
	}
	if val, exists := facts[ConfigCommitFrequencyTickSize].(int); exists {
		cfa.TickSize = time.Duration(val) * time.Hour
	}
	if val, exists := facts[core.FactWindow].(core.Window); exists {
		cfa.window = val
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (cfa *CommitFrequencyAnalysis) Flag() string {
	return "commit-frequency"
}

// Description returns the text which explains what the analysis is doing.
func (cfa *CommitFrequencyAnalysis) Description() string {
	return "Measures how often the default branch receives commits: per weekday, per week, " +
		"the share of active ticks and the gaps between the commits."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (cfa *CommitFrequencyAnalysis) Initialize() error {
	if cfa.l == nil {
		cfa.l = core.NewLogger()
	}
	if cfa.TickSize <= 0 {
		cfa.l.Warnf("adjusted the tick size to the default value (%d hours)", DefaultCommitFrequencyTickSize)
		cfa.TickSize = DefaultCommitFrequencyTickSize * time.Hour
	}
	cfa.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (cfa *CommitFrequencyAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	commits := deps[items.DependencyCommits].([]items.CommitRecord)
	times := make([]time.Time, len(commits))
	for i, commit := range commits {
		times[i] = commit.When
	}
	cfa.records = append(cfa.records, CommitFrequencyRecord{
		Repository:      repo.FullName(),
		CommitFrequency: stats.CommitFrequencyOf(times, cfa.window.Since, cfa.window.Until, cfa.TickSize),
	})
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (cfa *CommitFrequencyAnalysis) Finalize() interface{} {
	return CommitFrequencyResult{Repositories: cfa.records, TickSize: cfa.TickSize}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (cfa *CommitFrequencyAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	cfr := result.(CommitFrequencyResult)
	if binary {
		return cfa.serializeBinary(&cfr, writer)
	}
	cfa.serializeText(&cfr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (cfa *CommitFrequencyAnalysis) CSV(result interface{}) ([]string, [][]string) {
	cfr := result.(CommitFrequencyResult)
	header := csvHeader("Repository", "Commits", "Weekdays", "CommitsPerWeekday", "CommitsPerWeek",
		"Ticks", "ActiveTicks", "ActiveTicksShare", "MedianGapHours", "MaxGapHours")
	rows := make([][]string, len(cfr.Repositories))
	for i, r := range cfr.Repositories {
		rows[i] = []string{
			r.Repository, csvInt(r.Commits), csvInt(r.Weekdays), csvFloat(r.PerWeekday),
			csvFloat(r.PerWeek), csvInt(r.Ticks), csvInt(r.ActiveTicks), csvFloat(r.ActiveShare),
			csvFloat(r.MedianGapHours), csvFloat(r.MaxGapHours),
		}
	}
	return header, rows
}

func (cfa *CommitFrequencyAnalysis) serializeText(result *CommitFrequencyResult, writer io.Writer) {
	fmt.Fprintf(writer, "  tick_size_hours: %d\n", int(result.TickSize.Hours()))
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      commits: %d\n", r.Commits)
		fmt.Fprintf(writer, "      weekdays: %d\n", r.Weekdays)
		fmt.Fprintf(writer, "      commits_per_weekday: %s\n", yaml.Float(r.PerWeekday))
		fmt.Fprintf(writer, "      commits_per_week: %s\n", yaml.Float(r.PerWeek))
		fmt.Fprintf(writer, "      active_ticks: [%d, %d]\n", r.ActiveTicks, r.Ticks)
		fmt.Fprintf(writer, "      active_ticks_share: %s\n", yaml.Float(r.ActiveShare))
		fmt.Fprintf(writer, "      median_gap_hours: %s\n", yaml.Float(r.MedianGapHours))
		fmt.Fprintf(writer, "      max_gap_hours: %s\n", yaml.Float(r.MaxGapHours))
	}
}

func (cfa *CommitFrequencyAnalysis) serializeBinary(result *CommitFrequencyResult, writer io.Writer) error {
	message := pb.CommitFrequencyResults{
		TickSizeHours: int32(result.TickSize.Hours()),
		Repositories:  make([]*pb.CommitFrequencyRecord, len(result.Repositories)),
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.CommitFrequencyRecord{
			Repository:        r.Repository,
			Commits:           int32(r.Commits),
			CommitsPerWeek:    r.PerWeek,
			CommitsPerWeekday: r.PerWeekday,
			ActiveTicksShare:  r.ActiveShare,
			MedianGapHours:    r.MedianGapHours,
			MaxGapHours:       r.MaxGapHours,
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
	core.Registry.Register(&CommitFrequencyAnalysis{})
}
