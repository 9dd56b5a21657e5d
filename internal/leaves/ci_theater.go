package leaves

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/coverage"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/pb"
	items "github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/stats"
	"github.com/rvishravars/citheater/internal/yaml"
)

// CITheaterAnalysis flags the repositories which adopted CI only superficially.
// The anti-patterns are infrequent commits to the default branch, slow builds,
// builds which stay broken for long and low or unknown coverage.
type CITheaterAnalysis struct {
	MinCommitsPerWeekday float64
	SlowBuildMinutes     float64
	BrokenDays           float64
	MinCoverage          float64

	window  core.Window
	records []CITheaterRecord
	l       core.Logger
}

// CITheaterRecord holds the anti-patterns of a single repository and the values behind them.
type CITheaterRecord struct {
	Repository        string
	InfrequentCommits bool
	SlowBuilds        bool
	LongBrokenBuilds  bool
	LowCoverage       bool

	CommitsPerWeekday  float64
	Builds             int
	MedianBuildMinutes float64
	LongestBrokenDays  float64
	CoverageFound      bool
	CoveragePercent    float64
}

// AntiPatterns returns the number of the detected anti-patterns.
func (r CITheaterRecord) AntiPatterns() int {
	count := 0
	for _, flag := range []bool{r.InfrequentCommits, r.SlowBuilds, r.LongBrokenBuilds, r.LowCoverage} {
		if flag {
			count++
		}
	}
	return count
}

// CITheaterResult is returned by CITheaterAnalysis.Finalize().
type CITheaterResult struct {
	Repositories []CITheaterRecord
	// Totals maps the anti-pattern to the number of the repositories which have it.
	// TotalAny and TotalAll count the repositories with at least one and all of them.
	Totals map[string]int

	MinCommitsPerWeekday float64
	SlowBuildMinutes     float64
	BrokenDays           float64
	MinCoverage          float64
}

const (
	// ConfigCITheaterMinCommitsPerWeekday is the name of the option which sets the commit rate
	// below which the commits are infrequent.
	ConfigCITheaterMinCommitsPerWeekday = "CITheater.MinCommitsPerWeekday"
	// ConfigCITheaterMinCoverage is the name of the option which sets the lowest acceptable
	// line coverage percentage.
	ConfigCITheaterMinCoverage = "CITheater.MinCoverage"

	// DefaultMinCommitsPerWeekday is the default value of ConfigCITheaterMinCommitsPerWeekday.
	DefaultMinCommitsPerWeekday = 1.0
	// DefaultMinCoverage is the default value of ConfigCITheaterMinCoverage.
	DefaultMinCoverage = 50.0

	// TotalInfrequentCommits and the rest are the keys of CITheaterResult.Totals.
	TotalInfrequentCommits = "infrequent_commits"
	TotalSlowBuilds        = "slow_builds"
	TotalLongBrokenBuilds  = "long_broken_builds"
	TotalLowCoverage       = "low_coverage"
	TotalAny               = "any"
	TotalAll               = "all"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (cta *CITheaterAnalysis) Name() string {
	return "CITheater"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (cta *CITheaterAnalysis) Provides() []string {
	return []string{}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (cta *CITheaterAnalysis) Requires() []string {
	return []string{items.DependencyCommits, items.DependencyWorkflowRuns, items.DependencyCoverage}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (cta *CITheaterAnalysis) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigCITheaterMinCommitsPerWeekday,
		Description: "Repositories with fewer commits per weekday on the default branch commit infrequently.",
		Flag:        "min-commits-per-weekday",
		Type:        core.FloatConfigurationOption,
		Default:     DefaultMinCommitsPerWeekday,
	}, {
		Name:        ConfigCITheaterMinCoverage,
		Description: "Repositories with a lower line coverage percentage, or without any, have low coverage.",
		Flag:        "min-coverage",
		Type:        core.FloatConfigurationOption,
		Default:     DefaultMinCoverage,
	}, slowBuildOption(), brokenDaysOption()}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (cta *CITheaterAnalysis) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		cta.l = l
	}
	if val, exists := facts[ConfigCITheaterMinCommitsPerWeekday].(float64); exists {
		cta.MinCommitsPerWeekday = val
	} else {
		cta.MinCommitsPerWeekday = DefaultMinCommitsPerWeekday
	}
	if val, exists := facts[ConfigCITheaterMinCoverage].(float64); exists {
		cta.MinCoverage = val
	} else {
		cta.MinCoverage = DefaultMinCoverage
	}
	if val, exists := facts[ConfigBuildDurationSlowMinutes].(float64); exists {
		cta.SlowBuildMinutes = val
	}
	if val, exists := facts[ConfigBrokenBuildDays].(float64); exists {
		cta.BrokenDays = val
	}
	if val, exists := facts[core.FactWindow].(core.Window); exists {
		cta.window = val
	}
	return nil
}

// Flag for the command line switch which enables this analysis.
func (cta *CITheaterAnalysis) Flag() string {
	return "ci-theater"
}

// Description returns the text which explains what the analysis is doing.
func (cta *CITheaterAnalysis) Description() string {
	return "Detects the CI anti-patterns: infrequent commits, slow builds, long broken builds " +
		"and low coverage."
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (cta *CITheaterAnalysis) Initialize() error {
	if cta.l == nil {
		cta.l = core.NewLogger()
	}
	if cta.MinCommitsPerWeekday < 0 {
		cta.MinCommitsPerWeekday = DefaultMinCommitsPerWeekday
	}
	if cta.MinCoverage < 0 || cta.MinCoverage > 100 {
		cta.l.Warnf("adjusted the minimum coverage %f to the default value", cta.MinCoverage)
		cta.MinCoverage = DefaultMinCoverage
	}
	if cta.SlowBuildMinutes <= 0 {
		cta.SlowBuildMinutes = DefaultSlowBuildMinutes
	}
	if cta.BrokenDays <= 0 {
		cta.BrokenDays = DefaultBrokenBuildDays
	}
	if cta.window.Until.IsZero() {
		cta.window.Until = time.Now().UTC()
		cta.window.Since = cta.window.Until.AddDate(0, 0, -core.DefaultWindowDays)
	}
	cta.records = nil
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (cta *CITheaterAnalysis) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	commits := deps[items.DependencyCommits].([]items.CommitRecord)
	runs := deps[items.DependencyWorkflowRuns].([]github.WorkflowRun)
	cov := deps[items.DependencyCoverage].(coverage.Coverage)

	times := make([]time.Time, len(commits))
	for i, commit := range commits {
		times[i] = commit.When
	}
	frequency := stats.CommitFrequencyOf(
		times, cta.window.Since, cta.window.Until, DefaultCommitFrequencyTickSize*time.Hour)
	builds := stats.BuildsFromRuns(runs)
	duration := stats.BuildDurationOf(builds, minutes(cta.SlowBuildMinutes))
	broken, _ := stats.BrokenBuildsOf(builds, cta.window.Until, days(cta.BrokenDays))

	record := CITheaterRecord{
		Repository:         repo.FullName(),
		CommitsPerWeekday:  frequency.PerWeekday,
		Builds:             duration.Builds,
		MedianBuildMinutes: duration.MedianMinutes,
		LongestBrokenDays:  broken.LongestDays,
		CoverageFound:      cov.Found,
		CoveragePercent:    cov.Percent,
	}
	record.InfrequentCommits = frequency.PerWeekday < cta.MinCommitsPerWeekday
	record.SlowBuilds = duration.Builds > 0 && duration.MedianMinutes > cta.SlowBuildMinutes
	record.LongBrokenBuilds = broken.LongStretches > 0
	record.LowCoverage = !cov.Found || cov.Percent < cta.MinCoverage
	cta.records = append(cta.records, record)
	return nil, nil
}

// Finalize returns the result of the analysis. Further Consume() calls are not expected.
func (cta *CITheaterAnalysis) Finalize() interface{} {
	totals := map[string]int{
		TotalInfrequentCommits: 0, TotalSlowBuilds: 0, TotalLongBrokenBuilds: 0,
		TotalLowCoverage: 0, TotalAny: 0, TotalAll: 0,
	}
	for _, r := range cta.records {
		if r.InfrequentCommits {
			totals[TotalInfrequentCommits]++
		}
		if r.SlowBuilds {
			totals[TotalSlowBuilds]++
		}
		if r.LongBrokenBuilds {
			totals[TotalLongBrokenBuilds]++
		}
		if r.LowCoverage {
			totals[TotalLowCoverage]++
		}
		switch r.AntiPatterns() {
		case 0:
		case 4:
			totals[TotalAll]++
			totals[TotalAny]++
		default:
			totals[TotalAny]++
		}
	}
	return CITheaterResult{
		Repositories:         cta.records,
		Totals:               totals,
		MinCommitsPerWeekday: cta.MinCommitsPerWeekday,
		SlowBuildMinutes:     cta.SlowBuildMinutes,
		BrokenDays:           cta.BrokenDays,
		MinCoverage:          cta.MinCoverage,
	}
}

// Serialize converts the analysis result as returned by Finalize() to text or bytes.
// The text format is YAML and the bytes format is Protocol Buffers.
func (cta *CITheaterAnalysis) Serialize(result interface{}, binary bool, writer io.Writer) error {
	ctr := result.(CITheaterResult)
	if binary {
		return cta.serializeBinary(&ctr, writer)
	}
	cta.serializeText(&ctr, writer)
	return nil
}

// CSV converts the analysis result to a table with one row per repository.
func (cta *CITheaterAnalysis) CSV(result interface{}) ([]string, [][]string) {
	ctr := result.(CITheaterResult)
	header := csvHeader("Repository", "InfrequentCommits", "SlowBuilds", "LongBrokenBuilds",
		"LowCoverage", "AntiPatterns", "CommitsPerWeekday", "Builds", "MedianBuildMinutes",
		"LongestBrokenDays", "CoveragePercent")
	rows := make([][]string, len(ctr.Repositories))
	for i, r := range ctr.Repositories {
		percent := ""
		if r.CoverageFound {
			percent = csvFloat(r.CoveragePercent)
		}
		rows[i] = []string{
			r.Repository, csvBool(r.InfrequentCommits), csvBool(r.SlowBuilds),
			csvBool(r.LongBrokenBuilds), csvBool(r.LowCoverage), csvInt(r.AntiPatterns()),
			csvFloat(r.CommitsPerWeekday), csvInt(r.Builds), csvFloat(r.MedianBuildMinutes),
			csvFloat(r.LongestBrokenDays), percent,
		}
	}
	return header, rows
}

func (cta *CITheaterAnalysis) serializeText(result *CITheaterResult, writer io.Writer) {
	fmt.Fprintln(writer, "  thresholds:")
	fmt.Fprintf(writer, "    min_commits_per_weekday: %s\n", yaml.Float(result.MinCommitsPerWeekday))
	fmt.Fprintf(writer, "    slow_build_minutes: %s\n", yaml.Float(result.SlowBuildMinutes))
	fmt.Fprintf(writer, "    broken_days: %s\n", yaml.Float(result.BrokenDays))
	fmt.Fprintf(writer, "    min_coverage: %s\n", yaml.Float(result.MinCoverage))
	fmt.Fprintln(writer, "  totals:")
	keys := make([]string, 0, len(result.Totals))
	for key := range result.Totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(writer, "    %s: %d\n", key, result.Totals[key])
	}
	fmt.Fprintln(writer, "  repositories:")
	for _, r := range result.Repositories {
		fmt.Fprintf(writer, "    - repository: %s\n", yaml.SafeString(r.Repository))
		fmt.Fprintf(writer, "      infrequent_commits: %t\n", r.InfrequentCommits)
		fmt.Fprintf(writer, "      slow_builds: %t\n", r.SlowBuilds)
		fmt.Fprintf(writer, "      long_broken_builds: %t\n", r.LongBrokenBuilds)
		fmt.Fprintf(writer, "      low_coverage: %t\n", r.LowCoverage)
		fmt.Fprintf(writer, "      anti_patterns: %d\n", r.AntiPatterns())
		fmt.Fprintf(writer, "      commits_per_weekday: %s\n", yaml.Float(r.CommitsPerWeekday))
		fmt.Fprintf(writer, "      median_build_minutes: %s\n", yaml.Float(r.MedianBuildMinutes))
		fmt.Fprintf(writer, "      longest_broken_days: %s\n", yaml.Float(r.LongestBrokenDays))
		if r.CoverageFound {
			fmt.Fprintf(writer, "      coverage: %s\n", yaml.Float(r.CoveragePercent))
		} else {
			fmt.Fprintln(writer, "      coverage: null")
		}
	}
}

func (cta *CITheaterAnalysis) serializeBinary(result *CITheaterResult, writer io.Writer) error {
	message := pb.CITheaterResults{
		Repositories:         make([]*pb.CITheaterRecord, len(result.Repositories)),
		Totals:               map[string]int32{},
		MinCommitsPerWeekday: result.MinCommitsPerWeekday,
		SlowBuildMinutes:     result.SlowBuildMinutes,
		BrokenDays:           result.BrokenDays,
		MinCoverage:          result.MinCoverage,
	}
	for key, val := range result.Totals {
		message.Totals[key] = int32(val)
	}
	for i, r := range result.Repositories {
		message.Repositories[i] = &pb.CITheaterRecord{
			Repository:         r.Repository,
			InfrequentCommits:  r.InfrequentCommits,
			SlowBuilds:         r.SlowBuilds,
			LongBrokenBuilds:   r.LongBrokenBuilds,
			LowCoverage:        r.LowCoverage,
			AntiPatterns:       int32(r.AntiPatterns()),
			CommitsPerWeekday:  r.CommitsPerWeekday,
			Builds:             int32(r.Builds),
			MedianBuildMinutes: r.MedianBuildMinutes,
			LongestBrokenDays:  r.LongestBrokenDays,
			CoverageFound:      r.CoverageFound,
			CoveragePercent:    r.CoveragePercent,
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
	core.Registry.Register(&CITheaterAnalysis{})
}
