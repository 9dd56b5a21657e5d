package stats

import (
	"sort"
	"time"

	"github.com/rvishravars/citheater/internal/github"
)

// Build is a finished CI run.
type Build struct {
	ID         int64
	WorkflowID int64
	Workflow   string
	Conclusion string
	Created    time.Time
	Started    time.Time
	Updated    time.Time
}

// Duration is the wall time of the build. It may be non-positive for inconsistent records.
func (b Build) Duration() time.Duration {
	return b.Updated.Sub(b.Started)
}

// BuildsFromRuns converts the workflow runs. The start falls back to the creation time.
func BuildsFromRuns(runs []github.WorkflowRun) []Build {
	builds := make([]Build, len(runs))
	for i, run := range runs {
		builds[i] = Build{
			ID:         run.ID,
			WorkflowID: run.WorkflowID,
			Workflow:   run.Name,
			Conclusion: run.Conclusion,
			Created:    run.CreatedAt,
			Started:    run.Started(),
			Updated:    run.UpdatedAt,
		}
	}
	return builds
}

// BuildDuration summarizes how long the builds take.
type BuildDuration struct {
	Builds int
	// Skipped is the number of builds with non-positive durations.
	Skipped       int
	MeanMinutes   float64
	MedianMinutes float64
	P90Minutes    float64
	MaxMinutes    float64
	// Slow is the number of builds longer than the threshold.
	Slow      int
	SlowShare float64
}

// BuildDurationOf computes BuildDuration. Builds longer than `slow` are counted as slow.
func BuildDurationOf(builds []Build, slow time.Duration) BuildDuration {
	result := BuildDuration{}
	var minutes []float64
	for _, build := range builds {
		d := build.Duration()
		if d <= 0 {
			result.Skipped++
			continue
		}
		minutes = append(minutes, d.Minutes())
		if d > slow {
			result.Slow++
		}
	}
	result.Builds = len(minutes)
	result.MeanMinutes = Mean(minutes)
	result.MedianMinutes = Median(minutes)
	result.P90Minutes = Percentile(minutes, 90)
	result.MaxMinutes = Max(minutes)
	result.SlowShare = Share(result.Slow, result.Builds)
	return result
}

// conclusion classes
var (
	failingConclusions = map[string]bool{
		"failure": true, "timed_out": true, "startup_failure": true,
	}
	ignoredConclusions = map[string]bool{
		"cancelled": true, "skipped": true, "neutral": true, "action_required": true, "stale": true,
	}
)

// IsFailing checks whether the conclusion breaks the build.
func IsFailing(conclusion string) bool {
	return failingConclusions[conclusion]
}

// IsIgnored checks whether the conclusion neither breaks nor fixes the build.
func IsIgnored(conclusion string) bool {
	return ignoredConclusions[conclusion] || conclusion == ""
}

// Stretch is the period during which a workflow stayed red.
type Stretch struct {
	WorkflowID int64
	Workflow   string
	// Start is the creation time of the first failing build.
	Start time.Time
	// End is the creation time of the fixing build, or the window end if Open.
	End time.Time
	// Failures is the number of failing builds in the stretch.
	Failures int
	Open     bool
}

// Duration is End - Start.
func (s Stretch) Duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// BrokenStretches finds the stretches of every workflow. A stretch begins with the first failing
// build following a successful one (or the first build) and ends with the next success.
// The stretches which are not fixed by `windowEnd` end there and are marked as Open.
// The result is ordered by Start.
func BrokenStretches(builds []Build, windowEnd time.Time) []Stretch {
	perWorkflow := map[int64][]Build{}
	for _, build := range builds {
		perWorkflow[build.WorkflowID] = append(perWorkflow[build.WorkflowID], build)
	}
	var result []Stretch
	for workflowID, sequence := range perWorkflow {
		sort.SliceStable(sequence, func(i, j int) bool {
			return sequence[i].Created.Before(sequence[j].Created)
		})
		var current *Stretch
		for _, build := range sequence {
			switch {
			case IsFailing(build.Conclusion):
				if current == nil {
					current = &Stretch{WorkflowID: workflowID, Workflow: build.Workflow, Start: build.Created}
				}
				current.Failures++
			case build.Conclusion == "success":
				if current != nil {
					current.End = build.Created
					result = append(result, *current)
					current = nil
				}
			}
		}
		if current != nil {
			current.End = windowEnd
			current.Open = true
			result = append(result, *current)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Start.Equal(result[j].Start) {
			return result[i].WorkflowID < result[j].WorkflowID
		}
		return result[i].Start.Before(result[j].Start)
	})
	return result
}

// BrokenBuilds summarizes the broken stretches of a repository.
type BrokenBuilds struct {
	Builds    int
	Failures  int
	Stretches int
	Open      int
	// LongStretches is the number of stretches longer than the threshold.
	LongStretches int
	LongestDays   float64
	MeanDays      float64
	MedianDays    float64
}

// BrokenBuildsOf computes BrokenBuilds. Stretches longer than `long` are counted as long.
func BrokenBuildsOf(builds []Build, windowEnd time.Time, long time.Duration) (BrokenBuilds, []Stretch) {
	stretches := BrokenStretches(builds, windowEnd)
	result := BrokenBuilds{Builds: len(builds), Stretches: len(stretches)}
	for _, build := range builds {
		if IsFailing(build.Conclusion) {
			result.Failures++
		}
	}
	days := make([]float64, len(stretches))
	for i, stretch := range stretches {
		d := stretch.Duration()
		days[i] = d.Hours() / 24
		if stretch.Open {
			result.Open++
		}
		if d > long {
			result.LongStretches++
		}
	}
	result.LongestDays = Max(days)
	result.MeanDays = Mean(days)
	result.MedianDays = Median(days)
	return result, stretches
}
