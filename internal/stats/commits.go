package stats

import (
	"math"
	"sort"
	"time"
)

// CommitFrequency summarizes how often the code was committed in the window.
type CommitFrequency struct {
	Commits int
	// Weekdays is the number of working days in the window.
	Weekdays int
	// PerWeekday is Commits / Weekdays.
	PerWeekday float64
	// PerWeek is the average number of commits in 7 days.
	PerWeek float64
	// Ticks is the number of tick-sized intervals in the window.
	Ticks int
	// ActiveTicks is the number of ticks with at least one commit.
	ActiveTicks    int
	ActiveShare    float64
	MedianGapHours float64
	MaxGapHours    float64
}

// CommitFrequencyOf computes CommitFrequency of the commit times which fall into [since, until].
// Commits outside of the window are ignored.
func CommitFrequencyOf(times []time.Time, since, until time.Time, tick time.Duration) CommitFrequency {
	inside := make([]time.Time, 0, len(times))
	for _, t := range times {
		if !t.Before(since) && !t.After(until) {
			inside = append(inside, t)
		}
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].Before(inside[j]) })
	result := CommitFrequency{Commits: len(inside), Weekdays: Weekdays(since, until)}
	if result.Weekdays > 0 {
		result.PerWeekday = float64(result.Commits) / float64(result.Weekdays)
	}
	window := until.Sub(since)
	if weeks := window.Hours() / (24 * 7); weeks > 0 {
		result.PerWeek = float64(result.Commits) / weeks
	}
	if tick > 0 && window > 0 {
		result.Ticks = int(math.Ceil(float64(window) / float64(tick)))
		active := map[int]bool{}
		for _, t := range inside {
			index := int(t.Sub(since) / tick)
			if index >= result.Ticks {
				index = result.Ticks - 1
			}
			active[index] = true
		}
		result.ActiveTicks = len(active)
		result.ActiveShare = Share(result.ActiveTicks, result.Ticks)
	}
	if len(inside) > 1 {
		gaps := make([]time.Duration, len(inside)-1)
		for i := 1; i < len(inside); i++ {
			gaps[i-1] = inside[i].Sub(inside[i-1])
		}
		hours := Hours(gaps)
		result.MedianGapHours = Median(hours)
		result.MaxGapHours = Max(hours)
	}
	return result
}
