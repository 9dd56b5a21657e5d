// Package stats contains the aggregate computations behind the analyses.
package stats

import (
	"math"
	"sort"
	"time"
)

// Mean returns the arithmetic average. 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the 50th percentile.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (0 <= p <= 100) using the linear interpolation
// between the closest ranks. The input is not modified. 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// Max returns the biggest value. 0 for an empty slice.
func Max(values []float64) float64 {
	result := 0.0
	for i, v := range values {
		if i == 0 || v > result {
			result = v
		}
	}
	return result
}

// Weekdays counts Monday to Friday calendar days between the dates of `since` and `until`,
// both inclusive, in UTC.
func Weekdays(since, until time.Time) int {
	day := truncateDay(since)
	last := truncateDay(until)
	count := 0
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Share returns part / total, or 0 if total is 0.
func Share(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// Hours converts the durations to fractional hours.
func Hours(durations []time.Duration) []float64 {
	result := make([]float64, len(durations))
	for i, d := range durations {
		result[i] = d.Hours()
	}
	return result
}
