package leaves

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
)

// csvHeader converts Go field names to snake_case column names.
func csvHeader(fields ...string) []string {
	header := make([]string, len(fields))
	for i, field := range fields {
		header[i] = snakeCase(field)
	}
	return header
}

// snakeCase turns "MedianGapHours" into "median_gap_hours" and "P90Minutes" into "p90_minutes".
func snakeCase(name string) string {
	var parts []string
	for _, part := range camelcase.Split(name) {
		if part == "_" || strings.TrimSpace(part) == "" {
			continue
		}
		// digits stick to the preceding word
		if len(parts) > 0 && unicode.IsDigit(rune(part[0])) {
			parts[len(parts)-1] += part
			continue
		}
		parts = append(parts, strings.ToLower(part))
	}
	return strings.Join(parts, "_")
}

func csvFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func csvInt(val int) string {
	return strconv.Itoa(val)
}

func csvBool(val bool) string {
	return strconv.FormatBool(val)
}

func csvList(items []string) string {
	return strings.Join(items, ";")
}
