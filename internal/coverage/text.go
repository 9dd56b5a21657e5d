package coverage

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/rvishravars/citheater/internal/github"
)

// Hit is a coverage percentage found in free text.
type Hit struct {
	Percent float64
	Tool    string
	// Line is the text where the percentage was found.
	Line string
	rank int
}

type textPattern struct {
	tool string
	// rank orders the patterns by how much they can be trusted; higher wins.
	rank    int
	pattern *regexp.Regexp
	// group selects the submatch with the percentage
	group int
}

const (
	number = `(\d{1,3}(?:\.\d+)?)`
	// unanchored numbers must not start in the middle of a longer one
	numberStart = `(?:^|[^\d.])`
)

var logPatterns = []textPattern{
	{"tarpaulin", 50, regexp.MustCompile(numberStart + number + `% coverage, \d+/\d+ lines covered`), 1},
	{"go cover", 45, regexp.MustCompile(`^total:\s+\(statements\)\s+` + number + `%`), 1},
	{"jest", 40, regexp.MustCompile(`^\s*All files\s*\|[^|]*\|[^|]*\|[^|]*\|\s*` + number + `\s*\|`), 1},
	{"lcov", 35, regexp.MustCompile(`^\s*lines\.*:\s*` + number + `%`), 1},
	{"go cover", 20, regexp.MustCompile(`\bcoverage: ` + number + `% of statements`), 1},
	{"", 10, regexp.MustCompile(`(?i)\b(?:line |code |test )?coverage\b[^0-9%\n]{0,20}?` + number + `\s?%`), 1},
}

var checkPatterns = []textPattern{
	{"codecov", 50, regexp.MustCompile(`(?i)project coverage is ` + number + `%`), 1},
	{"coveralls", 50, regexp.MustCompile(
		`(?i)coverage (?:increased|decreased|remained the same).*?(?:at|to) ` + number + `%`), 1},
	{"codecov", 40, regexp.MustCompile(`^` + number + `% \([+-]?\d`), 1},
	{"", 10, regexp.MustCompile(`(?i)\bcoverage\b[^0-9%\n]{0,20}?` + number + `\s?%`), 1},
}

var (
	// GitHub Actions prefixes every log line with the timestamp.
	logTimestamp = regexp.MustCompile(`^\d{4}-\d\d-\d\dT[0-9:.]+Z ?`)
	ansiEscape   = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")
	totalRow     = regexp.MustCompile(`^TOTAL\s`)
	percentCell  = regexp.MustCompile(numberStart + number + `%`)
)

// CleanLogLine removes the timestamp and the terminal escape codes.
func CleanLogLine(line string) string {
	line = logTimestamp.ReplaceAllString(line, "")
	return strings.TrimRight(ansiEscape.ReplaceAllString(line, ""), "\r")
}

func match(patterns []textPattern, line string) (Hit, bool) {
	for _, p := range patterns {
		groups := p.pattern.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		value, err := strconv.ParseFloat(groups[p.group], 64)
		if err != nil {
			continue
		}
		percent, ok := ValidPercent(value)
		if !ok {
			continue
		}
		return Hit{Percent: percent, Tool: p.tool, Line: strings.TrimSpace(line), rank: p.rank}, true
	}
	return Hit{}, false
}

// matchTotal parses the TOTAL rows of coverage.py / pytest-cov (one percentage) and of
// `llvm-cov report` / `cargo llvm-cov` (regions, functions, lines, branches).
func matchTotal(line string) (Hit, bool) {
	if !totalRow.MatchString(line) {
		return Hit{}, false
	}
	cells := percentCell.FindAllStringSubmatch(line, -1)
	var cell, tool string
	switch {
	case len(cells) == 0:
		return Hit{}, false
	case len(cells) == 1:
		cell, tool = cells[0][1], "coverage.py"
	case len(cells) >= 3:
		cell, tool = cells[2][1], "llvm-cov"
	default:
		cell, tool = cells[len(cells)-1][1], ""
	}
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return Hit{}, false
	}
	percent, ok := ValidPercent(value)
	if !ok {
		return Hit{}, false
	}
	return Hit{Percent: percent, Tool: tool, Line: strings.TrimSpace(line), rank: 45}, true
}

// better decides whether the new hit replaces the old one. The later of the equally trusted
// hits wins because the summaries are printed at the end.
func better(candidate Hit, best Hit, found bool) bool {
	return !found || candidate.rank >= best.rank
}

// ScanLog searches the CI job log for the coverage summary.
func ScanLog(log []byte) (Hit, bool) {
	var best Hit
	found := false
	scanner := bufio.NewScanner(bytes.NewReader(log))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := CleanLogLine(scanner.Text())
		hit, ok := matchTotal(line)
		if !ok {
			hit, ok = match(logPatterns, line)
		}
		if ok && better(hit, best, found) {
			best, found = hit, true
		}
	}
	return best, found
}

// ScanCheckRun searches the output of the check run, e.g. codecov's or coveralls' status.
func ScanCheckRun(run github.CheckRun) (Hit, bool) {
	var best Hit
	found := false
	for _, text := range []string{run.Output.Title, run.Output.Summary, run.Output.Text} {
		for _, line := range strings.Split(text, "\n") {
			hit, ok := match(checkPatterns, strings.TrimSpace(line))
			if ok && (!found || hit.rank > best.rank) {
				best, found = hit, true
			}
		}
	}
	if found && best.Tool == "" {
		best.Tool = run.App.Slug
	}
	return best, found
}
