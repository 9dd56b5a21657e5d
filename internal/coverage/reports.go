// Package coverage extracts the line coverage which a repository's CI reports. The
// percentage is searched in the check runs, the uploaded artifacts and the job logs.
package coverage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnrecognized is returned by ParseReport() for the data which is not a known coverage report.
var ErrUnrecognized = errors.New("not a coverage report")

const (
	// FormatCobertura is the XML produced by cobertura, coverage.py, tarpaulin, gcovr, grcov.
	FormatCobertura = "cobertura"
	// FormatJaCoCo is the XML produced by JaCoCo.
	FormatJaCoCo = "jacoco"
	// FormatLCOV is the tracefile produced by lcov, grcov, llvm-cov, c8, nyc.
	FormatLCOV = "lcov"
	// FormatTarpaulin is tarpaulin-report.json.
	FormatTarpaulin = "tarpaulin"
	// FormatLLVM is the JSON of `llvm-cov export` and `cargo llvm-cov --json`.
	FormatLLVM = "llvm-cov"
	// FormatGo is the profile written by `go test -coverprofile`.
	FormatGo = "go cover"

	// tolerance of the rounding errors around 0 and 100
	percentSlack = 0.01
)

// Report is the summary of a parsed coverage report.
type Report struct {
	Format  string
	Percent float64
	// Covered and Lines are zero if the report carries only the rate.
	Covered int64
	Lines   int64
}

// ValidPercent clamps the percentage to [0, 100] and rejects the values which are too far outside.
func ValidPercent(value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < -percentSlack || value > 100+percentSlack {
		return 0, false
	}
	return math.Max(0, math.Min(100, value)), true
}

func ratio(covered, lines int64) float64 {
	if lines <= 0 {
		return 0
	}
	return float64(covered) * 100 / float64(lines)
}

// ParseReport detects the format of the coverage report and returns the line coverage.
// ErrUnrecognized is returned if the format is unknown.
func ParseReport(data []byte) (Report, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	var report Report
	var err error
	switch {
	case len(trimmed) == 0:
		return report, ErrUnrecognized
	case trimmed[0] == '<':
		report, err = parseXML(trimmed)
	case trimmed[0] == '{':
		report, err = parseJSON(trimmed)
	case bytes.HasPrefix(trimmed, []byte("mode:")):
		report, err = parseGoProfile(trimmed)
	case bytes.Contains(trimmed, []byte("end_of_record")):
		report, err = parseLCOV(trimmed)
	default:
		return report, ErrUnrecognized
	}
	if err != nil {
		return report, err
	}
	percent, ok := ValidPercent(report.Percent)
	if !ok {
		return report, errors.Errorf("%s report: invalid coverage %f", report.Format, report.Percent)
	}
	report.Percent = percent
	return report, nil
}

type xmlCounter struct {
	Type    string `xml:"type,attr"`
	Missed  int64  `xml:"missed,attr"`
	Covered int64  `xml:"covered,attr"`
}

type jacocoReport struct {
	Counters []xmlCounter `xml:"counter"`
}

type coberturaReport struct {
	LineRate     string `xml:"line-rate,attr"`
	LinesCovered int64  `xml:"lines-covered,attr"`
	LinesValid   int64  `xml:"lines-valid,attr"`
}

func parseXML(data []byte) (Report, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return Report{}, ErrUnrecognized
		}
		if err != nil {
			return Report{}, errors.Wrap(err, "parsing the XML report")
		}
		root, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch root.Name.Local {
		case "coverage":
			return parseCobertura(decoder, root)
		case "report":
			return parseJaCoCo(decoder, root)
		}
		return Report{}, ErrUnrecognized
	}
}

func parseCobertura(decoder *xml.Decoder, root xml.StartElement) (Report, error) {
	doc := coberturaReport{}
	if err := decoder.DecodeElement(&doc, &root); err != nil {
		return Report{}, errors.Wrap(err, "parsing the Cobertura report")
	}
	report := Report{Format: FormatCobertura}
	if doc.LinesValid > 0 {
		report.Covered, report.Lines = doc.LinesCovered, doc.LinesValid
		report.Percent = ratio(doc.LinesCovered, doc.LinesValid)
		return report, nil
	}
	rate, err := strconv.ParseFloat(doc.LineRate, 64)
	if err != nil {
		return report, errors.Wrapf(err, "invalid Cobertura line-rate %q", doc.LineRate)
	}
	report.Percent = rate * 100
	return report, nil
}

func parseJaCoCo(decoder *xml.Decoder, root xml.StartElement) (Report, error) {
	doc := jacocoReport{}
	if err := decoder.DecodeElement(&doc, &root); err != nil {
		return Report{}, errors.Wrap(err, "parsing the JaCoCo report")
	}
	// only the direct children of <report> are the totals
	for _, counter := range doc.Counters {
		if counter.Type == "LINE" {
			lines := counter.Missed + counter.Covered
			return Report{
				Format: FormatJaCoCo, Covered: counter.Covered, Lines: lines,
				Percent: ratio(counter.Covered, lines),
			}, nil
		}
	}
	return Report{}, errors.New("JaCoCo report without the LINE counter")
}

type llvmLines struct {
	Count   int64   `json:"count"`
	Covered int64   `json:"covered"`
	Percent float64 `json:"percent"`
}

type llvmExport struct {
	Type string `json:"type"`
	Data []struct {
		Totals struct {
			Lines llvmLines `json:"lines"`
		} `json:"totals"`
	} `json:"data"`
}

type tarpaulinReport struct {
	Files     []json.RawMessage `json:"files"`
	Coverage  *float64          `json:"coverage"`
	Covered   int64             `json:"covered"`
	Coverable int64             `json:"coverable"`
}

func parseJSON(data []byte) (Report, error) {
	probe := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Report{}, ErrUnrecognized
	}
	if _, exists := probe["coverable"]; exists {
		doc := tarpaulinReport{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return Report{}, errors.Wrap(err, "parsing the tarpaulin report")
		}
		report := Report{Format: FormatTarpaulin, Covered: doc.Covered, Lines: doc.Coverable}
		switch {
		case doc.Coverable > 0:
			report.Percent = ratio(doc.Covered, doc.Coverable)
		case doc.Coverage != nil:
			report.Percent = *doc.Coverage
		}
		return report, nil
	}
	if _, exists := probe["data"]; !exists {
		return Report{}, ErrUnrecognized
	}
	doc := llvmExport{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Report{}, errors.Wrap(err, "parsing the llvm-cov export")
	}
	if doc.Type != "" && !strings.HasPrefix(doc.Type, "llvm.coverage.json.export") {
		return Report{}, ErrUnrecognized
	}
	if len(doc.Data) == 0 {
		return Report{}, errors.New("empty llvm-cov export")
	}
	report := Report{Format: FormatLLVM}
	for _, item := range doc.Data {
		report.Covered += item.Totals.Lines.Covered
		report.Lines += item.Totals.Lines.Count
	}
	if report.Lines > 0 {
		report.Percent = ratio(report.Covered, report.Lines)
	} else {
		report.Percent = doc.Data[0].Totals.Lines.Percent
	}
	return report, nil
}

func parseLCOV(data []byte) (Report, error) {
	report := Report{Format: FormatLCOV}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var target *int64
		switch {
		case strings.HasPrefix(line, "LF:"):
			target = &report.Lines
		case strings.HasPrefix(line, "LH:"):
			target = &report.Covered
		default:
			continue
		}
		value, err := strconv.ParseInt(line[3:], 10, 64)
		if err != nil {
			return report, errors.Wrapf(err, "invalid lcov record %q", line)
		}
		*target += value
	}
	if err := scanner.Err(); err != nil {
		return report, errors.Wrap(err, "reading the lcov report")
	}
	if report.Lines == 0 {
		return report, errors.New("lcov report without LF records")
	}
	report.Percent = ratio(report.Covered, report.Lines)
	return report, nil
}

// parseGoProfile handles the merged profiles where the same block repeats: a block is
// covered if any of its records has a positive count.
func parseGoProfile(data []byte) (Report, error) {
	type block struct {
		statements int64
		covered    bool
	}
	blocks := map[string]*block{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "mode:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return Report{}, errors.Errorf("invalid Go cover profile line %q", line)
		}
		statements, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Report{}, errors.Wrapf(err, "invalid Go cover profile line %q", line)
		}
		count, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Report{}, errors.Wrapf(err, "invalid Go cover profile line %q", line)
		}
		b := blocks[fields[0]]
		if b == nil {
			b = &block{statements: statements}
			blocks[fields[0]] = b
		}
		b.covered = b.covered || count > 0
	}
	if err := scanner.Err(); err != nil {
		return Report{}, errors.Wrap(err, "reading the Go cover profile")
	}
	report := Report{Format: FormatGo}
	for _, b := range blocks {
		report.Lines += b.statements
		if b.covered {
			report.Covered += b.statements
		}
	}
	report.Percent = ratio(report.Covered, report.Lines)
	return report, nil
}

// Merge sums the reports which know the line counts. If none of them does, the first
// report is returned.
func Merge(reports []Report) (Report, bool) {
	if len(reports) == 0 {
		return Report{}, false
	}
	merged := Report{}
	formats := map[string]bool{}
	var names []string
	for _, report := range reports {
		if report.Lines == 0 {
			continue
		}
		merged.Covered += report.Covered
		merged.Lines += report.Lines
		if !formats[report.Format] {
			formats[report.Format] = true
			names = append(names, report.Format)
		}
	}
	if merged.Lines == 0 {
		return reports[0], true
	}
	merged.Format = strings.Join(names, "+")
	merged.Percent = ratio(merged.Covered, merged.Lines)
	return merged, true
}
