package coverage

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// maxEntrySize limits the uncompressed size of a single archive entry.
const maxEntrySize = 256 << 20

var reportExtensions = map[string]bool{
	".xml": true, ".json": true, ".info": true, ".lcov": true, ".out": true, ".txt": true,
	".cov": true, ".profile": true, "": true,
}

type entry struct {
	Name string
	Data []byte
}

func readArchive(data []byte, accept func(name string) bool) ([]entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "opening the zip archive")
	}
	var entries []entry
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !accept(file.Name) {
			continue
		}
		if file.UncompressedSize64 > maxEntrySize {
			continue
		}
		body, err := readEntry(file)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry{Name: file.Name, Data: body})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	stream, err := file.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file.Name)
	}
	defer stream.Close()
	body, err := io.ReadAll(io.LimitReader(stream, maxEntrySize))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", file.Name)
	}
	return body, nil
}

// ReportsFromArchive parses every coverage report inside the artifact zip. Unrecognized
// files are skipped. The second result lists the names of the parsed entries.
func ReportsFromArchive(data []byte) ([]Report, []string, error) {
	entries, err := readArchive(data, func(name string) bool {
		return reportExtensions[strings.ToLower(path.Ext(name))]
	})
	if err != nil {
		return nil, nil, err
	}
	var reports []Report
	var names []string
	for _, e := range entries {
		report, err := ParseReport(e.Data)
		if err != nil {
			continue
		}
		reports = append(reports, report)
		names = append(names, e.Name)
	}
	return reports, names, nil
}

// ScanLogArchive searches all the job logs in the archive returned by the run logs endpoint.
// The second result is the name of the log with the hit.
func ScanLogArchive(data []byte) (Hit, string, bool, error) {
	entries, err := readArchive(data, func(name string) bool {
		return strings.HasSuffix(strings.ToLower(name), ".txt")
	})
	if err != nil {
		return Hit{}, "", false, err
	}
	var best Hit
	var where string
	found := false
	for _, e := range entries {
		hit, ok := ScanLog(e.Data)
		if ok && (!found || hit.rank > best.rank) {
			best, where, found = hit, e.Name, true
		}
	}
	return best, where, found, nil
}
