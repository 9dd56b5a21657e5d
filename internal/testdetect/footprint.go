package testdetect

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hhatto/gocloc"
	"github.com/pkg/errors"
	"github.com/src-d/enry/v2"
)

// headSize is how much of a file is read to detect its language.
const headSize = 16 * 1024

// SourceFile is a classified file of a checkout.
type SourceFile struct {
	// Path is slash-separated and relative to the root.
	Path     string
	Language string
	Test     bool
}

// Footprint measures how much of the code base is tests.
type Footprint struct {
	// Files is the number of source files in programming languages.
	Files           int
	VendoredFiles   int
	TestFiles       int
	InlineTestFiles int
	CodeLines       int
	TestLines       int
	// TestRatio is TestLines / CodeLines.
	TestRatio       float64
	PrimaryLanguage string
	// Languages maps the language to the number of its code lines, tests included.
	Languages map[string]int
}

// Classify walks the file system and detects the language of every file and whether it is a test.
// Hidden, vendored, documentation and binary files are skipped, and so are the files which are
// not in a programming language. The second result is the number of vendored files.
func Classify(fs billy.Filesystem) ([]SourceFile, int, error) {
	var files []SourceFile
	vendored := 0
	err := util.Walk(fs, "/", func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(walkPath), "/")
		if rel == "" {
			return nil
		}
		if info.IsDir() {
			if enry.IsDotFile(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || enry.IsDotFile(rel) || enry.IsDocumentation(rel) {
			return nil
		}
		if enry.IsVendor(rel) {
			vendored++
			return nil
		}
		head, err := readHead(fs, walkPath)
		if err != nil {
			return err
		}
		if enry.IsBinary(head) {
			return nil
		}
		lang := enry.GetLanguage(filepath.Base(rel), head)
		if lang == "" || enry.GetLanguageType(lang) != enry.Programming {
			return nil
		}
		files = append(files, SourceFile{Path: rel, Language: lang, Test: IsTestFile(rel, lang)})
		return nil
	})
	if err != nil {
		return nil, vendored, errors.Wrap(err, "walking the checkout")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, vendored, nil
}

func readHead(fs billy.Filesystem, name string) ([]byte, error) {
	file, err := fs.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	defer file.Close()
	head, err := io.ReadAll(io.LimitReader(file, headSize))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return head, nil
}

// CountLines returns the number of code lines (blanks and comments excluded) in every file.
// The paths are OS paths; the keys of the result are the same paths.
func CountLines(paths []string) (map[string]int, error) {
	result := map[string]int{}
	if len(paths) == 0 {
		return result, nil
	}
	processor := gocloc.NewProcessor(gocloc.NewDefinedLanguages(), gocloc.NewClocOptions())
	analysis, err := processor.Analyze(paths)
	if err != nil {
		return nil, errors.Wrap(err, "counting lines")
	}
	for _, file := range analysis.Files {
		result[file.Name] = int(file.Code)
	}
	return result, nil
}

// Measure computes Footprint of the directory on disk.
func Measure(dir string) (Footprint, error) {
	fs := osfs.New(dir)
	files, vendored, err := Classify(fs)
	if err != nil {
		return Footprint{}, err
	}
	footprint := Footprint{Files: len(files), VendoredFiles: vendored, Languages: map[string]int{}}
	paths := make([]string, len(files))
	var rustFiles []string
	for i, file := range files {
		paths[i] = filepath.Join(dir, filepath.FromSlash(file.Path))
		if file.Test {
			footprint.TestFiles++
		}
		if file.Language == "Rust" {
			rustFiles = append(rustFiles, file.Path)
		}
	}
	inline, err := InlineRustTests(fs, rustFiles)
	if err != nil {
		return footprint, err
	}
	footprint.InlineTestFiles = len(inline)
	lines, err := CountLines(paths)
	if err != nil {
		return footprint, err
	}
	for i, file := range files {
		n := lines[paths[i]]
		footprint.Languages[file.Language] += n
		if file.Test {
			footprint.TestLines += n
		} else {
			footprint.CodeLines += n
		}
	}
	if footprint.CodeLines > 0 {
		footprint.TestRatio = float64(footprint.TestLines) / float64(footprint.CodeLines)
	}
	footprint.PrimaryLanguage = primaryLanguage(footprint.Languages)
	return footprint, nil
}

func primaryLanguage(languages map[string]int) string {
	best, bestLines := "", -1
	for lang, n := range languages {
		if n > bestLines || (n == bestLines && lang < best) {
			best, bestLines = lang, n
		}
	}
	return best
}
