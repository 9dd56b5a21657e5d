package testdetect

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

var rustInlineTest = regexp.MustCompile(`^\s*#\[\s*(cfg\s*\(\s*test\s*\)|test|tokio::test|rstest|test_case)\b`)

// HasInlineRustTests checks whether the Rust source contains a `#[cfg(test)]` module or
// a `#[test]` function. Commented lines are skipped.
func HasInlineRustTests(fs billy.Filesystem, filePath string) (bool, error) {
	file, err := fs.Open(filePath)
	if err != nil {
		return false, errors.Wrapf(err, "opening %s", filePath)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		if rustInlineTest.MatchString(line) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, errors.Wrapf(err, "reading %s", filePath)
	}
	return false, nil
}

// InlineRustTests returns the Rust files among `files` which carry the tests inside.
// Files which are already test files by their path are skipped.
func InlineRustTests(fs billy.Filesystem, files []string) ([]string, error) {
	var result []string
	for _, file := range files {
		if !strings.HasSuffix(file, ".rs") || IsTestFile(file, "Rust") {
			continue
		}
		found, err := HasInlineRustTests(fs, file)
		if err != nil {
			return result, err
		}
		if found {
			result = append(result, file)
		}
	}
	return result, nil
}
