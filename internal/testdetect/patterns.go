// Package testdetect finds tests in a checkout and in CI workflow definitions.
package testdetect

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// testGlobs maps the language names reported by enry to the patterns of test files.
var testGlobs = map[string][]string{
	"Go":         {"**/*_test.go"},
	"Rust":       {"tests/**/*.rs", "**/tests/**/*.rs", "**/*_test.rs", "**/test_*.rs"},
	"Python":     {"**/test_*.py", "**/*_test.py", "**/tests/**/*.py", "**/test/**/*.py", "**/conftest.py"},
	"JavaScript": {"**/*.{test,spec}.{js,jsx,mjs,cjs}", "**/__tests__/**/*.{js,jsx,mjs,cjs}", "**/test/**/*.{js,mjs,cjs}"},
	"TypeScript": {"**/*.{test,spec}.{ts,tsx}", "**/__tests__/**/*.{ts,tsx}", "**/test/**/*.ts"},
	"TSX":        {"**/*.{test,spec}.tsx", "**/__tests__/**/*.tsx"},
	"Java":       {"**/src/test/**/*.java", "**/*Test.java", "**/*Tests.java", "**/*IT.java"},
	"Kotlin":     {"**/src/test/**/*.kt", "**/*Test.kt", "**/*Tests.kt"},
	"Scala":      {"**/src/test/**/*.scala", "**/*Spec.scala", "**/*Test.scala"},
	"C":          {"**/test/**/*.{c,h}", "**/tests/**/*.{c,h}", "**/*_test.c", "**/test_*.c"},
	"C++":        {"**/test/**/*.{cc,cpp,cxx,h,hh,hpp}", "**/tests/**/*.{cc,cpp,cxx,h,hh,hpp}", "**/*_{test,unittest}.{cc,cpp,cxx}"},
	"C#":         {"**/*Tests/**/*.cs", "**/*Test/**/*.cs", "**/*Tests.cs", "**/*Test.cs"},
	"Ruby":       {"**/spec/**/*_spec.rb", "**/test/**/*_test.rb", "**/test/**/test_*.rb"},
	"PHP":        {"**/tests/**/*Test.php", "**/*Test.php"},
	"Swift":      {"**/Tests/**/*.swift", "**/*Tests.swift"},
	"Elixir":     {"**/test/**/*_test.exs"},
	"Haskell":    {"**/test/**/*.hs", "**/tests/**/*.hs"},
	"Shell":      {"**/test/**/*.{sh,bats}", "**/tests/**/*.{sh,bats}", "**/*.bats"},
}

// Languages returns the names of the languages with known test layouts.
func Languages() []string {
	result := make([]string, 0, len(testGlobs))
	for lang := range testGlobs {
		result = append(result, lang)
	}
	sort.Strings(result)
	return result
}

// IsTestFile checks whether the slash-separated relative path is a test of the language.
// If language is empty, the patterns of all the languages are tried.
func IsTestFile(filePath, language string) bool {
	filePath = strings.TrimPrefix(path.Clean("/"+filePath), "/")
	if language != "" {
		return matchAny(testGlobs[language], filePath)
	}
	for _, globs := range testGlobs {
		if matchAny(globs, filePath) {
			return true
		}
	}
	return false
}

func matchAny(globs []string, filePath string) bool {
	for _, glob := range globs {
		// the patterns are constant and valid
		if matched, _ := doublestar.Match(glob, filePath); matched {
			return true
		}
	}
	return false
}
