package testdetect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustLib = `pub fn add(a: i32, b: i32) -> i32 {
    a + b
}

#[cfg(test)]
mod tests {
    #[test]
    fn it_works() {
        assert_eq!(super::add(1, 2), 3);
    }
}
`

func TestIsTestFile(t *testing.T) {
	cases := []struct {
		path, lang string
		test       bool
	}{
		{"main_test.go", "Go", true},
		{"pkg/a/b_test.go", "Go", true},
		{"pkg/a/b.go", "Go", false},
		{"tests/integration.rs", "Rust", true},
		{"crates/foo/tests/it.rs", "Rust", true},
		{"src/lib.rs", "Rust", false},
		{"test_api.py", "Python", true},
		{"pkg/tests/helpers.py", "Python", true},
		{"pkg/api.py", "Python", false},
		{"src/app.test.ts", "TypeScript", true},
		{"src/__tests__/app.js", "JavaScript", true},
		{"src/app.js", "JavaScript", false},
		{"core/src/test/java/org/FooTest.java", "Java", true},
		{"core/src/main/java/org/Foo.java", "Java", false},
		{"spec/models/user_spec.rb", "Ruby", true},
		{"./pkg/x_test.go", "", true},
		{"README", "", false},
		{"main_test.go", "Rust", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.test, IsTestFile(c.path, c.lang), c.path)
	}
	assert.Contains(t, Languages(), "Rust")
	assert.Contains(t, Languages(), "Go")
}

func TestInlineRustTests(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "src/lib.rs", []byte(rustLib), 0644))
	require.NoError(t, util.WriteFile(fs, "src/main.rs", []byte("fn main() {}\n// #[test]\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "src/net.rs", []byte("  #[tokio::test]\n  async fn x() {}\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "tests/it.rs", []byte("#[test]\nfn it() {}\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "build.py", []byte("#[test]\n"), 0644))
	found, err := InlineRustTests(fs, []string{"src/lib.rs", "src/main.rs", "src/net.rs", "tests/it.rs", "build.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.rs", "src/net.rs"}, found)
	_, err = HasInlineRustTests(fs, "missing.rs")
	assert.Error(t, err)
}

func TestClassifyMemfs(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "main.go", []byte("package main\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "main_test.go", []byte("package main\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "vendor/x/x.go", []byte("package x\n"), 0644))
	require.NoError(t, util.WriteFile(fs, ".github/workflows/ci.go", []byte("package ci\n"), 0644))
	files, vendored, err := Classify(fs)
	require.NoError(t, err)
	assert.Equal(t, 1, vendored)
	require.Len(t, files, 2)
	assert.Equal(t, SourceFile{Path: "main.go", Language: "Go"}, files[0])
	assert.Equal(t, SourceFile{Path: "main_test.go", Language: "Go", Test: true}, files[1])
}

func writeFile(t *testing.T, root, name, content string) {
	full := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestMeasure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\n// comment\nfunc main() {\n}\n")
	writeFile(t, root, "main_test.go", "package main\n\nimport \"testing\"\n\nfunc TestMain(t *testing.T) {\n}\n")
	writeFile(t, root, "src/lib.rs", rustLib)
	writeFile(t, root, "tests/it.rs", "#[test]\nfn integration() {\n}\n")
	writeFile(t, root, "vendor/lib/x.go", "package x\n")
	writeFile(t, root, "README.md", "# hello\n")
	writeFile(t, root, ".github/workflows/ci.yml", "on: push\n")
	footprint, err := Measure(root)
	require.NoError(t, err)
	assert.Equal(t, 4, footprint.Files)
	assert.Equal(t, 1, footprint.VendoredFiles)
	assert.Equal(t, 2, footprint.TestFiles)
	assert.Equal(t, 1, footprint.InlineTestFiles)
	assert.Equal(t, 13, footprint.CodeLines)
	assert.Equal(t, 7, footprint.TestLines)
	assert.InDelta(t, 7.0/13, footprint.TestRatio, 1e-9)
	assert.Equal(t, map[string]int{"Go": 7, "Rust": 13}, footprint.Languages)
	assert.Equal(t, "Rust", footprint.PrimaryLanguage)
}

func TestMeasureEmpty(t *testing.T) {
	footprint, err := Measure(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, footprint.Files)
	assert.Equal(t, 0.0, footprint.TestRatio)
	assert.Equal(t, "", footprint.PrimaryLanguage)
}

func TestPrimaryLanguageTie(t *testing.T) {
	assert.Equal(t, "C", primaryLanguage(map[string]int{"Go": 5, "C": 5}))
	assert.Equal(t, "Go", primaryLanguage(map[string]int{"Go": 6, "C": 5}))
}

const rustWorkflow = `
name: CI
on:
  push:
    branches: [main]
  pull_request:
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - uses: dtolnay/rust-toolchain@stable
      - run: cargo +nightly test --all-features
  coverage:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Install
        run: cargo install cargo-tarpaulin
      - run: |
          cargo tarpaulin --out Xml
      - uses: codecov/codecov-action@v4
  legacy:
    runs-on: ubuntu-latest
    steps:
      - uses: actions-rs/cargo@v1
        with:
          command: nextest
          args: run
`

func TestInspectWorkflow(t *testing.T) {
	inspection, err := InspectWorkflow([]byte(rustWorkflow))
	require.NoError(t, err)
	assert.Equal(t, "CI", inspection.Name)
	assert.Equal(t, []string{"pull_request", "push"}, inspection.Triggers)
	assert.Equal(t, 3, inspection.Jobs)
	assert.Equal(t, 8, inspection.Steps)
	assert.Equal(t, []string{"cargo nextest", "cargo test"}, inspection.TestCommands)
	assert.Equal(t, []string{"codecov", "tarpaulin"}, inspection.CoverageTools)
	assert.True(t, inspection.RunsTests())
	assert.True(t, inspection.MeasuresCoverage())
}

func TestInspectWorkflowForms(t *testing.T) {
	inspection, err := InspectWorkflow([]byte("on: push\njobs:\n  b:\n    steps:\n      - run: go test -coverprofile=c.out ./...\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"push"}, inspection.Triggers)
	assert.Equal(t, []string{"go test"}, inspection.TestCommands)
	assert.Equal(t, []string{"go cover"}, inspection.CoverageTools)

	inspection, err = InspectWorkflow([]byte("on: [push, schedule]\njobs:\n  lint:\n    steps:\n      - run: cargo clippy\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"push", "schedule"}, inspection.Triggers)
	assert.False(t, inspection.RunsTests())
	assert.False(t, inspection.MeasuresCoverage())

	inspection, err = InspectWorkflow([]byte("on: push\njobs:\n  py:\n    steps:\n      - run: python -m pytest --cov=pkg\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"pytest"}, inspection.TestCommands)
	assert.Equal(t, []string{"pytest-cov"}, inspection.CoverageTools)

	_, err = InspectWorkflow([]byte("jobs: [unclosed"))
	assert.Error(t, err)
}
