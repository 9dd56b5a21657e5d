package repolist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]string{
		"rust-lang/cargo":                            "rust-lang/cargo",
		"  tokio-rs/tokio  ":                         "tokio-rs/tokio",
		"https://github.com/tokio-rs/axum":           "tokio-rs/axum",
		"https://github.com/tokio-rs/axum.git":       "tokio-rs/axum",
		"github.com/sharkdp/fd/tree/master/src":      "sharkdp/fd",
		"git@github.com:BurntSushi/ripgrep.git":      "BurntSushi/ripgrep",
		"ssh://git@github.com/clap-rs/clap.git":      "clap-rs/clap",
		"http://www.github.com/hyperium/hyper":       "hyperium/hyper",
		"owner/name.with.dots":                       "owner/name.with.dots",
		"https://github.com/rust-lang/rust-clippy/":  "rust-lang/rust-clippy",
	}
	for input, expected := range cases {
		repo, err := Parse(input)
		if assert.NoError(t, err, input) {
			assert.Equal(t, expected, repo.FullName(), input)
		}
	}
	for _, input := range []string{"", "cargo", "https://gitlab.com/a/b", "a/b/c", "-a/b", "a/.."} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}
}

func TestRepositoryURL(t *testing.T) {
	repo := Repository{Owner: "tokio-rs", Name: "tokio"}
	assert.Equal(t, "https://github.com/tokio-rs/tokio.git", repo.URL())
	assert.Equal(t, "git@github.com:tokio-rs/tokio.git", repo.SSHURL())
	assert.Equal(t, "tokio-rs/tokio", repo.String())
}

func TestReadText(t *testing.T) {
	repos, err := ReadText(strings.NewReader(`
# header
rust-lang/cargo
https://github.com/tokio-rs/tokio # trailing comment

Rust-Lang/Cargo
`))
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "rust-lang/cargo", repos[0].FullName())
	assert.Equal(t, "tokio-rs/tokio", repos[1].FullName())

	_, err = ReadText(strings.NewReader("rust-lang/cargo\nnot a repo\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadYAMLSequence(t *testing.T) {
	repos, err := ReadYAML(strings.NewReader("- a/b\n- c/d\n- a/b\n"))
	require.NoError(t, err)
	assert.Equal(t, []Repository{{Owner: "a", Name: "b"}, {Owner: "c", Name: "d"}}, repos)
}

func TestReadYAMLGroups(t *testing.T) {
	repos, err := ReadYAML(strings.NewReader(`
order: [second]
groups:
  first: [a/one]
  second: [b/two, b/three]
  zeta: [z/last]
`))
	require.NoError(t, err)
	require.Len(t, repos, 4)
	assert.Equal(t, Repository{Owner: "b", Name: "two", Group: "second"}, repos[0])
	assert.Equal(t, Repository{Owner: "b", Name: "three", Group: "second"}, repos[1])
	assert.Equal(t, Repository{Owner: "a", Name: "one", Group: "first"}, repos[2])
	assert.Equal(t, "zeta", repos[3].Group)

	_, err = ReadYAML(strings.NewReader("groups:\n  bad: [nope]\n"))
	assert.Error(t, err)
	_, err = ReadYAML(strings.NewReader("groups: [\n"))
	assert.Error(t, err)
	repos, err = ReadYAML(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, repos)
}

func TestBuiltin(t *testing.T) {
	names := BuiltinNames()
	assert.Contains(t, names, "rust")
	assert.Contains(t, names, "ci-theater-sample")
	repos, err := Builtin("rust")
	require.NoError(t, err)
	assert.Equal(t, "rust-lang/cargo", repos[0].FullName())
	assert.Equal(t, "tooling", repos[0].Group)
	_, err = Builtin("nonexistent")
	assert.Error(t, err)
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "repos.txt")
	require.NoError(t, os.WriteFile(text, []byte("a/b\nc/d\n"), 0644))
	yml := filepath.Join(dir, "repos.yml")
	require.NoError(t, os.WriteFile(yml, []byte("groups:\n  g: [c/d, e/f]\n"), 0644))

	repos, err := Load(yml)
	require.NoError(t, err)
	assert.Len(t, repos, 2)

	repos, err = Resolve([]string{text, yml, "g/h", "A/B"})
	require.NoError(t, err)
	var names []string
	for _, repo := range repos {
		names = append(names, repo.FullName())
	}
	assert.Equal(t, []string{"a/b", "c/d", "e/f", "g/h"}, names)

	repos, err = Resolve([]string{"builtin:ci-theater-sample"})
	require.NoError(t, err)
	assert.NotEmpty(t, repos)

	_, err = Resolve([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
