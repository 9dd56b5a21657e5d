// Package repolist loads the lists of GitHub repositories which are analysed.
package repolist

import (
	"bufio"
	"embed"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
	// Group is the name of the list section which the repository came from. May be empty.
	Group string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the HTTPS clone URL.
func (r Repository) URL() string {
	return "https://github.com/" + r.FullName() + ".git"
}

// SSHURL returns the SSH clone URL.
func (r Repository) SSHURL() string {
	return "git@github.com:" + r.FullName() + ".git"
}

func (r Repository) String() string {
	return r.FullName()
}

// BuiltinPrefix marks the command line arguments which refer to the embedded lists.
const BuiltinPrefix = "builtin:"

//go:embed lists/*.yaml
var builtinLists embed.FS

var (
	slugRegexp  = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+)$`)
	httpsRegexp = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+?)(?:\.git)?(?:/.*)?$`)
	sshRegexp   = regexp.MustCompile(`^(?:ssh://)?git@github\.com[:/]([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+?)(?:\.git)?$`)
)

// Parse converts "owner/name", an HTTPS GitHub URL or an SSH GitHub remote to Repository.
func Parse(s string) (Repository, error) {
	s = strings.TrimSpace(s)
	for _, re := range []*regexp.Regexp{slugRegexp, httpsRegexp, sshRegexp} {
		if m := re.FindStringSubmatch(s); m != nil {
			name := strings.TrimSuffix(m[2], ".git")
			if name == "" || name == "." || name == ".." {
				break
			}
			return Repository{Owner: m[1], Name: name}, nil
		}
	}
	return Repository{}, errors.Errorf("not a GitHub repository: %q", s)
}

// document is the YAML layout of repository lists: either a plain sequence of slugs or
// a mapping with named groups.
type document struct {
	Groups map[string][]string `yaml:"groups"`
	Order  []string            `yaml:"order"`
}

// Load reads the repository list from the file system. YAML files (.yaml, .yml) may
// contain groups, any other file is read as one repository per line.
func Load(path string) ([]Repository, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open the repository list %s", path)
	}
	defer file.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(file)
	default:
		return ReadText(file)
	}
}

// ReadText parses one repository per line. Blank lines and "#" comments are ignored.
func ReadText(reader io.Reader) ([]Repository, error) {
	var result []Repository
	scanner := bufio.NewScanner(reader)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if pos := strings.Index(line, "#"); pos >= 0 {
			line = line[:pos]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		repo, err := Parse(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
		result = append(result, repo)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Dedup(result), nil
}

// ReadYAML parses either a sequence of repositories or the grouped layout:
//
//	groups:
//	  rust: [rust-lang/cargo, tokio-rs/tokio]
//	order: [rust]
//
// Groups are emitted in `order` first and then alphabetically.
func ReadYAML(reader io.Reader) ([]Repository, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "malformed YAML repository list")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	var result []Repository
	if root.Content[0].Kind == yaml.SequenceNode {
		var slugs []string
		if err := root.Content[0].Decode(&slugs); err != nil {
			return nil, errors.Wrap(err, "malformed YAML repository list")
		}
		for _, slug := range slugs {
			repo, err := Parse(slug)
			if err != nil {
				return nil, err
			}
			result = append(result, repo)
		}
		return Dedup(result), nil
	}
	doc := document{}
	if err := root.Content[0].Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "malformed YAML repository list")
	}
	for _, group := range groupOrder(doc) {
		for _, slug := range doc.Groups[group] {
			repo, err := Parse(slug)
			if err != nil {
				return nil, errors.Wrapf(err, "group %s", group)
			}
			repo.Group = group
			result = append(result, repo)
		}
	}
	return Dedup(result), nil
}

func groupOrder(doc document) []string {
	var order []string
	seen := map[string]bool{}
	for _, group := range doc.Order {
		if _, exists := doc.Groups[group]; exists && !seen[group] {
			order = append(order, group)
			seen[group] = true
		}
	}
	var rest []string
	for group := range doc.Groups {
		if !seen[group] {
			rest = append(rest, group)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Dedup removes the repeated repositories, comparing case-insensitively and keeping
// the first occurrence.
func Dedup(repos []Repository) []Repository {
	seen := map[string]bool{}
	result := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		key := strings.ToLower(repo.FullName())
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, repo)
	}
	return result
}

// BuiltinNames returns the names of the embedded lists.
func BuiltinNames() []string {
	entries, err := builtinLists.ReadDir("lists")
	if err != nil {
		panic(err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin returns the embedded list with the specified name.
func Builtin(name string) ([]Repository, error) {
	file, err := builtinLists.Open("lists/" + name + ".yaml")
	if err != nil {
		return nil, errors.Errorf("unknown builtin list %q, available: %s",
			name, strings.Join(BuiltinNames(), ", "))
	}
	defer file.Close()
	return ReadYAML(file)
}

// Resolve expands the command line arguments - list files, "builtin:<name>" or literal
// repositories - into a single ordered list without duplicates.
func Resolve(args []string) ([]Repository, error) {
	var result []Repository
	for _, arg := range args {
		var repos []Repository
		var err error
		switch {
		case strings.HasPrefix(arg, BuiltinPrefix):
			repos, err = Builtin(strings.TrimPrefix(arg, BuiltinPrefix))
		default:
			if stat, statErr := os.Stat(arg); statErr == nil && !stat.IsDir() {
				repos, err = Load(arg)
			} else {
				var repo Repository
				repo, err = Parse(arg)
				repos = []Repository{repo}
			}
		}
		if err != nil {
			return nil, err
		}
		result = append(result, repos...)
	}
	return Dedup(result), nil
}
