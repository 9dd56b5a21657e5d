package testdetect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type namedPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

var testCommands = []namedPattern{
	{"cargo test", regexp.MustCompile(`\bcargo\s+(\+\S+\s+)?test\b`)},
	{"cargo nextest", regexp.MustCompile(`\bcargo\s+(\+\S+\s+)?nextest\b`)},
	{"go test", regexp.MustCompile(`\bgo\s+test\b`)},
	{"gotestsum", regexp.MustCompile(`\bgotestsum\b`)},
	{"pytest", regexp.MustCompile(`\b(pytest|py\.test)\b`)},
	{"tox", regexp.MustCompile(`\btox\b`)},
	{"nox", regexp.MustCompile(`\bnox\b`)},
	{"unittest", regexp.MustCompile(`\bpython[0-9.]*\s+-m\s+unittest\b`)},
	{"npm test", regexp.MustCompile(`\bnpm\s+(run\s+)?test\b`)},
	{"yarn test", regexp.MustCompile(`\byarn\s+(run\s+)?test\b`)},
	{"pnpm test", regexp.MustCompile(`\bpnpm\s+(run\s+)?test\b`)},
	{"jest", regexp.MustCompile(`\bjest\b`)},
	{"vitest", regexp.MustCompile(`\bvitest\b`)},
	{"mvn test", regexp.MustCompile(`\bmvnw?\b.*\b(test|verify|install)\b`)},
	{"gradle test", regexp.MustCompile(`\bgradlew?\b.*\b(test|check|build)\b`)},
	{"ctest", regexp.MustCompile(`\bctest\b`)},
	{"make test", regexp.MustCompile(`\bmake\b.*\b(test|check)\b`)},
	{"dotnet test", regexp.MustCompile(`\bdotnet\s+test\b`)},
	{"rspec", regexp.MustCompile(`\brspec\b`)},
	{"rake test", regexp.MustCompile(`\brake\s+(test|spec)\b`)},
	{"mix test", regexp.MustCompile(`\bmix\s+test\b`)},
	{"swift test", regexp.MustCompile(`\bswift\s+test\b`)},
	{"bazel test", regexp.MustCompile(`\bbazel(isk)?\s+test\b`)},
}

var coverageTools = []namedPattern{
	{"tarpaulin", regexp.MustCompile(`tarpaulin`)},
	{"llvm-cov", regexp.MustCompile(`llvm-cov`)},
	{"grcov", regexp.MustCompile(`\bgrcov\b`)},
	{"codecov", regexp.MustCompile(`codecov`)},
	{"coveralls", regexp.MustCompile(`coveralls`)},
	{"pytest-cov", regexp.MustCompile(`--cov\b`)},
	{"coverage.py", regexp.MustCompile(`\bcoverage\s+(run|report|xml|lcov)\b`)},
	{"go cover", regexp.MustCompile(`-cover(profile|pkg|mode)?\b`)},
	{"jacoco", regexp.MustCompile(`jacoco`)},
	{"nyc", regexp.MustCompile(`\bnyc\b`)},
	{"c8", regexp.MustCompile(`\bc8\b`)},
	{"jest coverage", regexp.MustCompile(`\bjest\b.*--coverage\b|--coverage\b`)},
	{"gcov", regexp.MustCompile(`\b(gcovr?|lcov)\b`)},
	{"kcov", regexp.MustCompile(`\bkcov\b`)},
	{"simplecov", regexp.MustCompile(`simplecov`)},
}

// WorkflowInspection is what a CI workflow definition reveals.
type WorkflowInspection struct {
	Name     string
	Triggers []string
	Jobs     int
	Steps    int
	// TestCommands are the names of the detected test runners, sorted.
	TestCommands []string
	// CoverageTools are the names of the detected coverage tools, sorted.
	CoverageTools []string
}

// RunsTests checks whether any test runner was detected.
func (wi WorkflowInspection) RunsTests() bool {
	return len(wi.TestCommands) > 0
}

// MeasuresCoverage checks whether any coverage tool was detected.
func (wi WorkflowInspection) MeasuresCoverage() bool {
	return len(wi.CoverageTools) > 0
}

type workflowStep struct {
	Name string                 `yaml:"name"`
	Uses string                 `yaml:"uses"`
	Run  string                 `yaml:"run"`
	With map[string]interface{} `yaml:"with"`
}

type workflowJob struct {
	Name  string         `yaml:"name"`
	Uses  string         `yaml:"uses"`
	Steps []workflowStep `yaml:"steps"`
}

type workflowDocument struct {
	Name string                 `yaml:"name"`
	On   yaml.Node              `yaml:"on"`
	Jobs map[string]workflowJob `yaml:"jobs"`
}

// InspectWorkflow parses the GitHub Actions workflow YAML and detects the test runners and the
// coverage tools in its `run` scripts, `uses` actions and their `with` arguments.
func InspectWorkflow(content []byte) (WorkflowInspection, error) {
	doc := workflowDocument{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return WorkflowInspection{}, errors.Wrap(err, "parsing the workflow")
	}
	result := WorkflowInspection{Name: doc.Name, Jobs: len(doc.Jobs), Triggers: triggers(&doc.On)}
	tests := map[string]bool{}
	coverage := map[string]bool{}
	scan := func(text string) {
		text = strings.ToLower(text)
		for _, p := range testCommands {
			if p.Pattern.MatchString(text) {
				tests[p.Name] = true
			}
		}
		for _, p := range coverageTools {
			if p.Pattern.MatchString(text) {
				coverage[p.Name] = true
			}
		}
	}
	for _, job := range doc.Jobs {
		if job.Uses != "" {
			// reusable workflow
			scan(job.Uses)
		}
		for _, step := range job.Steps {
			result.Steps++
			scan(step.Run)
			if step.Uses == "" {
				continue
			}
			scan(step.Uses)
			args := make([]string, 0, len(step.With))
			for key, val := range step.With {
				args = append(args, fmt.Sprintf("%s %v", key, val))
			}
			sort.Strings(args)
			scan(strings.Join(args, "\n"))
			// actions-rs/cargo@v1 with command: test
			if strings.HasPrefix(strings.ToLower(step.Uses), "actions-rs/cargo") {
				if command, _ := step.With["command"].(string); command != "" {
					scan("cargo " + command + " " + fmt.Sprint(step.With["args"]))
				}
			}
		}
	}
	result.TestCommands = sortedKeys(tests)
	result.CoverageTools = sortedKeys(coverage)
	return result, nil
}

// triggers supports the string, the sequence and the mapping forms of `on`.
func triggers(node *yaml.Node) []string {
	var result []string
	switch node.Kind {
	case yaml.ScalarNode:
		result = append(result, node.Value)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			result = append(result, item.Value)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			result = append(result, node.Content[i].Value)
		}
	}
	sort.Strings(result)
	return result
}

func sortedKeys(set map[string]bool) []string {
	result := make([]string, 0, len(set))
	for key := range set {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
