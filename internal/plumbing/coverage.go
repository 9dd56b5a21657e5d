package plumbing

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/coverage"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
)

// CoverageExtractor finds the line coverage reported by the CI of the repository.
// It is a PipelineItem.
type CoverageExtractor struct {
	Client coverage.API
	// Runs is the number of the newest successful runs to inspect.
	Runs int
	// MaxArtifactMB limits the size of the downloaded archives.
	MaxArtifactMB int
	// ArtifactPattern selects the artifacts by name.
	ArtifactPattern string

	extractor *coverage.Extractor
	l         core.Logger
}

const (
	// DependencyCoverage is the name of the dependency provided by CoverageExtractor:
	// coverage.Coverage.
	DependencyCoverage = "coverage"

	// ConfigCoverageRuns sets how many successful runs are inspected.
	ConfigCoverageRuns = "CoverageExtractor.Runs"
	// ConfigCoverageMaxArtifactMB limits the size of the artifacts and the logs.
	ConfigCoverageMaxArtifactMB = "CoverageExtractor.MaxArtifactMB"
	// ConfigCoverageArtifactPattern is the regular expression which selects the artifacts.
	ConfigCoverageArtifactPattern = "CoverageExtractor.ArtifactPattern"

	// DefaultCoverageMaxArtifactMB is the default value of ConfigCoverageMaxArtifactMB.
	DefaultCoverageMaxArtifactMB = 50
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (ce *CoverageExtractor) Name() string {
	return "CoverageExtractor"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (ce *CoverageExtractor) Provides() []string {
	return []string{DependencyCoverage}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (ce *CoverageExtractor) Requires() []string {
	return []string{DependencyWorkflowRuns}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (ce *CoverageExtractor) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigCoverageRuns,
		Description: "Number of the newest successful CI runs which are searched for the coverage.",
		Flag:        "coverage-runs",
		Type:        core.IntConfigurationOption,
		Default:     coverage.DefaultRuns,
	}, {
		Name:        ConfigCoverageMaxArtifactMB,
		Description: "Maximum size of a downloaded artifact or log archive in megabytes.",
		Flag:        "max-artifact-mb",
		Type:        core.IntConfigurationOption,
		Default:     DefaultCoverageMaxArtifactMB,
	}, {
		Name:        ConfigCoverageArtifactPattern,
		Description: "Regular expression which selects the artifacts with coverage reports by name.",
		Flag:        "coverage-artifacts",
		Type:        core.StringConfigurationOption,
		Default:     coverage.DefaultArtifactPattern,
	}}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (ce *CoverageExtractor) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		ce.l = l
	}
	if client, exists := facts[core.FactGitHubClient].(coverage.API); exists {
		ce.Client = client
	}
	if val, exists := facts[ConfigCoverageRuns].(int); exists {
		ce.Runs = val
	}
	if val, exists := facts[ConfigCoverageMaxArtifactMB].(int); exists {
		ce.MaxArtifactMB = val
	}
	if val, exists := facts[ConfigCoverageArtifactPattern].(string); exists {
		ce.ArtifactPattern = val
	}
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (ce *CoverageExtractor) Initialize() error {
	if ce.l == nil {
		ce.l = core.NewLogger()
	}
	if ce.Client == nil {
		return errors.New("the GitHub client is not set")
	}
	if ce.Runs <= 0 {
		ce.Runs = coverage.DefaultRuns
	}
	if ce.MaxArtifactMB <= 0 {
		ce.MaxArtifactMB = DefaultCoverageMaxArtifactMB
	}
	if ce.ArtifactPattern == "" {
		ce.ArtifactPattern = coverage.DefaultArtifactPattern
	}
	pattern, err := regexp.Compile(ce.ArtifactPattern)
	if err != nil {
		return errors.Wrapf(err, "invalid artifact pattern %q", ce.ArtifactPattern)
	}
	ce.extractor = coverage.NewExtractor(ce.Client, ce.l)
	ce.extractor.Runs = ce.Runs
	ce.extractor.MaxDownload = int64(ce.MaxArtifactMB) << 20
	ce.extractor.ArtifactPattern = pattern
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (ce *CoverageExtractor) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	runs := deps[DependencyWorkflowRuns].([]github.WorkflowRun)
	result, err := ce.extractor.Extract(ctx, repo.Owner, repo.Name, runs)
	if err != nil {
		return nil, err
	}
	if result.Found {
		ce.l.Infof("%s: %.1f%% coverage from %s (%s)", repo.FullName(), result.Percent, result.Source, result.Detail)
	}
	return map[string]interface{}{DependencyCoverage: result}, nil
}

func init() {
	core.Registry.Register(&CoverageExtractor{})
}
