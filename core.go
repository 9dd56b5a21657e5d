package citheater

import (
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/leaves"
	"github.com/rvishravars/citheater/internal/plumbing"
)

// ConfigurationOptionType represents the possible types of a ConfigurationOption's value.
type ConfigurationOptionType = core.ConfigurationOptionType

const (
	// BoolConfigurationOption reflects the boolean value type.
	BoolConfigurationOption = core.BoolConfigurationOption
	// IntConfigurationOption reflects the integer value type.
	IntConfigurationOption = core.IntConfigurationOption
	// StringConfigurationOption reflects the string value type.
	StringConfigurationOption = core.StringConfigurationOption
	// FloatConfigurationOption reflects a floating point value type.
	FloatConfigurationOption = core.FloatConfigurationOption
	// StringsConfigurationOption reflects the array of strings value type.
	StringsConfigurationOption = core.StringsConfigurationOption
	// PathConfigurationOption reflects the file system path value type.
	PathConfigurationOption = core.PathConfigurationOption
)

// ConfigurationOption allows for the unified, retrospective way to setup PipelineItem-s.
type ConfigurationOption = core.ConfigurationOption

// PipelineItem is the interface for all the units in the repository analysis pipeline.
type PipelineItem = core.PipelineItem

// LeafPipelineItem corresponds to the top level pipeline items which produce the end results.
type LeafPipelineItem = core.LeafPipelineItem

// CSVPipelineItem is the leaf which can represent its result as a table.
type CSVPipelineItem = core.CSVPipelineItem

// ReleasablePipelineItem frees the per-repository resources.
type ReleasablePipelineItem = core.ReleasablePipelineItem

// DisposablePipelineItem enables resources cleanup after finishing running the pipeline.
type DisposablePipelineItem = core.DisposablePipelineItem

// CommonAnalysisResult holds the information which is always extracted at Pipeline.Run().
type CommonAnalysisResult = core.CommonAnalysisResult

// MetadataToCommonAnalysisResult copies the data from a Protobuf message.
func MetadataToCommonAnalysisResult(meta *core.Metadata) *CommonAnalysisResult {
	return core.MetadataToCommonAnalysisResult(meta)
}

// Pipeline is the core entity which carries several PipelineItems and executes them
// on every repository of a list.
type Pipeline = core.Pipeline

const (
	// ConfigPipelineDAGPath is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which enables saving the items DAG to the specified file.
	ConfigPipelineDAGPath = core.ConfigPipelineDAGPath
	// ConfigPipelineDryRun is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which disables Configure() and Initialize() invocation on each PipelineItem during the
	// Pipeline initialization.
	ConfigPipelineDryRun = core.ConfigPipelineDryRun
	// ConfigPipelineWorkers sets the number of repositories processed in parallel.
	ConfigPipelineWorkers = core.ConfigPipelineWorkers
	// ConfigPipelineFailFast aborts the run on the first failed repository.
	ConfigPipelineFailFast = core.ConfigPipelineFailFast
	// ConfigLogger is the key for the pipeline's logger.
	ConfigLogger = core.ConfigLogger
	// FactGitHubClient carries the *github.Client shared by all the pipeline items.
	FactGitHubClient = core.FactGitHubClient
	// FactGitHubToken carries the token which authenticates git clones over HTTPS.
	FactGitHubToken = core.FactGitHubToken
	// FactWindow carries the resolved analysis Window.
	FactWindow = core.FactWindow
	// MessageFinalize is the status text reported before calling LeafPipelineItem.Finalize()-s.
	MessageFinalize = core.MessageFinalize
	// DependencyRepository is the analysed repository in `deps`.
	DependencyRepository = core.DependencyRepository
	// DependencyCommits is the commit history of the default branch.
	DependencyCommits = plumbing.DependencyCommits
	// DependencyWorkflowRuns are the completed CI runs on the default branch.
	DependencyWorkflowRuns = plumbing.DependencyWorkflowRuns
	// DependencyCoverage is the coverage reported by CI.
	DependencyCoverage = plumbing.DependencyCoverage
)

// NewPipeline initializes a new instance of Pipeline struct.
func NewPipeline() *Pipeline {
	return core.NewPipeline()
}

// GitHubOptions configure NewGitHubClient().
type GitHubOptions = github.Options

// GitHubClient talks to the GitHub REST and GraphQL APIs.
type GitHubClient = github.Client

// NewGitHubClient creates the client which must be set as FactGitHubClient.
func NewGitHubClient(opts GitHubOptions) *GitHubClient {
	return github.NewClient(opts)
}

// CITheaterResult is returned by the "ci-theater" analysis.
type CITheaterResult = leaves.CITheaterResult

// Window is the time range in which commits and CI runs are taken into account.
type Window = core.Window

// Logger is the logging interface of the pipeline items.
type Logger = core.Logger

// NewLogger returns the default logger which writes to stderr.
func NewLogger() Logger {
	return core.NewLogger()
}

// PipelineItemRegistry contains all the known PipelineItem-s.
type PipelineItemRegistry = core.PipelineItemRegistry

// Registry contains all known pipeline item types.
var Registry = core.Registry

func init() {
	// link the analyses
	_ = leaves.CITheaterAnalysis{}
}
