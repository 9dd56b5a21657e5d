package plumbing

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
)

// RunsAPI is the part of github.Client used by WorkflowRuns.
type RunsAPI interface {
	ListWorkflowRuns(ctx context.Context, owner, name string, opts github.RunsOptions) (
		[]github.WorkflowRun, error)
}

// WorkflowRuns loads the completed GitHub Actions runs on the default branch inside
// the analysis window.
// It is a PipelineItem.
type WorkflowRuns struct {
	Client  RunsAPI
	MaxRuns int
	// Event filters the runs by the trigger. Empty means any.
	Event string

	window core.Window
	l      core.Logger
}

const (
	// DependencyWorkflowRuns is the name of the dependency provided by WorkflowRuns:
	// []github.WorkflowRun sorted by the creation time.
	DependencyWorkflowRuns = "workflow_runs"

	// ConfigWorkflowRunsMax limits the number of loaded runs per repository.
	ConfigWorkflowRunsMax = "WorkflowRuns.Max"
	// ConfigWorkflowRunsEvent selects the trigger of the loaded runs.
	ConfigWorkflowRunsEvent = "WorkflowRuns.Event"

	// DefaultWorkflowRunsMax is the default value of ConfigWorkflowRunsMax.
	DefaultWorkflowRunsMax = 1000
	// DefaultWorkflowRunsEvent is the default value of ConfigWorkflowRunsEvent.
	DefaultWorkflowRunsEvent = "push"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (runs *WorkflowRuns) Name() string {
	return "WorkflowRuns"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (runs *WorkflowRuns) Provides() []string {
	return []string{DependencyWorkflowRuns}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (runs *WorkflowRuns) Requires() []string {
	return []string{DependencyRepositoryInfo}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (runs *WorkflowRuns) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigWorkflowRunsMax,
		Description: "Maximum number of CI runs loaded per repository.",
		Flag:        "max-runs",
		Type:        core.IntConfigurationOption,
		Default:     DefaultWorkflowRunsMax,
	}, {
		Name:        ConfigWorkflowRunsEvent,
		Description: "Consider only the CI runs triggered by this event; empty means any.",
		Flag:        "runs-event",
		Type:        core.StringConfigurationOption,
		Default:     DefaultWorkflowRunsEvent,
	}}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (runs *WorkflowRuns) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		runs.l = l
	}
	if client, exists := facts[core.FactGitHubClient].(RunsAPI); exists {
		runs.Client = client
	}
	if val, exists := facts[ConfigWorkflowRunsMax].(int); exists {
		runs.MaxRuns = val
	} else {
		runs.MaxRuns = DefaultWorkflowRunsMax
	}
	if val, exists := facts[ConfigWorkflowRunsEvent].(string); exists {
		runs.Event = val
	} else {
		runs.Event = DefaultWorkflowRunsEvent
	}
	if val, exists := facts[core.FactWindow].(core.Window); exists {
		runs.window = val
	}
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (runs *WorkflowRuns) Initialize() error {
	if runs.l == nil {
		runs.l = core.NewLogger()
	}
	if runs.Client == nil {
		return errors.New("the GitHub client is not set")
	}
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (runs *WorkflowRuns) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	info := deps[DependencyRepositoryInfo].(*github.Repository)
	loaded, err := runs.Client.ListWorkflowRuns(ctx, repo.Owner, repo.Name, github.RunsOptions{
		Branch: info.DefaultBranch,
		Event:  runs.Event,
		Status: github.RunStatusCompleted,
		Since:  runs.window.Since,
		Until:  runs.window.Until,
		Max:    runs.MaxRuns,
	})
	if err != nil {
		return nil, err
	}
	result := make([]github.WorkflowRun, 0, len(loaded))
	seen := map[int64]bool{}
	for _, run := range loaded {
		// the status filter is not always honored for the re-run attempts
		if run.Status != github.RunStatusCompleted || seen[run.ID] {
			continue
		}
		seen[run.ID] = true
		result = append(result, run)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if len(result) == 0 {
		runs.l.Infof("%s: no completed CI runs on %s", repo.FullName(), info.DefaultBranch)
	}
	return map[string]interface{}{DependencyWorkflowRuns: result}, nil
}

func init() {
	core.Registry.Register(&WorkflowRuns{})
}
