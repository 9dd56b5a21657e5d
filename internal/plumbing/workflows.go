package plumbing

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/testdetect"
	"golang.org/x/sync/errgroup"
)

// WorkflowsAPI is the part of github.Client used by Workflows.
type WorkflowsAPI interface {
	ListWorkflows(ctx context.Context, owner, name string) ([]github.Workflow, error)
	FileContent(ctx context.Context, owner, name, path, ref string) ([]byte, error)
}

// WorkflowFile is a GitHub Actions workflow definition together with what it reveals.
type WorkflowFile struct {
	github.Workflow
	Content    []byte
	Inspection testdetect.WorkflowInspection
	// Parsed is false if the file could not be loaded or parsed.
	Parsed bool
}

// Workflows fetches and inspects the GitHub Actions workflow definitions of the default branch.
// It is a PipelineItem.
type Workflows struct {
	Client WorkflowsAPI
	// Concurrency is the number of files fetched in parallel.
	Concurrency int

	l core.Logger
}

const (
	// DependencyWorkflows is the name of the dependency provided by Workflows: []WorkflowFile
	// sorted by path.
	DependencyWorkflows = "workflows"

	// DefaultWorkflowsConcurrency is the default value of Workflows.Concurrency.
	DefaultWorkflowsConcurrency = 4

	workflowsDir = ".github/workflows/"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (wf *Workflows) Name() string {
	return "Workflows"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (wf *Workflows) Provides() []string {
	return []string{DependencyWorkflows}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (wf *Workflows) Requires() []string {
	return []string{DependencyRepositoryInfo}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (wf *Workflows) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (wf *Workflows) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		wf.l = l
	}
	if client, exists := facts[core.FactGitHubClient].(WorkflowsAPI); exists {
		wf.Client = client
	}
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (wf *Workflows) Initialize() error {
	if wf.l == nil {
		wf.l = core.NewLogger()
	}
	if wf.Concurrency <= 0 {
		wf.Concurrency = DefaultWorkflowsConcurrency
	}
	if wf.Client == nil {
		return errors.New("the GitHub client is not set")
	}
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (wf *Workflows) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	info := deps[DependencyRepositoryInfo].(*github.Repository)
	workflows, err := wf.Client.ListWorkflows(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}
	files := make([]WorkflowFile, len(workflows))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(wf.Concurrency)
	for i, workflow := range workflows {
		files[i].Workflow = workflow
		// the dynamic workflows like CodeQL default setup have no file
		if !strings.HasPrefix(workflow.Path, workflowsDir) {
			continue
		}
		i, workflow := i, workflow
		group.Go(func() error {
			content, err := wf.Client.FileContent(groupCtx, repo.Owner, repo.Name, workflow.Path, info.DefaultBranch)
			if err != nil {
				switch {
				case github.IsRateLimit(err) || groupCtx.Err() != nil:
					return err
				case github.IsNotFound(err):
					wf.l.Warnf("%s: %s is listed but does not exist", repo.FullName(), workflow.Path)
				default:
					wf.l.Warnf("%s: skipped %s: %v", repo.FullName(), workflow.Path, err)
				}
				return nil
			}
			files[i].Content = content
			inspection, err := testdetect.InspectWorkflow(content)
			if err != nil {
				wf.l.Warnf("%s: %s: %v", repo.FullName(), workflow.Path, err)
				return nil
			}
			files[i].Inspection = inspection
			files[i].Parsed = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return map[string]interface{}{DependencyWorkflows: files}, nil
}

// MergeInspections unites what the active workflows reveal. Disabled workflows are skipped.
func MergeInspections(files []WorkflowFile) testdetect.WorkflowInspection {
	tests := map[string]bool{}
	coverage := map[string]bool{}
	triggers := map[string]bool{}
	result := testdetect.WorkflowInspection{}
	for _, file := range files {
		if !file.Parsed || (file.State != "" && file.State != "active") {
			continue
		}
		result.Jobs += file.Inspection.Jobs
		result.Steps += file.Inspection.Steps
		for _, name := range file.Inspection.TestCommands {
			tests[name] = true
		}
		for _, name := range file.Inspection.CoverageTools {
			coverage[name] = true
		}
		for _, name := range file.Inspection.Triggers {
			triggers[name] = true
		}
	}
	result.TestCommands = sortedSet(tests)
	result.CoverageTools = sortedSet(coverage)
	result.Triggers = sortedSet(triggers)
	return result
}

func sortedSet(set map[string]bool) []string {
	result := make([]string, 0, len(set))
	for key := range set {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

func init() {
	core.Registry.Register(&Workflows{})
}
