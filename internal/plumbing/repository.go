package plumbing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
)

// RepositoryMetadata fetches the GitHub description of every repository: the default branch,
// the primary language, whether it is archived or a fork.
// It is a PipelineItem.
type RepositoryMetadata struct {
	Client RepositoryAPI

	l core.Logger
}

// RepositoryAPI is the part of github.Client used by RepositoryMetadata.
type RepositoryAPI interface {
	Repository(ctx context.Context, owner, name string) (*github.Repository, error)
}

const (
	// DependencyRepositoryInfo is the name of the dependency provided by RepositoryMetadata:
	// *github.Repository.
	DependencyRepositoryInfo = "repository_info"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (meta *RepositoryMetadata) Name() string {
	return "RepositoryMetadata"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
// Each produced entity will be inserted into `deps` of dependent Consume()-s according
// to this list. Also used by core.Registry to build the global map of providers.
func (meta *RepositoryMetadata) Provides() []string {
	return []string{DependencyRepositoryInfo}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
// Each requested entity will be inserted into `deps` of Consume(). In turn, those
// entities are Provides() upstream.
func (meta *RepositoryMetadata) Requires() []string {
	return []string{}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (meta *RepositoryMetadata) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (meta *RepositoryMetadata) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		meta.l = l
	}
	if client, exists := facts[core.FactGitHubClient].(RepositoryAPI); exists {
		meta.Client = client
	}
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (meta *RepositoryMetadata) Initialize() error {
	if meta.l == nil {
		meta.l = core.NewLogger()
	}
	if meta.Client == nil {
		return errors.New("the GitHub client is not set")
	}
	return nil
}

// Consume runs this PipelineItem on the next repository.
// `deps` contain all the results from upstream PipelineItem-s as requested by Requires().
// Additionally, DependencyRepository is always present there and represents the analysed
// repolist.Repository.
func (meta *RepositoryMetadata) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	info, err := meta.Client.Repository(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}
	if info.DefaultBranch == "" {
		// empty repositories do not have it
		info.DefaultBranch = "main"
	}
	if info.Archived {
		meta.l.Infof("%s is archived", repo.FullName())
	}
	return map[string]interface{}{DependencyRepositoryInfo: info}, nil
}

func init() {
	core.Registry.Register(&RepositoryMetadata{})
}
