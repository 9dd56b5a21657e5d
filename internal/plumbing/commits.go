package plumbing

import (
	"context"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
)

// CommitRecord is a commit on the default branch.
type CommitRecord struct {
	SHA  string
	When time.Time
}

// CommitsAPI is the part of github.Client used by CommitHistory.
type CommitsAPI interface {
	ListCommits(ctx context.Context, owner, name string, opts github.CommitsOptions) ([]github.Commit, error)
	CommitHistoryGraphQL(ctx context.Context, owner, name string, since, until time.Time, max int) (
		[]github.Commit, error)
}

// CommitHistory lists the commits of the default branch inside the analysis window.
// It is a PipelineItem.
type CommitHistory struct {
	Client CommitsAPI
	// Source is one of CommitSourceAPI, CommitSourceGraphQL, CommitSourceGit.
	Source     string
	MaxCommits int

	window core.Window
	remote gitRemote
	l      core.Logger
}

const (
	// DependencyCommits is the name of the dependency provided by CommitHistory: []CommitRecord
	// sorted by time.
	DependencyCommits = "commits"

	// ConfigCommitHistorySource selects where the commits are taken from.
	ConfigCommitHistorySource = "CommitHistory.Source"
	// ConfigCommitHistoryMaxCommits limits the number of commits per repository.
	ConfigCommitHistoryMaxCommits = "CommitHistory.MaxCommits"

	// CommitSourceAPI lists the commits with the REST API.
	CommitSourceAPI = "api"
	// CommitSourceGraphQL walks the history with the GraphQL API.
	CommitSourceGraphQL = "graphql"
	// CommitSourceGit clones the repository into memory and walks the log.
	CommitSourceGit = "git"

	// DefaultCommitHistoryMaxCommits is the default value of ConfigCommitHistoryMaxCommits.
	DefaultCommitHistoryMaxCommits = 10000
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (history *CommitHistory) Name() string {
	return "CommitHistory"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (history *CommitHistory) Provides() []string {
	return []string{DependencyCommits}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (history *CommitHistory) Requires() []string {
	return []string{DependencyRepositoryInfo}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (history *CommitHistory) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigCommitHistorySource,
		Description: "Where to take the commits from: \"api\", \"graphql\" or \"git\".",
		Flag:        "commits-source",
		Type:        core.StringConfigurationOption,
		Default:     CommitSourceAPI,
	}, {
		Name:        ConfigCommitHistoryMaxCommits,
		Description: "Maximum number of commits loaded per repository.",
		Flag:        "max-commits",
		Type:        core.IntConfigurationOption,
		Default:     DefaultCommitHistoryMaxCommits,
	}, sshIdentityOption()}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (history *CommitHistory) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		history.l = l
	}
	if client, exists := facts[core.FactGitHubClient].(CommitsAPI); exists {
		history.Client = client
	}
	if val, exists := facts[ConfigCommitHistorySource].(string); exists {
		history.Source = val
	}
	if val, exists := facts[ConfigCommitHistoryMaxCommits].(int); exists {
		history.MaxCommits = val
	}
	if val, exists := facts[core.FactWindow].(core.Window); exists {
		history.window = val
	}
	history.remote.configure(facts)
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (history *CommitHistory) Initialize() error {
	if history.l == nil {
		history.l = core.NewLogger()
	}
	if history.Source == "" {
		history.Source = CommitSourceAPI
	}
	if history.MaxCommits == 0 {
		history.MaxCommits = DefaultCommitHistoryMaxCommits
	}
	switch history.Source {
	case CommitSourceAPI, CommitSourceGraphQL:
		if history.Client == nil {
			return errors.New("the GitHub client is not set")
		}
	case CommitSourceGit:
	default:
		return errors.Errorf("unknown commits source: %s", history.Source)
	}
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (history *CommitHistory) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	info := deps[DependencyRepositoryInfo].(*github.Repository)
	var records []CommitRecord
	var err error
	switch history.Source {
	case CommitSourceGit:
		records, err = history.fromGit(ctx, repo, info.DefaultBranch)
	case CommitSourceGraphQL:
		var commits []github.Commit
		commits, err = history.Client.CommitHistoryGraphQL(
			ctx, repo.Owner, repo.Name, history.window.Since, history.window.Until, history.MaxCommits)
		records = fromAPI(commits)
	default:
		var commits []github.Commit
		commits, err = history.Client.ListCommits(ctx, repo.Owner, repo.Name, github.CommitsOptions{
			Branch: info.DefaultBranch,
			Since:  history.window.Since,
			Until:  history.window.Until,
			Max:    history.MaxCommits,
		})
		records = fromAPI(commits)
	}
	if err != nil {
		return nil, err
	}
	if len(records) >= history.MaxCommits && history.MaxCommits > 0 {
		history.l.Warnf("%s: the history was truncated to %d commits", repo.FullName(), history.MaxCommits)
	}
	return map[string]interface{}{DependencyCommits: normalizeCommits(records, history.window)}, nil
}

func fromAPI(commits []github.Commit) []CommitRecord {
	records := make([]CommitRecord, 0, len(commits))
	for _, commit := range commits {
		records = append(records, CommitRecord{SHA: commit.SHA, When: commit.When()})
	}
	return records
}

// normalizeCommits drops the duplicates and the commits outside the window and sorts by time.
func normalizeCommits(records []CommitRecord, window core.Window) []CommitRecord {
	seen := map[string]bool{}
	result := make([]CommitRecord, 0, len(records))
	for _, record := range records {
		if seen[record.SHA] {
			continue
		}
		if !window.Since.IsZero() && !window.Contains(record.When) {
			continue
		}
		seen[record.SHA] = true
		result = append(result, record)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].When.Before(result[j].When) })
	return result
}

func (history *CommitHistory) fromGit(ctx context.Context, repo repolist.Repository, branch string) (
	[]CommitRecord, error) {
	uri, auth, err := history.remote.endpoint(repo)
	if err != nil {
		return nil, err
	}
	repository, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:           uri,
		Auth:          auth,
		ReferenceName: gitplumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		NoCheckout:    true,
		Tags:          git.NoTags,
	})
	if err == transport.ErrEmptyRemoteRepository {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to clone %s", uri)
	}
	return walkHistory(repository, history.window, history.MaxCommits)
}

// walkHistory lists the commits reachable from HEAD inside the window, newest first.
func walkHistory(repository *git.Repository, window core.Window, max int) ([]CommitRecord, error) {
	head, err := repository.Head()
	if err == gitplumbing.ErrReferenceNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve HEAD")
	}
	options := &git.LogOptions{From: head.Hash()}
	if !window.Since.IsZero() {
		options.Since = &window.Since
		options.Until = &window.Until
	}
	iter, err := repository.Log(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk the history")
	}
	defer iter.Close()
	var records []CommitRecord
	err = iter.ForEach(func(commit *object.Commit) error {
		if max > 0 && len(records) >= max {
			return storer.ErrStop
		}
		records = append(records, CommitRecord{SHA: commit.Hash.String(), When: commit.Committer.When.UTC()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk the history")
	}
	return records, nil
}

func init() {
	core.Registry.Register(&CommitHistory{})
}
