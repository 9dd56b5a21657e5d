package plumbing

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/repolist"
)

// Checkout makes a shallow clone of the default branch on disk.
// It is a PipelineItem.
type Checkout struct {
	// Directory is where the clones are placed. A temporary directory is created if empty.
	Directory string
	// Keep disables removing the clones and reuses the existing ones.
	Keep bool

	root    string
	created bool
	remote  gitRemote
	l       core.Logger
}

const (
	// DependencyCheckout is the name of the dependency provided by Checkout: the path to
	// the working tree.
	DependencyCheckout = "checkout"

	// ConfigCheckoutDirectory sets where to clone the repositories.
	ConfigCheckoutDirectory = "Checkout.Directory"
	// ConfigCheckoutKeep preserves the clones after the run.
	ConfigCheckoutKeep = "Checkout.Keep"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (checkout *Checkout) Name() string {
	return "Checkout"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (checkout *Checkout) Provides() []string {
	return []string{DependencyCheckout}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (checkout *Checkout) Requires() []string {
	return []string{DependencyRepositoryInfo}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (checkout *Checkout) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{{
		Name:        ConfigCheckoutDirectory,
		Description: "Directory where the repositories are cloned. A temporary one is used if empty.",
		Flag:        "checkout-dir",
		Type:        core.PathConfigurationOption,
		Default:     "",
	}, {
		Name:        ConfigCheckoutKeep,
		Description: "Do not delete the clones after the analysis and reuse them in the next runs.",
		Flag:        "keep-checkouts",
		Type:        core.BoolConfigurationOption,
		Default:     false,
	}, sshIdentityOption()}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (checkout *Checkout) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		checkout.l = l
	}
	if val, exists := facts[ConfigCheckoutDirectory].(string); exists {
		checkout.Directory = val
	}
	if val, exists := facts[ConfigCheckoutKeep].(bool); exists {
		checkout.Keep = val
	}
	checkout.remote.configure(facts)
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (checkout *Checkout) Initialize() error {
	if checkout.l == nil {
		checkout.l = core.NewLogger()
	}
	checkout.created = false
	if checkout.Directory == "" {
		root, err := os.MkdirTemp("", "citheater-")
		if err != nil {
			return errors.Wrap(err, "failed to create the checkouts directory")
		}
		checkout.root = root
		checkout.created = true
		return nil
	}
	root, err := homedir.Expand(checkout.Directory)
	if err != nil {
		return errors.Wrapf(err, "invalid checkouts directory %s", checkout.Directory)
	}
	if err = os.MkdirAll(root, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", root)
	}
	checkout.root = root
	return nil
}

// Path returns where the repository is cloned.
func (checkout *Checkout) Path(repo repolist.Repository) string {
	return filepath.Join(checkout.root, repo.Owner, repo.Name)
}

// Consume runs this PipelineItem on the next repository.
func (checkout *Checkout) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	repo := deps[core.DependencyRepository].(repolist.Repository)
	info := deps[DependencyRepositoryInfo].(*github.Repository)
	dir := checkout.Path(repo)
	if checkout.Keep {
		if _, err := git.PlainOpen(dir); err == nil {
			checkout.l.Infof("reusing %s", dir)
			return map[string]interface{}{DependencyCheckout: dir}, nil
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrapf(err, "failed to clean %s", dir)
	}
	uri, auth, err := checkout.remote.endpoint(repo)
	if err != nil {
		return nil, err
	}
	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           uri,
		Auth:          auth,
		ReferenceName: gitplumbing.NewBranchReferenceName(info.DefaultBranch),
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	})
	if err == transport.ErrEmptyRemoteRepository {
		// nothing to analyse, yet the directory must exist
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
		return map[string]interface{}{DependencyCheckout: dir}, nil
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrapf(err, "failed to clone %s", uri)
	}
	return map[string]interface{}{DependencyCheckout: dir}, nil
}

// Release deletes the clone unless Keep is set.
func (checkout *Checkout) Release(deps map[string]interface{}) {
	if checkout.Keep {
		return
	}
	dir, exists := deps[DependencyCheckout].(string)
	if !exists {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		checkout.l.Warnf("failed to remove %s: %v", dir, err)
	}
}

// Dispose deletes the temporary directory.
func (checkout *Checkout) Dispose() {
	if checkout.created && !checkout.Keep && checkout.root != "" {
		if err := os.RemoveAll(checkout.root); err != nil {
			checkout.l.Warnf("failed to remove %s: %v", checkout.root, err)
		}
		checkout.created = false
	}
}

func init() {
	core.Registry.Register(&Checkout{})
}
