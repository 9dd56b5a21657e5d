package plumbing

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/repolist"
)

const (
	// ConfigGitSSHIdentity is the path to the private key which is used to clone over SSH.
	ConfigGitSSHIdentity = "Git.SSHIdentity"
)

func sshIdentityOption() core.ConfigurationOption {
	return core.ConfigurationOption{
		Name:        ConfigGitSSHIdentity,
		Description: "Path to SSH identity file (e.g., ~/.ssh/id_rsa) to clone from the SSH remotes.",
		Flag:        "ssh-identity",
		Type:        core.PathConfigurationOption,
		Default:     "",
	}
}

// gitRemote knows how to clone the analysed repositories.
type gitRemote struct {
	// URL overrides the clone URL of a repository. Used in the tests.
	URL         func(repolist.Repository) string
	SSHIdentity string
	Token       string
}

func (remote *gitRemote) configure(facts map[string]interface{}) {
	if val, exists := facts[ConfigGitSSHIdentity].(string); exists {
		remote.SSHIdentity = val
	}
	if val, exists := facts[core.FactGitHubToken].(string); exists {
		remote.Token = val
	}
}

func loadSSHIdentity(sshIdentity string) (*ssh.PublicKeys, error) {
	actual, err := homedir.Expand(sshIdentity)
	if err != nil {
		return nil, err
	}
	return ssh.NewPublicKeysFromFile("git", actual, "")
}

// endpoint returns the clone URL and the matching credentials.
func (remote *gitRemote) endpoint(repo repolist.Repository) (string, transport.AuthMethod, error) {
	if remote.URL != nil {
		return remote.URL(repo), nil, nil
	}
	if remote.SSHIdentity != "" {
		auth, err := loadSSHIdentity(remote.SSHIdentity)
		if err != nil {
			return "", nil, errors.Wrapf(err, "failed loading SSH identity %s", remote.SSHIdentity)
		}
		return repo.SSHURL(), auth, nil
	}
	uri := repo.URL()
	if remote.Token != "" && strings.HasPrefix(uri, "https://") {
		// any non-empty user name works with a token
		return uri, &http.BasicAuth{Username: "x-access-token", Password: remote.Token}, nil
	}
	return uri, nil, nil
}
