package repository

import (
	"fmt"
	"path/filepath"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
)

// Config represents the config for the local mirror of the source repository.
type Config struct {
	// git URL of the source repo to mirror
	Remote string `yaml:"remote"`

	// Root is the absolute path to the root dir where repo dir
	// will be created.
	Root string `yaml:"-"`

	// Auth config to fetch source repo
	Auth Auth `yaml:"auth"`
}

// Auth represents authentication config of the source repository
type Auth struct {
	// username to use for basic or token based authentication
	Username string `yaml:"username"`

	// password or personal access token to use for authentication
	Password string `yaml:"password"`

	// SSH Details
	// path to the ssh key used to fetch remote
	SSHKeyPath string `yaml:"ssh_key_path"`

	// path to the known hosts of the remote host
	SSHKnownHostsPath string `yaml:"ssh_known_hosts_path"`

	// Github APP Details
	// The application id or the client ID of the Github app
	GithubAppID string `yaml:"github_app_id"`
	// The installation id of the app (in the organization).
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	// path to the github app private key
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key_path"`
}

// DefaultRepoDir returns path of dir where source mirrors are cloned
func DefaultRepoDir(root string) string {
	return filepath.Join(root, "source-mirrors")
}

func (a Auth) githubAppConfigured() bool {
	return a.GithubAppID != "" || a.GithubAppInstallationID != "" || a.GithubAppPrivateKeyPath != ""
}

// Validate returns error if config is not usable
func (c Config) Validate() error {
	if c.Remote == "" {
		return fmt.Errorf("source remote is required")
	}
	if _, err := giturl.Parse(giturl.NormaliseURL(c.Remote)); err != nil {
		return fmt.Errorf("invalid source remote: %w", err)
	}
	if !filepath.IsAbs(c.Root) {
		return fmt.Errorf("repository root '%s' must be absolute", c.Root)
	}
	if c.Auth.githubAppConfigured() {
		if c.Auth.GithubAppID == "" || c.Auth.GithubAppInstallationID == "" || c.Auth.GithubAppPrivateKeyPath == "" {
			return fmt.Errorf("github app id, installation id and private key path are all required")
		}
	}
	if c.Auth.SSHKnownHostsPath != "" && c.Auth.SSHKeyPath == "" {
		return fmt.Errorf("ssh known hosts path is only used with ssh key path")
	}
	return nil
}
