package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
)

const loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`

// username used with GitLab personal, project and group access tokens
const targetTokenUser = "oauth2"

// authEnv returns envs required to authenticate against the source remote
func (r *Repository) authEnv(ctx context.Context) []string {
	if giturl.IsSCPURL(r.remote) || giturl.IsSSHURL(r.remote) {
		return []string{r.gitSSHCommand()}
	}

	// if url not ssh or https nothing to set
	if !giturl.IsHTTPSURL(r.remote) {
		return nil
	}

	var username, password string
	switch {
	// if username & password is set use that
	case r.auth.Username != "" && r.auth.Password != "":
		username = r.auth.Username
		password = r.auth.Password

	// if only password (token) is set use that
	case r.auth.Password != "":
		username = "-" // username is required
		password = r.auth.Password

	// if github app config is set use that token
	case r.githubApp != nil && r.gitURL.Host == "github.com":
		token, err := r.githubApp.Token(ctx, strings.TrimSuffix(r.gitURL.Repo, ".git"))
		if err != nil {
			r.log.Error("unable to get github app token", "err", err)
			return nil
		}
		username = "-" // username is required
		password = token

	default:
		return nil
	}

	return r.askPassEnv(username, password)
}

// targetAuthEnv returns envs required to push to target remote using token.
func (r *Repository) targetAuthEnv(url, token string) []string {
	if token == "" || !giturl.IsHTTPSURL(url) {
		return nil
	}
	return r.askPassEnv(targetTokenUser, token)
}

func (r *Repository) askPassEnv(username, password string) []string {
	loadCredsScript, err := r.ensureCredsLoader()
	if err != nil {
		r.log.Error("unable to write load creds script file", "err", err)
		return nil
	}

	return []string{
		fmt.Sprintf(`GIT_ASKPASS=%s`, loadCredsScript),
		`GIT_TERMINAL_PROMPT=0`,
		fmt.Sprintf(`REPO_USERNAME=%s`, username),
		fmt.Sprintf(`REPO_PASSWORD=%s`, password),
	}
}

// ensureCredsLoader writes askpass script to the root so that it's
// available before the repo dir is initialised.
func (r *Repository) ensureCredsLoader() (string, error) {
	credsLoader := filepath.Join(r.root, "gh2gl-creds-loader.sh")

	_, err := os.Stat(credsLoader)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(r.root, defaultDirMode); err != nil {
			return "", err
		}
		if err := os.WriteFile(credsLoader, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("unable to check if script file exits err:%w", err)
	}

	return credsLoader, nil
}

// gitSSHCommand returns the environment variable to be used for configuring
// git over ssh.
func (r *Repository) gitSSHCommand() string {
	sshKeyPath := r.auth.SSHKeyPath
	if sshKeyPath == "" {
		sshKeyPath = "/dev/null"
	}
	knownHostsOptions := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if r.auth.SSHKeyPath != "" && r.auth.SSHKnownHostsPath != "" {
		knownHostsOptions = fmt.Sprintf("-o UserKnownHostsFile=%s", r.auth.SSHKnownHostsPath)
	}
	return fmt.Sprintf(`GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s`, sshKeyPath, knownHostsOptions)
}
