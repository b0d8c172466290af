package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Target is a push destination for the refs of the local mirror.
// all operations run against the given URL directly, no remote is
// configured in the local repository for the target.
type Target struct {
	repo  *Repository
	url   string
	token string
	log   *slog.Logger
}

// Target returns handle for the remote at given URL. token if provided will
// be used for https authentication.
func (r *Repository) Target(url, token string) *Target {
	return &Target{
		repo:  r,
		url:   url,
		token: token,
		log:   r.log.With("target", url),
	}
}

// URL returns URL of the target remote
func (t *Target) URL() string {
	return t.url
}

func (t *Target) run(ctx context.Context, args ...string) (string, error) {
	t.repo.lock.RLock()
	defer t.repo.lock.RUnlock()

	return t.repo.run(ctx, t.repo.targetAuthEnv(t.url, t.token), args...)
}

// SymbolicHead returns the branch name target's HEAD points to.
// empty string is returned if remote doesn't have symbolic HEAD ie new project.
func (t *Target) SymbolicHead(ctx context.Context) (string, error) {
	// git ls-remote --symref <url> HEAD
	out, err := t.run(ctx, "ls-remote", "--symref", t.url, "HEAD")
	if err != nil {
		return "", fmt.Errorf("unable to get target HEAD err:%w", err)
	}

	headRef, ok := parseSymref(out)
	if !ok {
		return "", nil
	}
	return strings.TrimPrefix(headRef, "refs/heads/"), nil
}

// ForcePush force pushes local ref to the given branch on target.
// it returns true if remote ref was changed.
func (t *Target) ForcePush(ctx context.Context, localRef, remoteBranch string) (bool, error) {
	refSpec := fmt.Sprintf("+%s:refs/heads/%s", localRef, remoteBranch)

	// git push --porcelain <url> +<local>:refs/heads/<branch>
	out, err := t.run(ctx, "push", "--porcelain", "--no-verify", t.url, refSpec)
	if err != nil {
		return false, err
	}

	updated := changedRefs(out)
	if len(updated) > 0 {
		t.log.Info("branch pushed", "local", localRef, "remote", remoteBranch)
	}
	return len(updated) > 0, nil
}

// ForcePushTags force pushes all local tags to the target.
// it returns true if any remote tag was changed.
func (t *Target) ForcePushTags(ctx context.Context) (bool, error) {
	// git push --porcelain <url> +refs/tags/*:refs/tags/*
	out, err := t.run(ctx, "push", "--porcelain", "--no-verify", t.url, "+refs/tags/*:refs/tags/*")
	if err != nil {
		return false, err
	}

	updated := changedRefs(out)
	if len(updated) > 0 {
		t.log.Info("tags pushed", "count", len(updated))
	}
	return len(updated) > 0, nil
}

// Branches returns names of all the branches on target
func (t *Target) Branches(ctx context.Context) ([]string, error) {
	// git ls-remote --heads <url>
	out, err := t.run(ctx, "ls-remote", "--heads", t.url)
	if err != nil {
		return nil, fmt.Errorf("unable to list target branches err:%w", err)
	}
	return parseHeads(out), nil
}

// DeleteBranch deletes given branch on target
func (t *Target) DeleteBranch(ctx context.Context, branch string) error {
	// git push --porcelain <url> --delete refs/heads/<branch>
	if _, err := t.run(ctx, "push", "--porcelain", "--no-verify", t.url, "--delete", "refs/heads/"+branch); err != nil {
		return err
	}
	t.log.Info("branch deleted", "branch", branch)
	return nil
}
