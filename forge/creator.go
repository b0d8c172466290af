package forge

import (
	"context"
	"fmt"
	"log/slog"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
)

// ProjectCreator creates a project on the target forge
type ProjectCreator interface {
	CreateProject(ctx context.Context, ref giturl.Ref, opts CreateOptions) error
}

// CreateOptions are the settings of the created project
type CreateOptions struct {
	// Visibility is one of private, internal or public. default is private
	Visibility  string
	Description string
}

// GitLabCreator creates projects using GitLab API
type GitLabCreator struct {
	opts  ClientOptions
	token string
	log   *slog.Logger
}

// NewGitLabCreator returns ProjectCreator for GitLab. token must have
// `api` scope.
func NewGitLabCreator(token string, opts ClientOptions, log *slog.Logger) *GitLabCreator {
	if log == nil {
		log = slog.Default()
	}
	return &GitLabCreator{opts: opts, token: token, log: log}
}

// CreateProject creates project at the path of the given ref. The namespace
// (group) of the project must already exist, if ref has no namespace
// project is created in the personal namespace of the token's user.
func (c *GitLabCreator) CreateProject(ctx context.Context, ref giturl.Ref, opts CreateOptions) error {
	client, err := c.opts.newClient(ref.Host, c.token)
	if err != nil {
		return fmt.Errorf("unable to create api client err:%w", err)
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = string(gitlab.PrivateVisibility)
	}

	createOpts := &gitlab.CreateProjectOptions{
		Name:       gitlab.Ptr(ref.Name()),
		Path:       gitlab.Ptr(ref.Name()),
		Visibility: gitlab.Ptr(gitlab.VisibilityValue(visibility)),
	}
	if opts.Description != "" {
		createOpts.Description = gitlab.Ptr(opts.Description)
	}

	if ns := ref.Namespace(); ns != "" {
		namespace, _, err := client.Namespaces.GetNamespace(ns, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("unable to get namespace '%s' err:%w", ns, err)
		}
		createOpts.NamespaceID = gitlab.Ptr(namespace.ID)
	}

	project, _, err := client.Projects.CreateProject(createOpts, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("unable to create project '%s' err:%w", ref.ProjectPath(), err)
	}

	c.log.Info("project created", "project", project.PathWithNamespace, "visibility", visibility)
	return nil
}
