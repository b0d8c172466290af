package forge

import (
	"context"
	"log/slog"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
)

// Prober checks existence of projects on the target forge.
type Prober struct {
	opts ClientOptions
	log  *slog.Logger
}

// NewProber returns new Prober
func NewProber(opts ClientOptions, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{opts: opts, log: log}
}

// Exists returns true if the project of the given ref is visible with the
// given token. If token is empty only public projects are visible.
// It's a one shot check, any failure including transport errors is
// reported as non-existence.
func (p *Prober) Exists(ctx context.Context, ref giturl.Ref, token string) bool {
	client, err := p.opts.newClient(ref.Host, token)
	if err != nil {
		p.log.Debug("unable to create api client", "host", ref.Host, "err", err)
		return false
	}

	// GET /api/v4/projects/:url-encoded-path
	_, resp, err := client.Projects.GetProject(ref.ProjectPath(), &gitlab.GetProjectOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		p.log.Debug("project probe failed", "project", ref.String(), "err", err)
		return false
	}

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
