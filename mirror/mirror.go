// Package mirror runs a single mirror of the source repository onto the
// target project for a triggering event.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hjoncour/gh-to-gl-migrator/giturl"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
	"github.com/hjoncour/gh-to-gl-migrator/syncer"
)

// skip reasons
const (
	reasonTag      = "tag"
	reasonNoBranch = "no-branch"
	reasonPolicy   = "policy"
)

// Source is the local mirror of the source repository
type Source interface {
	syncer.Local
	Fetch(ctx context.Context) ([]string, error)
	DefaultBranch(ctx context.Context) (string, error)
}

// Config of the mirror
type Config struct {
	// Target is the normalised target project
	Target giturl.Ref
	Policy policy.Policy
	Sync   syncer.Options
}

// Mirror mirrors source to target. Run can be called concurrently for
// different source refs.
type Mirror struct {
	target giturl.Ref
	policy policy.Policy
	opts   syncer.Options
	source Source
	remote syncer.Remote
	log    *slog.Logger
}

// New returns Mirror for given source and target remote
func New(conf Config, source Source, remote syncer.Remote, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		target: conf.Target,
		policy: conf.Policy,
		opts:   conf.Sync,
		source: source,
		remote: remote,
		log:    log.With("target", conf.Target.String()),
	}
}

// Run mirrors the event. nil report and error is returned if event was
// skipped by the policy. Fatal errors are *syncer.StepError.
func (m *Mirror) Run(ctx context.Context, event policy.PushEvent) (*syncer.Report, error) {
	log := m.log.With("ref", event.Key(), "event", event.Kind.String())
	repo := m.target.ProjectPath()
	start := time.Now()

	// decision is cheap hence made before fetch when default branch is known
	if event.DefaultBranch != "" {
		if d := policy.ShouldMirror(m.policy, event); !d.Fire {
			m.skip(log, event)
			return nil, nil
		}
	}

	report, err := m.run(ctx, log, event)
	if report == nil && err == nil {
		return nil, nil
	}

	recordSync(repo, err == nil, start)
	if report != nil {
		recordPruneFailures(repo, countPruneWarnings(report))
	}

	if err != nil {
		log.Error("mirror failed", "err", err)
		return report, err
	}

	if len(report.Warnings) > 0 {
		log.Warn("mirror completed with warnings", "warnings", report.Warning())
	}
	log.Info("mirror complete", "time", time.Since(start), "remote-default", report.RemoteDefault,
		"fallback", report.Fallback, "updated", report.Updated(), "pruned", len(report.Pruned))
	return report, nil
}

func (m *Mirror) run(ctx context.Context, log *slog.Logger, event policy.PushEvent) (*syncer.Report, error) {
	if _, err := m.source.Fetch(ctx); err != nil {
		return nil, &syncer.StepError{Step: syncer.StepFetch, Err: err}
	}

	if event.DefaultBranch == "" {
		def, err := m.source.DefaultBranch(ctx)
		if err != nil {
			return nil, &syncer.StepError{Step: syncer.StepFetch, Err: err}
		}
		event.DefaultBranch = def
	}

	d := policy.ShouldMirror(m.policy, event)
	if !d.Fire {
		m.skip(log, event)
		return nil, nil
	}

	remoteDefault, fallback, err := syncer.DiscoverRemoteDefault(ctx, m.remote, event.DefaultBranch, log)
	if err != nil {
		return nil, &syncer.StepError{Step: syncer.StepReconcile, Err: err}
	}

	plan := syncer.NewPlan(m.source, event, d, remoteDefault, m.opts)

	report, err := syncer.Execute(ctx, plan, m.remote, log)
	if report != nil {
		report.Fallback = fallback
	}
	return report, err
}

func (m *Mirror) skip(log *slog.Logger, event policy.PushEvent) {
	reason := reasonPolicy
	switch {
	case event.IsTag():
		reason = reasonTag
	case event.Branch() == "":
		reason = reasonNoBranch
	}
	recordSkip(m.target.ProjectPath(), reason)
	log.Info("event skipped", "reason", reason)
}

func countPruneWarnings(report *syncer.Report) int {
	count := 0
	for _, w := range report.Warnings {
		var pw *syncer.PruneWarning
		if errors.As(w, &pw) {
			count++
		}
	}
	return count
}
