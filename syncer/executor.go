package syncer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// StepResult is the outcome of a successful push step
type StepResult struct {
	Step    string
	Ref     string
	Updated bool
}

// Report is the summary of a sync run
type Report struct {
	RemoteDefault string
	// Fallback is set when remote had no HEAD and source default was used
	Fallback bool
	Steps    []StepResult
	Pruned   []string
	// Warnings are non fatal errors, ie *PruneWarning
	Warnings []error
	Duration time.Duration
}

// Updated returns true if any ref on the remote was changed
func (r *Report) Updated() bool {
	for _, s := range r.Steps {
		if s.Updated {
			return true
		}
	}
	return len(r.Pruned) > 0
}

// Warning returns all the warnings joined as single error
func (r *Report) Warning() error {
	return errors.Join(r.Warnings...)
}

// Execute runs the plan against the remote. Default branch is pushed first,
// then current branch and tags. A failure of any of these steps aborts the
// run and returned error will be *StepError. Prune is best effort, failures
// are recorded as warnings and run is still successful.
func Execute(ctx context.Context, plan Plan, remote Remote, log *slog.Logger) (*Report, error) {
	if log == nil {
		log = slog.Default()
	}

	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	if plan.Empty() {
		return report, nil
	}
	report.RemoteDefault = plan.Targets[0].Branch()

	for i, target := range plan.Targets {
		step := StepCurrentBranch
		if i == 0 {
			step = StepDefaultBranch
		}

		if err := ctx.Err(); err != nil {
			return report, &StepError{Step: step, Ref: target.RemoteRef, Err: err}
		}

		updated, err := remote.ForcePush(ctx, target.LocalRef, target.Branch())
		if err != nil {
			return report, &StepError{Step: step, Ref: target.RemoteRef, Err: err}
		}
		report.Steps = append(report.Steps, StepResult{Step: step, Ref: target.RemoteRef, Updated: updated})
		log.Debug("ref synced", "step", step, "local", target.LocalRef, "remote", target.RemoteRef, "updated", updated)
	}

	if plan.Tags {
		if err := ctx.Err(); err != nil {
			return report, &StepError{Step: StepTags, Err: err}
		}

		updated, err := remote.ForcePushTags(ctx)
		if err != nil {
			return report, &StepError{Step: StepTags, Err: err}
		}
		report.Steps = append(report.Steps, StepResult{Step: StepTags, Ref: "refs/tags/*", Updated: updated})
	}

	if plan.Prune {
		prune(ctx, plan, remote, report, log)
	}

	return report, nil
}

// prune deletes remote branches which are not retained or protected.
// failures never stop the loop.
func prune(ctx context.Context, plan Plan, remote Remote, report *Report, log *slog.Logger) {
	branches, err := remote.Branches(ctx)
	if err != nil {
		log.Warn("unable to list remote branches, skipping prune", "err", err)
		report.Warnings = append(report.Warnings, &StepError{Step: StepListBranches, Err: err})
		return
	}

	slices.Sort(branches)

	for _, branch := range branches {
		if plan.retained(branch) || protected(plan.Protected, branch) {
			continue
		}

		if err := ctx.Err(); err != nil {
			report.Warnings = append(report.Warnings, &StepError{Step: StepPrune, Err: err})
			return
		}

		if err := remote.DeleteBranch(ctx, branch); err != nil {
			log.Warn("unable to prune remote branch", "branch", branch, "err", err)
			report.Warnings = append(report.Warnings, &PruneWarning{Branch: branch, Err: err})
			continue
		}
		report.Pruned = append(report.Pruned, branch)
	}
}

func protected(patterns []string, branch string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, branch); err == nil && ok {
			return true
		}
	}
	return false
}
