package syncer

import (
	"slices"
	"strings"

	"github.com/hjoncour/gh-to-gl-migrator/policy"
)

const branchRefPrefix = "refs/heads/"

// RefSync is a single ref update on the remote
type RefSync struct {
	LocalRef  string
	RemoteRef string
	Force     bool
}

// Branch returns the remote branch name of the update
func (r RefSync) Branch() string {
	return strings.TrimPrefix(r.RemoteRef, branchRefPrefix)
}

// Options controls optional steps of a sync
type Options struct {
	// Tags pushes all tags
	Tags bool
	// Prune deletes remote branches which are not retained by the plan
	Prune bool
	// Protected is the list of glob patterns (doublestar syntax) of
	// branches which are never pruned
	Protected []string
}

// Plan is the ordered list of updates of a sync run.
// first target is always the default branch.
type Plan struct {
	Targets []RefSync
	Tags    bool
	Prune   bool
	// Retain is the list of remote branches which must not be pruned
	Retain    []string
	Protected []string
}

// Empty returns true if plan has nothing to sync
func (p Plan) Empty() bool {
	return len(p.Targets) == 0
}

// NewPlan creates plan from the mirror decision of the event. remoteDefault
// is the reconciled default branch name of the remote.
func NewPlan(local Local, event policy.PushEvent, d policy.Decision, remoteDefault string, opts Options) Plan {
	if !d.Fire || !d.PushDefault || event.DefaultBranch == "" {
		return Plan{}
	}
	if remoteDefault == "" {
		remoteDefault = event.DefaultBranch
	}

	plan := Plan{
		Targets: []RefSync{{
			LocalRef:  local.TrackingRef(event.DefaultBranch),
			RemoteRef: branchRefPrefix + remoteDefault,
			Force:     true,
		}},
		Tags:      opts.Tags,
		Prune:     opts.Prune,
		Retain:    []string{remoteDefault},
		Protected: opts.Protected,
	}

	current := event.Branch()
	// current branch is pushed to same name on remote, skip if it's the
	// default branch or would overwrite the remote default
	if d.PushCurrent && current != "" && current != event.DefaultBranch && current != remoteDefault {
		plan.Targets = append(plan.Targets, RefSync{
			LocalRef:  local.TrackingRef(current),
			RemoteRef: branchRefPrefix + current,
			Force:     true,
		})
		plan.Retain = append(plan.Retain, current)
	}

	return plan
}

func (p Plan) retained(branch string) bool {
	return slices.Contains(p.Retain, branch)
}
