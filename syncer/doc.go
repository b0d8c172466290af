// Package syncer synchronises the refs of a local source mirror onto a
// target remote.
//
// A sync run is built from three parts. [DiscoverRemoteDefault] finds the
// branch the target's HEAD points to, falling back to the source default for
// new projects. [NewPlan] turns a mirror decision into the list of ref
// updates. [Execute] force pushes them in order, pushes tags and optionally
// prunes stale target branches.
//
// Force pushes of the default branch, the current branch and the tags are
// fatal on failure and abort the rest of the run. Prune failures are never
// fatal, they are collected as warnings on the [Report].
package syncer
