package policy

import "strings"

// EventKind is the kind of the event triggering the mirror
type EventKind int

const (
	Push EventKind = iota
	ManualDispatch
)

func (k EventKind) String() string {
	switch k {
	case Push:
		return "push"
	case ManualDispatch:
		return "manual-dispatch"
	}
	return "unknown"
}

// PushEvent represents a single triggering event
type PushEvent struct {
	// Ref is the full git ref (refs/heads/main) or branch name. It is
	// ignored for manual dispatch.
	Ref  string
	Kind EventKind
	// DefaultBranch is the name of default branch of the source repository
	DefaultBranch string
	// CommitMessages are the messages of all the commits of the push
	CommitMessages []string
}

// Branch returns the short name of the branch of the event.
// for manual dispatch it's the default branch.
func (e PushEvent) Branch() string {
	if e.Kind == ManualDispatch {
		return e.DefaultBranch
	}
	if e.IsTag() {
		return ""
	}
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

// IsTag returns true if the ref of the event is a tag
func (e PushEvent) IsTag() bool {
	return strings.HasPrefix(e.Ref, tagRefPrefix)
}

// Key identifies the source ref of the event, events with the same key
// must not be synchronised concurrently.
func (e PushEvent) Key() string {
	if b := e.Branch(); b != "" {
		return branchRefPrefix + b
	}
	return e.Ref
}
