// Package policy decides whether a push event should be mirrored to the
// target and which refs should be synchronised. All the functions of this
// package are pure, they never do any I/O.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrEmptyKeyword = errors.New("keyword mode requires a non-empty keyword")

const (
	ModeAlways  = "always"
	ModeKeyword = "keyword"

	branchRefPrefix = "refs/heads/"
	tagRefPrefix    = "refs/tags/"
)

// Mode is the mirroring mode of the policy. It is a closed set, the only
// implementations are Always and Keyword.
type Mode interface {
	// Name returns mode name as used in config and environment
	Name() string
	isMode()
}

// Always mirrors every push to every branch.
type Always struct{}

func (Always) Name() string { return ModeAlways }
func (Always) isMode()      {}

// Keyword mirrors pushes to non default branches only if the keyword is
// present in the commit messages of the push.
type Keyword struct {
	word string
}

// NewKeyword returns Keyword mode for the given word, word cannot be empty.
func NewKeyword(word string) (Keyword, error) {
	if word == "" {
		return Keyword{}, ErrEmptyKeyword
	}
	return Keyword{word: word}, nil
}

func (Keyword) Name() string { return ModeKeyword }
func (Keyword) isMode()      {}

// Word returns the keyword
func (k Keyword) Word() string { return k.word }

// ParseMode returns Mode for the given mode name.
// keyword is only used for the keyword mode.
func ParseMode(mode, keyword string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeAlways:
		return Always{}, nil
	case ModeKeyword:
		return NewKeyword(keyword)
	default:
		return nil, fmt.Errorf("unknown mirror mode %q, must be one of %s, %s", mode, ModeAlways, ModeKeyword)
	}
}

// Policy is the mirroring policy of a repository
type Policy struct {
	// Mode decides mirroring of non default branches. nil is same as Always.
	Mode Mode

	// Branches is the list of glob patterns (doublestar syntax) of the
	// non default branches which are eligible for mirroring. empty list
	// means all branches are eligible.
	Branches []string
}

// New returns validated policy
func New(mode Mode, branches []string) (Policy, error) {
	if k, ok := mode.(Keyword); ok && k.word == "" {
		return Policy{}, ErrEmptyKeyword
	}
	for _, p := range branches {
		if !doublestar.ValidatePattern(p) {
			return Policy{}, fmt.Errorf("invalid branch pattern %q", p)
		}
	}
	return Policy{Mode: mode, Branches: branches}, nil
}

// eligible returns true if given branch matches any of the branches patterns
func (p Policy) eligible(branch string) bool {
	if len(p.Branches) == 0 {
		return true
	}
	for _, pattern := range p.Branches {
		if ok, err := doublestar.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// Decision is the result of ShouldMirror
type Decision struct {
	// Fire is false when push must not cause any change on the target
	Fire bool
	// PushDefault indicates default branch must be synchronised
	PushDefault bool
	// PushCurrent indicates the branch of the event must be synchronised.
	// for manual dispatch the current branch is the default branch
	PushCurrent bool
}

// ShouldMirror decides if the given event should be mirrored.
//  1. manual dispatch always fires and syncs default and current (=default) branch
//  2. push to the default branch always fires and syncs only default branch
//  3. push to any other branch fires only if the branch is eligible and
//     - mode is Always, or
//     - keyword is a substring of all the commit messages of the push
//     joined by a single space
//
// Pushes of tags never fire, tags are synchronised with every mirror run.
func ShouldMirror(p Policy, e PushEvent) Decision {
	switch e.Kind {
	case ManualDispatch:
		return Decision{Fire: true, PushDefault: true, PushCurrent: true}
	case Push:
	default:
		return Decision{}
	}

	if e.IsTag() {
		return Decision{}
	}

	branch := e.Branch()
	if branch == "" {
		return Decision{}
	}
	if branch == e.DefaultBranch {
		return Decision{Fire: true, PushDefault: true}
	}

	if !p.eligible(branch) {
		return Decision{}
	}

	switch m := p.Mode.(type) {
	case nil, Always:
		return Decision{Fire: true, PushDefault: true, PushCurrent: true}
	case Keyword:
		if m.word != "" && strings.Contains(strings.Join(e.CommitMessages, " "), m.word) {
			return Decision{Fire: true, PushDefault: true, PushCurrent: true}
		}
	}

	return Decision{}
}
