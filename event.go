package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hjoncour/gh-to-gl-migrator/policy"
)

// errRefDeleted is returned for pushes which deleted the ref
var errRefDeleted = errors.New("ref was deleted")

// GitHubEvent is the subset of GitHub push and workflow_dispatch payloads
// used by the migrator
type GitHubEvent struct {
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
		HtmlURL       string `json:"html_url"`
		CloneURL      string `json:"clone_url"`
		SSHURL        string `json:"ssh_url"`
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`

	// The full git ref that was pushed. Example: refs/heads/main or refs/tags/v3.14.1.
	Ref string `json:"ref"`
	// The SHA of the most recent commit on ref before the push.
	Before string `json:"before"`
	// The SHA of the most recent commit on ref after the push.
	After string `json:"after"`
	// Whether this push deleted the ref.
	Deleted bool `json:"deleted"`

	Commits    []GitHubCommit `json:"commits"`
	HeadCommit *GitHubCommit  `json:"head_commit"`
}

type GitHubCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// pushEvent converts payload to PushEvent. messages of all commits of the
// push are used, head commit is only used if payload has no commits list.
func (e *GitHubEvent) pushEvent(kind policy.EventKind) policy.PushEvent {
	event := policy.PushEvent{
		Ref:           e.Ref,
		Kind:          kind,
		DefaultBranch: e.Repository.DefaultBranch,
	}
	for _, c := range e.Commits {
		event.CommitMessages = append(event.CommitMessages, c.Message)
	}
	if len(event.CommitMessages) == 0 && e.HeadCommit != nil {
		event.CommitMessages = []string{e.HeadCommit.Message}
	}
	return event
}

// actionsEvent builds PushEvent from GitHub Actions environment
// GITHUB_EVENT_NAME, GITHUB_REF and GITHUB_EVENT_PATH
func actionsEvent(lookup func(string) (string, bool)) (policy.PushEvent, error) {
	name, _ := lookup("GITHUB_EVENT_NAME")
	ref, _ := lookup("GITHUB_REF")

	var kind policy.EventKind
	switch name {
	case "push":
		kind = policy.Push
	case "workflow_dispatch":
		kind = policy.ManualDispatch
	case "":
		return policy.PushEvent{}, fmt.Errorf("GITHUB_EVENT_NAME is not set")
	default:
		return policy.PushEvent{}, fmt.Errorf("unsupported event %q, must be push or workflow_dispatch", name)
	}

	payload := &GitHubEvent{}
	if eventPath, ok := lookup("GITHUB_EVENT_PATH"); ok && eventPath != "" {
		data, err := os.ReadFile(eventPath)
		if err != nil {
			return policy.PushEvent{}, fmt.Errorf("unable to read event payload err:%w", err)
		}
		if err := json.Unmarshal(data, payload); err != nil {
			return policy.PushEvent{}, fmt.Errorf("unable to parse event payload err:%w", err)
		}
	}

	if payload.Deleted {
		return policy.PushEvent{}, fmt.Errorf("%w: %s", errRefDeleted, payload.Ref)
	}

	event := payload.pushEvent(kind)
	if event.Ref == "" {
		event.Ref = ref
	}
	return event, nil
}
