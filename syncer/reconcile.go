package syncer

import (
	"context"
	"log/slog"
)

// Remote is the target of the sync
type Remote interface {
	// SymbolicHead returns branch name HEAD points to or empty string
	// if remote has no HEAD
	SymbolicHead(ctx context.Context) (string, error)
	ForcePush(ctx context.Context, localRef, remoteBranch string) (bool, error)
	ForcePushTags(ctx context.Context) (bool, error)
	Branches(ctx context.Context) ([]string, error)
	DeleteBranch(ctx context.Context, branch string) error
}

// Local is the local mirror of the source
type Local interface {
	// TrackingRef returns local ref of the given source branch
	TrackingRef(branch string) string
}

// DiscoverRemoteDefault returns the default branch of the remote. If remote
// doesn't have HEAD (new or empty project) sourceDefault is returned and
// fallback is set.
// The value must only be used for the current run.
func DiscoverRemoteDefault(ctx context.Context, remote Remote, sourceDefault string, log *slog.Logger) (branch string, fallback bool, err error) {
	if log == nil {
		log = slog.Default()
	}

	head, err := remote.SymbolicHead(ctx)
	if err != nil {
		return "", false, err
	}

	if head == "" {
		log.Info("remote has no HEAD, using source default branch", "default-branch", sourceDefault)
		return sourceDefault, true, nil
	}

	if head != sourceDefault {
		log.Info("remote default branch differs from source", "remote", head, "source", sourceDefault)
	}
	return head, false, nil
}
