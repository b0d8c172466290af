package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hjoncour/gh-to-gl-migrator/forge"
	"github.com/hjoncour/gh-to-gl-migrator/giturl"
)

// ErrTargetMissing is returned when target project doesn't exist and
// creation is not allowed
var ErrTargetMissing = errors.New("target project does not exist")

// Prober checks existence of the target project
type Prober interface {
	Exists(ctx context.Context, ref giturl.Ref, token string) bool
}

// EnsureTarget makes sure target project exists, creating it with creator
// if allowed. It returns true if project was created.
// creator can be nil if create is false.
func EnsureTarget(ctx context.Context, prober Prober, creator forge.ProjectCreator,
	ref giturl.Ref, token string, create bool, opts forge.CreateOptions, log *slog.Logger,
) (bool, error) {
	if log == nil {
		log = slog.Default()
	}

	if prober.Exists(ctx, ref, token) {
		log.Debug("target project exists", "target", ref.String())
		return false, nil
	}

	if !create || creator == nil {
		return false, fmt.Errorf("%w: %s", ErrTargetMissing, ref.String())
	}

	log.Info("target project not found, creating it", "target", ref.String())
	if err := creator.CreateProject(ctx, ref, opts); err != nil {
		return false, err
	}
	return true, nil
}
