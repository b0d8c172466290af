// Package repository keeps a local bare mirror of the source repository and
// pushes its refs to a target remote.
// The mirror is created with `--mirror=fetch` hence everything in `refs/*` on the
// source will be directly mirrored into `refs/*` in the local repository, so the
// local tracking ref of a source branch is simply `refs/heads/<branch>`.
//
// All git operations are executed by shelling out to the git binary. Only the
// environment passed to [New] and the generated auth variables are visible to git.
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level
//
// Example:
//
//	loggerLevel  = new(slog.LevelVar)
//	levelStrings = map[string]slog.Level{
//		"trace": slog.Level(-8),
//		"debug": slog.LevelDebug,
//		"info":  slog.LevelInfo,
//		"warn":  slog.LevelWarn,
//		"error": slog.LevelError,
//	}
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: loggerLevel,
//	}))
//	loggerLevel.Set(levelStrings["trace"])
//
//	repo, err := repository.New(conf, "", []string{"PATH=" + os.Getenv("PATH")}, logger)
//	if err != nil {
//		panic(err)
//	}
//	if _, err := repo.Fetch(ctx); err != nil {
//		panic(err)
//	}
//	target := repo.Target("https://gitlab.com/group/project.git", token)
//	target.ForcePush(ctx, repo.TrackingRef("main"), "main")
package repository
