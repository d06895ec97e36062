// Package repository keeps local bare mirrors of remote repositories in sync.
//
// A mirror is created with the equivalent of `git clone --mirror`, hence
// everything in `refs/*` on the remote is directly mirrored into `refs/*` in
// the local repository. Subsequent syncs fetch all refs with forced updates,
// so the local mirror always follows the remote even when history is
// rewritten.
//
// Two transports are available. The go-git transport is pure Go and needs no
// external binary. The git transport drives the `git` CLI the same way
// a shell user would and is useful when repositories use features go-git
// doesn't support.
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
//	syncer := repository.NewSyncer(repository.NewGoGitTransport(logger), logger)
//	res, err := syncer.Sync(ctx, "/srv/git-backup", desc, auth)
//	if err != nil {
//		panic(err)
//	}
package repository
