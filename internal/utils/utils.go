package utils

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const DefaultDirMode fs.FileMode = os.FileMode(0755) // 'rwxr-xr-x'

// ExpandHome replaces a leading `~` in path with the given home dir.
// paths without `~` prefix are returned cleaned but otherwise untouched.
// if home is empty `~` paths are returned as is.
func ExpandHome(path, home string) string {
	switch {
	case home == "" && IsHomeRelative(path):
		return path
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	case path == "":
		return ""
	}
	return filepath.Clean(path)
}

// IsHomeRelative returns true if path starts with `~` or `~/`
func IsHomeRelative(path string) bool {
	return path == "~" || strings.HasPrefix(path, "~/")
}

// DirIsEmpty returns true if given dir doesn't have any entries
func DirIsEmpty(path string) (bool, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

// RunCommand runs given command with given arguments on given CWD
// and returns its trimmed stdout
func RunCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {
	stdout, _, err := RunCommandOutput(ctx, log, envs, cwd, command, args...)
	return stdout, err
}

// RunCommandOutput runs given command with given arguments on given CWD
// and returns both trimmed stdout and stderr. git writes progress to stderr
// hence callers interested in it should use this variant.
func RunCommandOutput(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, string, error) {
	cmdStr := command + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, command, args...)
	// force kill git & child process 5 seconds after sending it sigterm (when ctx is cancelled/timed out)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}
	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	// If Env is nil, the new process uses the current process's environment.
	cmd.Env = []string{}

	if len(envs) > 0 {
		cmd.Env = append(cmd.Env, envs...)
	}

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", stderr, fmt.Errorf("Run(%s): err:%w { stdout: %q, stderr: %q }", cmdStr, err, stdout, stderr)
	}
	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, stderr, nil
}
