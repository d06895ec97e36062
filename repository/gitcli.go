package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/utilitywarehouse/git-backup/internal/utils"
)

const (
	credsLoaderFile = "git-backup-creds-loader.sh"

	loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`
)

// GitCLITransport drives the git binary. The mirror is created the same way
// as `git clone --mirror` but in steps so that an interrupted clone leaves a
// valid repository behind which will be completed by the next fetch.
type GitCLITransport struct {
	cmd  string   // git executable
	envs []string // envs which will be passed to every git command
	log  *slog.Logger
}

type gitCLIHandle struct {
	dir string
}

func (h *gitCLIHandle) Dir() string { return h.dir }

// NewGitCLITransport returns git CLI transport. if gitExec is empty `git` is
// looked up in PATH. envs are the only environment variables passed to git
// commands apart from auth related ones.
func NewGitCLITransport(gitExec string, envs []string, log *slog.Logger) *GitCLITransport {
	if gitExec == "" {
		gitExec = exec.Command("git").String()
	}
	if log == nil {
		log = slog.Default()
	}
	return &GitCLITransport{cmd: gitExec, envs: envs, log: log}
}

func (t *GitCLITransport) git(ctx context.Context, envs []string, cwd string, args ...string) (string, error) {
	return utils.RunCommand(ctx, t.log, append(envs, t.envs...), cwd, t.cmd, args...)
}

// Open runs sanity check on the dir and returns handle if it contains usable
// mirror
func (t *GitCLITransport) Open(ctx context.Context, dir string) (Handle, error) {
	// If it is empty or missing, we are done.
	if empty, err := utils.DirIsEmpty(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("%w: can't list repo directory err:%w", ErrNotExist, err)
	} else if empty {
		return nil, ErrNotExist
	}

	// make sure repo is bare repository
	// git rev-parse --is-bare-repository
	if ok, err := t.git(ctx, nil, dir, "rev-parse", "--is-bare-repository"); err != nil {
		return nil, fmt.Errorf("%w: unable to verify bare repo err:%w", ErrNotExist, err)
	} else if ok != "true" {
		return nil, fmt.Errorf("%w: repo is not a bare repository", ErrNotExist)
	}

	// Check that this is actually the root of the repo.
	// git rev-parse --absolute-git-dir
	if root, err := t.git(ctx, nil, dir, "rev-parse", "--absolute-git-dir"); err != nil {
		return nil, fmt.Errorf("%w: can't get repo git dir err:%w", ErrNotExist, err)
	} else if !sameDir(root, dir) {
		return nil, fmt.Errorf("%w: repo directory is under another repo %s", ErrNotExist, root)
	}

	// The "origin" remote has special meaning, like in relative-path submodules.
	// git config --get remote.origin.url
	if _, err := t.git(ctx, nil, dir, "config", "--get", "remote.origin.url"); err != nil {
		return nil, fmt.Errorf("%w: can't get repo config remote.origin.url err:%w", ErrNotExist, err)
	}

	// verify origin's fetch refspec
	// git config --get remote.origin.fetch
	if stdout, err := t.git(ctx, nil, dir, "config", "--get", "remote.origin.fetch"); err != nil {
		return nil, fmt.Errorf("%w: can't get repo config remote.origin.fetch err:%w", ErrNotExist, err)
	} else if stdout != defaultRefSpec {
		return nil, fmt.Errorf("%w: repo configured with incorrect fetch refspec %s", ErrNotExist, stdout)
	}

	// Consistency-check the repo. Don't use --verbose because it can be
	// REALLY verbose.
	// git fsck --no-progress --connectivity-only
	if _, err := t.git(ctx, nil, dir, "fsck", "--no-progress", "--connectivity-only"); err != nil {
		return nil, fmt.Errorf("%w: repo fsck failed err:%w", ErrNotExist, err)
	}

	return &gitCLIHandle{dir: dir}, nil
}

func (t *GitCLITransport) FetchAll(ctx context.Context, h Handle, url string, cred Credential) (FetchStats, error) {
	dir := h.Dir()

	// git config --get remote.origin.url
	current, err := t.git(ctx, nil, dir, "config", "--get", "remote.origin.url")
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to get remote url err:%w", err)
	}
	if current != url {
		t.log.Info("updating origin url", "from", current, "to", url)
		// git remote set-url origin <url>
		if _, err := t.git(ctx, nil, dir, "remote", "set-url", defaultRemote, url); err != nil {
			return FetchStats{}, fmt.Errorf("unable to update remote url err:%w", err)
		}
	}

	return t.fetch(ctx, dir, cred)
}

func (t *GitCLITransport) MirrorClone(ctx context.Context, url, dir string, cred Credential) (FetchStats, error) {
	if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
		return FetchStats{}, fmt.Errorf("unable to create repo dir err:%w", err)
	}

	t.log.Info("initializing repo directory", "path", dir)
	// git init -q --bare
	if _, err := t.git(ctx, nil, dir, "init", "-q", "--bare"); err != nil {
		return FetchStats{}, fmt.Errorf("unable to init repo err:%w", err)
	}

	// use --mirror=fetch as we want to create mirrored bare repository. it will make sure
	// everything in refs/* on the remote will be directly mirrored into refs/* in the local repository.
	// git remote add --mirror=fetch origin <remote>
	if _, err := t.git(ctx, nil, dir, "remote", "add", "--mirror=fetch", defaultRemote, url); err != nil {
		return FetchStats{}, fmt.Errorf("unable to set remote err:%w", err)
	}

	authEnvs, err := t.authEnv(dir, cred)
	if err != nil {
		return FetchStats{}, err
	}

	// git ls-remote --symref origin HEAD
	out, err := t.git(ctx, authEnvs, dir, "ls-remote", "--symref", defaultRemote, "HEAD")
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to get default branch err:%w", err)
	}

	// empty repositories don't have HEAD
	if sections := remoteDefaultBranchRgx.FindStringSubmatch(out); len(sections) == 2 {
		t.log.Debug("fetched remote symbolic ref", "default-branch", sections[1])
		// git symbolic-ref HEAD <headBranch>(refs/heads/master)
		if _, err := t.git(ctx, nil, dir, "symbolic-ref", "HEAD", sections[1]); err != nil {
			return FetchStats{}, fmt.Errorf("unable to set HEAD err:%w", err)
		}
	}

	return t.fetch(ctx, dir, cred)
}

func (t *GitCLITransport) fetch(ctx context.Context, dir string, cred Credential) (FetchStats, error) {
	envs, err := t.authEnv(dir, cred)
	if err != nil {
		return FetchStats{}, err
	}

	// adding --porcelain so output can be parsed for updated refs
	// and --progress to get object count from stderr even without tty
	args := []string{"fetch", defaultRemote, "--prune", "--progress", "--porcelain", "--no-auto-gc"}

	stdout, stderr, err := utils.RunCommandOutput(ctx, t.log, append(envs, t.envs...), dir, t.cmd, args...)
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to fetch err:%w", err)
	}

	return FetchStats{
		Objects:     totalObjects(stderr),
		UpdatedRefs: updatedRefs(stdout),
	}, nil
}

// authEnv returns envs required by git to authenticate with the remote
func (t *GitCLITransport) authEnv(dir string, cred Credential) ([]string, error) {
	switch cred.Kind {
	case CredentialSSHKey:
		return []string{gitSSHCommand(cred)}, nil

	case CredentialBasic:
		loader, err := ensureCredsLoader(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to write load creds script file err:%w", err)
		}
		return []string{
			"GIT_TERMINAL_PROMPT=0",
			fmt.Sprintf(`GIT_ASKPASS=%s`, loader),
			fmt.Sprintf(`REPO_USERNAME=%s`, cred.Username),
			fmt.Sprintf(`REPO_PASSWORD=%s`, cred.Password),
		}, nil
	}
	return nil, nil
}

func ensureCredsLoader(dir string) (string, error) {
	credsLoader := filepath.Join(dir, credsLoaderFile)

	_, err := os.Stat(credsLoader)
	switch {
	case os.IsNotExist(err):
		if err := os.WriteFile(credsLoader, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("unable to check if script file exits err:%w", err)
	}

	return credsLoader, nil
}

// gitSSHCommand returns the environment variable to be used for configuring
// git over ssh.
func gitSSHCommand(cred Credential) string {
	sshKeyPath := cred.SSHKeyPath
	if sshKeyPath == "" {
		sshKeyPath = "/dev/null"
	}
	knownHostsOptions := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if cred.SSHKeyPath != "" && cred.SSHKnownHostsPath != "" {
		knownHostsOptions = fmt.Sprintf("-o UserKnownHostsFile=%s", cred.SSHKnownHostsPath)
	}
	return fmt.Sprintf(`GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s`, sshKeyPath, knownHostsOptions)
}

// sameDir compares paths after resolving symlinks, git reports the real path
// of the repository
func sameDir(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = a
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = b
	}
	return filepath.Clean(ra) == filepath.Clean(rb)
}
