package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/utilitywarehouse/git-backup/internal/utils"
	gossh "golang.org/x/crypto/ssh"
)

// GoGitTransport is the pure Go transport built on go-git
type GoGitTransport struct {
	log *slog.Logger
}

type goGitHandle struct {
	dir  string
	repo *git.Repository
}

func (h *goGitHandle) Dir() string { return h.dir }

// NewGoGitTransport returns the go-git transport
func NewGoGitTransport(log *slog.Logger) *GoGitTransport {
	if log == nil {
		log = slog.Default()
	}
	return &GoGitTransport{log: log}
}

func (t *GoGitTransport) Open(_ context.Context, dir string) (Handle, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) || os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("%w: %w", ErrNotExist, err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read repo config err:%w", ErrNotExist, err)
	}
	if !cfg.Core.IsBare {
		return nil, fmt.Errorf("%w: repo is not a bare repository", ErrNotExist)
	}
	if _, ok := cfg.Remotes[defaultRemote]; !ok {
		return nil, fmt.Errorf("%w: remote %s is not configured", ErrNotExist, defaultRemote)
	}

	return &goGitHandle{dir: dir, repo: repo}, nil
}

func (t *GoGitTransport) FetchAll(ctx context.Context, h Handle, url string, cred Credential) (FetchStats, error) {
	gh, ok := h.(*goGitHandle)
	if !ok {
		return FetchStats{}, fmt.Errorf("handle of type %T is not a go-git handle", h)
	}

	if err := t.ensureRemote(gh.repo, url); err != nil {
		return FetchStats{}, err
	}

	auth, err := goGitAuth(cred)
	if err != nil {
		return FetchStats{}, err
	}

	before, err := refSnapshot(gh.repo)
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to read refs err:%w", err)
	}

	progress := &bytes.Buffer{}
	err = gh.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: defaultRemote,
		RefSpecs:   []config.RefSpec{defaultRefSpec},
		Auth:       auth,
		Progress:   progress,
		Tags:       git.AllTags,
		Force:      true,
		Prune:      true,
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return FetchStats{}, nil
	case err != nil:
		return FetchStats{}, fmt.Errorf("unable to fetch err:%w", err)
	}

	after, err := refSnapshot(gh.repo)
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to read refs err:%w", err)
	}

	return FetchStats{
		Objects:     totalObjects(progress.String()),
		UpdatedRefs: diffRefs(before, after),
	}, nil
}

func (t *GoGitTransport) MirrorClone(ctx context.Context, url, dir string, cred Credential) (FetchStats, error) {
	auth, err := goGitAuth(cred)
	if err != nil {
		return FetchStats{}, err
	}

	if err := os.MkdirAll(dir, utils.DefaultDirMode); err != nil {
		return FetchStats{}, fmt.Errorf("unable to create repo dir err:%w", err)
	}

	progress := &bytes.Buffer{}
	repo, err := git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
		URL:      url,
		Auth:     auth,
		Mirror:   true,
		Tags:     git.AllTags,
		Progress: progress,
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		// nothing to clone yet, leave a configured mirror behind so that
		// next sync can fetch into it
		t.log.Info("remote repository is empty", "remote", url)
		return FetchStats{}, t.initEmptyMirror(url, dir)
	}
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to clone err:%w", err)
	}

	refs, err := refSnapshot(repo)
	if err != nil {
		return FetchStats{}, fmt.Errorf("unable to read refs err:%w", err)
	}

	return FetchStats{
		Objects:     totalObjects(progress.String()),
		UpdatedRefs: diffRefs(nil, refs),
	}, nil
}

func (t *GoGitTransport) initEmptyMirror(url, dir string) error {
	repo, err := git.PlainInit(dir, true)
	if err != nil {
		return fmt.Errorf("unable to init repo err:%w", err)
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name:   defaultRemote,
		URLs:   []string{url},
		Fetch:  []config.RefSpec{defaultRefSpec},
		Mirror: true,
	})
	if err != nil {
		return fmt.Errorf("unable to set remote err:%w", err)
	}
	return nil
}

// ensureRemote re-points origin to url if it differs
func (t *GoGitTransport) ensureRemote(repo *git.Repository, url string) error {
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("unable to read repo config err:%w", err)
	}
	remote := cfg.Remotes[defaultRemote]
	if slices.Equal(remote.URLs, []string{url}) {
		return nil
	}

	t.log.Info("updating origin url", "from", remote.URLs, "to", url)
	remote.URLs = []string{url}
	remote.Fetch = []config.RefSpec{defaultRefSpec}
	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("unable to update remote err:%w", err)
	}
	return nil
}

// goGitAuth converts resolved credential to go-git auth method
func goGitAuth(cred Credential) (transport.AuthMethod, error) {
	switch cred.Kind {
	case CredentialSSHKey:
		keys, err := ssh.NewPublicKeysFromFile(cred.Username, cred.SSHKeyPath, "")
		if err != nil {
			return nil, fmt.Errorf("unable to load ssh key from %s err:%w", cred.SSHKeyPath, err)
		}
		if cred.SSHKnownHostsPath == "" {
			// same as `StrictHostKeyChecking=no` used by the git transport
			keys.HostKeyCallback = gossh.InsecureIgnoreHostKey()
			return keys, nil
		}
		cb, err := ssh.NewKnownHostsCallback(cred.SSHKnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("unable to load known hosts from %s err:%w", cred.SSHKnownHostsPath, err)
		}
		keys.HostKeyCallback = cb
		return keys, nil

	case CredentialBasic:
		return &http.BasicAuth{Username: cred.Username, Password: cred.Password}, nil
	}
	return nil, nil
}

// refSnapshot returns map of ref name to the hash or symbolic target it points to
func refSnapshot(repo *git.Repository) (map[string]string, error) {
	iter, err := repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	refs := map[string]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.SymbolicReference {
			refs[ref.Name().String()] = ref.Target().String()
			return nil
		}
		refs[ref.Name().String()] = ref.Hash().String()
		return nil
	})
	return refs, err
}
