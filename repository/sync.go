package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/utilitywarehouse/git-backup/internal/utils"
)

// ErrDirtyTarget is returned when the mirror path exists and has content but
// it is not a repository the transport can open. The directory is left as is.
var ErrDirtyTarget = errors.New("target directory is not empty and is not a valid mirror")

// Outcome of a successful sync
type Outcome string

const (
	OutcomeMirrored Outcome = "mirrored"
	OutcomeUpdated  Outcome = "updated"
	OutcomeUpToDate Outcome = "up-to-date"
)

// Result of a successful sync
type Result struct {
	Outcome     Outcome
	Objects     int
	UpdatedRefs []string
	Duration    time.Duration
}

// Syncer decides whether a repository needs a full mirror clone or an
// incremental fetch and performs it with the given transport.
// A Syncer is safe for concurrent use as long as descriptors map to
// different directories.
type Syncer struct {
	transport Transport
	log       *slog.Logger
}

// NewSyncer returns Syncer using given transport
func NewSyncer(t Transport, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{transport: t, log: log}
}

// Sync ensures the mirror of d under root is current. Existence of a valid
// repository at d.Dir(root) is the only signal used to choose between mirror
// and update.
func (s *Syncer) Sync(ctx context.Context, root string, d Descriptor, auth Auth) (Result, error) {
	start := time.Now()

	res, err := s.sync(ctx, root, d, auth)
	res.Duration = time.Since(start)

	recordSync(d.Source, res, err)
	updateSyncLatency(d.Source, start)

	return res, err
}

func (s *Syncer) sync(ctx context.Context, root string, d Descriptor, auth Auth) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid repository descriptor err:%w", err)
	}

	log := s.log.With("repo", d.String())

	dir, err := filepath.Abs(d.Dir(root))
	if err != nil {
		return Result{}, fmt.Errorf("unable to get absolute path err:%w", err)
	}

	cred := auth.ForRemote(d.URL)

	h, err := s.transport.Open(ctx, dir)
	switch {
	case err == nil:
		return s.update(ctx, log, h, d, cred)
	case !errors.Is(err, ErrNotExist):
		return Result{}, fmt.Errorf("unable to open mirror err:%w", err)
	}

	log.Log(ctx, -8, "mirror not found", "path", dir, "reason", err)

	// refuse to clone into a dir which has something else in it
	empty, dErr := utils.DirIsEmpty(dir)
	switch {
	case dErr == nil && !empty:
		return Result{}, fmt.Errorf("%w: path:%s reason:%w", ErrDirtyTarget, dir, err)
	case dErr != nil && !os.IsNotExist(dErr):
		return Result{}, fmt.Errorf("unable to verify repo dir err:%w", dErr)
	}

	return s.mirror(ctx, log, dir, d, cred)
}

func (s *Syncer) update(ctx context.Context, log *slog.Logger, h Handle, d Descriptor, cred Credential) (Result, error) {
	stats, err := s.transport.FetchAll(ctx, h, d.URL, cred)
	if err != nil {
		return Result{}, fmt.Errorf("unable to update mirror err:%w", err)
	}

	res := Result{
		Outcome:     OutcomeUpdated,
		Objects:     stats.Objects,
		UpdatedRefs: stats.UpdatedRefs,
	}
	if stats.Objects == 0 && len(stats.UpdatedRefs) == 0 {
		res.Outcome = OutcomeUpToDate
		log.Info("already up-to-date")
		return res, nil
	}

	log.Info("mirror updated", "objects", stats.Objects, "updated-refs", len(stats.UpdatedRefs))
	log.Debug("updated refs", "refs", stats.UpdatedRefs)
	return res, nil
}

func (s *Syncer) mirror(ctx context.Context, log *slog.Logger, dir string, d Descriptor, cred Credential) (Result, error) {
	log.Info("creating mirror", "path", dir, "remote", d.URL)

	stats, err := s.transport.MirrorClone(ctx, d.URL, dir, cred)
	if err != nil {
		return Result{}, fmt.Errorf("unable to mirror err:%w", err)
	}

	log.Info("mirror created", "objects", stats.Objects, "refs", len(stats.UpdatedRefs))
	return Result{
		Outcome:     OutcomeMirrored,
		Objects:     stats.Objects,
		UpdatedRefs: stats.UpdatedRefs,
	}, nil
}
