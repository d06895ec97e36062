package repository

import (
	"context"
	"errors"
)

const (
	defaultRemote  = "origin"
	defaultRefSpec = "+refs/*:refs/*"
)

var (
	// ErrNotExist is returned by Transport.Open when dir doesn't contain a
	// usable mirror
	ErrNotExist = errors.New("mirror does not exist")
)

// Handle is an opened local mirror. The concrete type is owned by the
// transport which opened it.
type Handle interface {
	Dir() string
}

// FetchStats is what the transport reported for a fetch.
type FetchStats struct {
	// Objects is the number of objects received from the remote
	Objects int
	// UpdatedRefs lists the local refs which were created, updated or deleted
	UpdatedRefs []string
}

// Transport performs version control operations on a local mirror.
// Implementations must be safe for concurrent use on different directories.
type Transport interface {
	// Open checks dir for an existing mirror, it returns ErrNotExist if dir is
	// missing or is not a valid bare repository
	Open(ctx context.Context, dir string) (Handle, error)
	// FetchAll fetches all refs including tags from the origin remote, local
	// refs are force updated to match the remote. origin is re-pointed to url
	// if the remote was reconfigured (e.g. clone type changed)
	FetchAll(ctx context.Context, h Handle, url string, cred Credential) (FetchStats, error)
	// MirrorClone creates a bare mirror of url in dir with all refs mapped
	// with "+refs/*:refs/*"
	MirrorClone(ctx context.Context, url, dir string, cred Credential) (FetchStats, error)
}
