//go:build !deadlock_test

// Package lock provides the mutex types used across git-backup.
// Building with the `deadlock_test` tag swaps them for go-deadlock
// implementations which report lock-order violations and long waits.
package lock

import "sync"

type Mutex = sync.Mutex

type RWMutex = sync.RWMutex
