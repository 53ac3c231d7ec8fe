// Package store persists rendered page artifacts keyed by resource key.
package store

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
)

// ErrNotFound is returned by Get when no artifact exists for the key.
var ErrNotFound = errors.New("artifact not found")

// Store holds the last successfully produced artifact per resource key.
//
// Put replaces any previous artifact for the key atomically; a reader never
// observes a partially written artifact. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key artifact.Key) (*artifact.Artifact, error)
	Put(ctx context.Context, art *artifact.Artifact) error
	Keys(ctx context.Context) ([]artifact.Key, error)
	Close() error
}
