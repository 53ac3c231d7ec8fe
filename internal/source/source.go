// Package source abstracts where page content comes from. The coordinator
// treats source latency and failure modes as opaque.
package source

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no content exists at the path.
var ErrNotFound = errors.New("content not found")

// Source loads raw page content by path relative to the content root.
type Source interface {
	Load(ctx context.Context, relPath string) ([]byte, error)
	// Paths lists the markdown content paths the source currently holds,
	// relative to the content root.
	Paths(ctx context.Context) ([]string, error)
}
