package store

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
)

// MemoryStore is an in-process Store. It is the default when no persistence
// is configured and the workhorse for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[artifact.Key]*artifact.Artifact
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[artifact.Key]*artifact.Artifact)}
}

// Get returns a copy of the stored artifact so callers cannot mutate the
// stored content in place.
func (s *MemoryStore) Get(_ context.Context, key artifact.Key) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	art, ok := s.artifacts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneArtifact(art), nil
}

// Put replaces the artifact stored for the key.
func (s *MemoryStore) Put(_ context.Context, art *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[art.Key] = cloneArtifact(art)
	return nil
}

// Keys lists every key with a stored artifact.
func (s *MemoryStore) Keys(_ context.Context) ([]artifact.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]artifact.Key, 0, len(s.artifacts))
	for k := range s.artifacts {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func cloneArtifact(a *artifact.Artifact) *artifact.Artifact {
	clone := *a
	clone.Content = append([]byte(nil), a.Content...)
	return &clone
}
