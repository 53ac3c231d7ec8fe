package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// GitSource serves content from a checkout of a remote repository. Sync
// clones on first use and pulls afterwards; Load and Paths read from the
// working tree through an FSSource.
type GitSource struct {
	url    string
	branch string
	dir    string

	mu sync.Mutex
	fs *FSSource
}

// NewGitSource prepares a git-backed source. dir is where the checkout lives.
func NewGitSource(url, branch, dir string) (*GitSource, error) {
	if url == "" {
		return nil, fmt.Errorf("git source URL is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve checkout directory: %w", err)
	}
	return &GitSource{url: url, branch: branch, dir: abs}, nil
}

// Sync clones the repository if the checkout is missing, or pulls otherwise.
// An up-to-date checkout is not an error.
func (s *GitSource) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err != nil {
		return s.clone(ctx)
	}
	return s.pull(ctx)
}

func (s *GitSource) clone(ctx context.Context) error {
	slog.Info("Cloning content repository",
		slog.String("url", s.url),
		slog.String("branch", s.branch),
		logfields.Path(s.dir))

	opts := &git.CloneOptions{URL: s.url}
	if s.branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + s.branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, s.dir, false, opts)
	if err != nil {
		return fmt.Errorf("failed to clone content repository %s: %w", s.url, err)
	}
	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Content repository cloned",
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(s.dir))
	}
	return s.attachFS()
}

func (s *GitSource) pull(ctx context.Context) error {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return fmt.Errorf("open content checkout: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("content worktree: %w", err)
	}

	pullOpts := &git.PullOptions{}
	if s.branch != "" {
		pullOpts.ReferenceName = plumbing.ReferenceName("refs/heads/" + s.branch)
		pullOpts.SingleBranch = true
	}
	err = wt.PullContext(ctx, pullOpts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull content repository: %w", err)
	}

	if ref, herr := repo.Head(); herr == nil {
		slog.Debug("Content repository synced", slog.String("commit", ref.Hash().String()[:8]))
	}
	return s.attachFS()
}

func (s *GitSource) attachFS() error {
	if s.fs != nil {
		return nil
	}
	fs, err := NewFSSource(s.dir)
	if err != nil {
		return err
	}
	s.fs = fs
	return nil
}

// Root returns the checkout directory, used by the watcher.
func (s *GitSource) Root() string { return s.dir }

// Load reads one content file from the checkout. Sync must have run once.
func (s *GitSource) Load(ctx context.Context, relPath string) ([]byte, error) {
	fs, err := s.workingTree()
	if err != nil {
		return nil, err
	}
	return fs.Load(ctx, relPath)
}

// Paths lists markdown files in the checkout.
func (s *GitSource) Paths(ctx context.Context) ([]string, error) {
	fs, err := s.workingTree()
	if err != nil {
		return nil, err
	}
	return fs.Paths(ctx)
}

func (s *GitSource) workingTree() (*FSSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fs == nil {
		return nil, fmt.Errorf("content checkout not synced yet")
	}
	return s.fs, nil
}
