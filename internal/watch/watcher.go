// Package watch invalidates page artifacts when their backing content files
// change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// Watcher monitors a content root and reports changed markdown files as
// invalidated resource keys. Bursts of events for the same save are coalesced
// by a quiet-window debounce before invalidation fires.
type Watcher struct {
	root       string
	invalidate func(artifact.Key)
	debounce   time.Duration

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher over the content root. invalidate is called once per
// changed key after the debounce window closes.
func New(root string, debounce time.Duration, invalidate func(artifact.Key)) (*Watcher, error) {
	if invalidate == nil {
		return nil, fmt.Errorf("invalidate callback is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &Watcher{
		root:       abs,
		invalidate: invalidate,
		debounce:   debounce,
		watcher:    fsw,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start registers the content tree and begins the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		w.watcher.Close()
		return err
	}

	go w.loop(ctx)

	slog.Info("Content watcher started",
		logfields.Path(w.root),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop ends the event loop and closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.done
	return w.watcher.Close()
}

// addTree watches the root and every non-hidden subdirectory. fsnotify does
// not recurse on its own.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	pending := make(map[artifact.Key]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	flush := func() {
		for key := range pending {
			slog.Debug("Content change invalidates page", logfields.Page(string(key)))
			w.invalidate(key)
		}
		pending = make(map[artifact.Key]struct{})
		flushCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, pending)
			if len(pending) > 0 {
				if flushTimer == nil {
					flushTimer = time.NewTimer(w.debounce)
				} else {
					if !flushTimer.Stop() {
						select {
						case <-flushTimer.C:
						default:
						}
					}
					flushTimer.Reset(w.debounce)
				}
				flushCh = flushTimer.C
			}
		case <-flushCh:
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Content watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[artifact.Key]struct{}) {
	// New directories must be registered to keep the tree covered.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	key, ok := artifact.KeyForContentPath(filepath.ToSlash(rel))
	if !ok {
		return
	}
	pending[key] = struct{}{}
}
