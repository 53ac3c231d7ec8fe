package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/render"
)

// runRender renders pages into the artifact store once and exits. With no
// arguments every discovered content file is rendered; with arguments only
// the named page paths are. Useful for warming a persistent store before the
// server starts.
func runRender(cfg *config.Config, paths []string) error {
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close artifact store", "error", err)
		}
	}()

	src, _, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	renderer, err := render.NewRenderer(src, cfg.Site.Title)
	if err != nil {
		return err
	}

	keys, err := renderKeys(ctx, src.Paths, paths)
	if err != nil {
		return err
	}
	horizon := cfg.Pages.DefaultRevalidate()

	for _, key := range keys {
		art, err := renderer.Render(ctx, key)
		if err != nil {
			slog.Error("Failed to render page", "page", string(key), "error", err)
			return err
		}

		art.Key = key
		art.GeneratedAt = time.Now()
		art.Revision = uuid.NewString()
		if art.Horizon == 0 {
			art.Horizon = horizon
		}

		if err := st.Put(ctx, art); err != nil {
			return fmt.Errorf("store page %s: %w", key, err)
		}
		slog.Info("Page rendered", "page", string(key))
	}

	slog.Info("Render completed", "pages", len(keys))
	return nil
}

// renderKeys resolves the set of resource keys to render: explicit page paths
// when given, otherwise every markdown file the source can list.
func renderKeys(ctx context.Context, list func(context.Context) ([]string, error), paths []string) ([]artifact.Key, error) {
	if len(paths) > 0 {
		keys := make([]artifact.Key, 0, len(paths))
		for _, p := range paths {
			keys = append(keys, artifact.NewKey(p, nil))
		}
		return keys, nil
	}

	contentPaths, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	keys := make([]artifact.Key, 0, len(contentPaths))
	for _, cp := range contentPaths {
		key, ok := artifact.KeyForContentPath(cp)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
