package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/glossa/pkg/config"
)

// configWatcher reloads config.toml whenever it is written or replaced and
// hands the result to apply. A config that fails to load is logged and the
// previous settings stay in effect.
type configWatcher struct {
	path   string
	logger *slog.Logger
	load   func() (*config.Config, error)
	apply  func(*config.Config)

	// ready, when set, is closed once the watch is established.
	ready chan struct{}
}

// Watch blocks until ctx is done or the watcher fails.
func (w *configWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched rather than the file so editors that save
	// by rename are still seen.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching config dir: %w", err)
	}

	if w.ready != nil {
		close(w.ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config watcher error: %w", err)
		}
	}
}

func (w *configWatcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn("keeping previous config, reload failed",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.apply(cfg)
	w.logger.Info("reloaded config",
		"path", w.path,
		"fallback_base_url", cfg.Fallback.BaseURL,
		"fallback_model", cfg.Fallback.Model,
	)
}
