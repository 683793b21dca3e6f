package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/configurator/internal/ctxlog"
)

// watchConfig reloads the configuration document whenever its file is
// written or recreated. The parent directory is watched, not the file, so
// editors that replace the file on save are still observed. It blocks until
// ctx is cancelled or the watcher fails to start.
func (a *App) watchConfig(ctx context.Context, ready chan<- error) {
	logger := ctxlog.FromContext(ctx)

	target, err := filepath.Abs(a.config.ConfigPath)
	if err != nil {
		ready <- fmt.Errorf("resolve config path: %w", err)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		ready <- fmt.Errorf("create fsnotify watcher: %w", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		ready <- fmt.Errorf("watch %s: %w", dir, err)
		return
	}
	logger.Info("👀 Watching configuration file for changes.", "path", target)
	ready <- nil

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("fsnotify event", "op", event.Op.String(), "file", event.Name)
			if err := a.configurator.ReloadConfiguration(ctx); err != nil {
				logger.Error("Configuration reload failed; keeping previous document.", "error", err)
				continue
			}
			logger.Info("🔁 Configuration reloaded.", "path", target)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("fsnotify error", "error", err)
		}
	}
}
