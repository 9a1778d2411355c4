package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"githubhotspot/logger"
)

// reloadOps are the events that can leave new content at the config path.
// Editors that save atomically rename a temp file over it.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch reloads the config file at path whenever it changes and hands the
// new Config to onChange. The parent directory is watched so the watch
// survives the file being replaced. A reload that fails is logged and
// skipped, so the previous settings stay in effect. Watch blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("Watching config file for changes", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&reloadOps == 0 {
				continue
			}
			// A rename away from path leaves nothing to read yet
			if _, err := os.Stat(path); err != nil {
				continue
			}

			cfg := NewConfig()
			if err := cfg.Load(path); err != nil {
				logger.Error("Config reload failed, keeping previous settings",
					zap.String("path", path), zap.Error(err))
				continue
			}

			logger.Info("Config reloaded", zap.String("path", path), zap.String("op", event.Op.String()))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", zap.Error(err))
		}
	}
}
