package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file is written or replaced. It runs until ctx is cancelled.
//
// The parent directory is watched so atomic saves (write temp, rename) are
// seen without re-adding the file. A reload that fails to parse or validate
// is logged and skipped; the previous config stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(abs)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", abs, "err", err)
				continue
			}

			slog.Info("config: reloaded",
				"path", abs,
				"stations", len(cfg.Stations),
				"paused", cfg.Rules.Scheduler.Paused,
			)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
