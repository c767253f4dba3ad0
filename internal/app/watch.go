package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/markpact/internal/ctxlog"
)

// watch re-materializes the sandbox every time the document is written,
// until ctx is cancelled. The directory is watched rather than the file so
// that editors replacing the file by rename are seen too.
func (a *App) watch(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	a.refresh(ctx, abs)
	logger.Info("Watching document for changes.", "path", abs)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("Document changed.", "op", event.Op.String())
				a.refresh(ctx, abs)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error.", "error", err)
		}
	}
}

// refresh re-reads, re-plans and re-materializes the document. Errors are
// logged and the watch continues.
func (a *App) refresh(ctx context.Context, path string) {
	logger := ctxlog.FromContext(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read document.", "error", err)
		return
	}
	text := string(raw)
	if a.config.Convert || a.config.Auto {
		text, _, _, err = a.convert(ctx, path, text)
		if err != nil {
			logger.Error("Conversion failed.", "error", err)
			return
		}
	}
	p, err := a.build(ctx, text)
	if err != nil {
		logger.Error("Document rejected.", "error", err)
		return
	}
	if _, err := a.materialize(ctx, p); err != nil {
		logger.Error("Materialization failed.", "error", err)
		return
	}
	logger.Info("Sandbox refreshed.", "files", len(p.Files))
}
