// Package watch triggers re-analysis when a source store changes on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceInterval = 500 * time.Millisecond

// Watcher observes the configured source paths and invokes a callback after
// changes settle. Missing paths are skipped with a warning; at least one
// existing path is required.
type Watcher struct {
	paths    []string
	log      *zap.Logger
	debounce time.Duration
}

func New(paths []string, log *zap.Logger) *Watcher {
	return &Watcher{paths: paths, log: log, debounce: debounceInterval}
}

// Run blocks until ctx is done, calling onChange after each debounced burst
// of filesystem events.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = fsWatcher.Close()
	}()

	watched := 0
	for _, path := range w.paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			w.log.Warn("source path unavailable, not watching", zap.String("path", path))
			continue
		}

		// Watch the parent for files so replace-by-rename writes are seen.
		target := path
		if !info.IsDir() {
			target = filepath.Dir(path)
		}
		if err := fsWatcher.Add(target); err != nil {
			w.log.Warn("watch source path", zap.String("path", target), zap.Error(err))
			continue
		}
		watched++

		// Store roots organize data one directory level down.
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					_ = fsWatcher.Add(filepath.Join(path, entry.Name()))
				}
			}
		}
	}
	if watched == 0 {
		w.log.Warn("no watchable source paths, watcher idle")
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		case <-fire:
			onChange()
		}
	}
}
