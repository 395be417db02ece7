package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file when it changes on disk and
// hands the re-validated result to a callback. Rapid write bursts (most
// editors write a file several times on save) are debounced into one
// reload.
//
// Only limit ceilings and feature overrides are expected to change at
// runtime; the callback decides what to apply. A reload that fails
// validation is logged and dropped, the running configuration stays.
type Watcher struct {
	path     string
	interval time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher needs a file path")
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		interval: debounce,
		watcher:  fsw,
		logger:   slog.Default().With("component", "config.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, delivering each successfully reloaded configuration to
// onReload, until the context is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("config watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			w.debounce(func() {
				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Error("config reload failed, keeping running configuration",
						"path", w.path,
						"error", err,
					)
					return
				}
				w.logger.Info("configuration reloaded", "path", w.path)
				onReload(cfg)
			})

			// Editors replace files on save; re-add the path so the
			// watch survives the inode change.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := w.watcher.Add(w.path); err != nil {
					w.logger.Warn("failed to re-watch config file", "error", err)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounce(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, fn)
}

// Stop halts the watcher and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}
