package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/baiirun/programme/internal/logging"
)

// Watcher is a mode.Provider backed by the config file. It reloads the
// reduced-capability flag whenever the file is written or replaced.
type Watcher struct {
	path   string
	logger *logging.Logger

	mu      sync.RWMutex
	reduced bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch loads path once and starts watching its directory. The directory
// is watched rather than the file so atomic renames are seen.
func Watch(path string, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:    abs,
		logger:  logger.With("config"),
		reduced: cfg.Mode.Reduced,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// IsReducedCapabilityMode implements mode.Provider.
func (w *Watcher) IsReducedCapabilityMode(context.Context) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reduced, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("fsnotify event=%s file=%s", event.Op, event.Name)
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error=%v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// keep the last good value; a half-written file is retried on the next event
		w.logger.Warn("config reload failed path=%s error=%v", w.path, err)
		return
	}
	w.mu.Lock()
	changed := w.reduced != cfg.Mode.Reduced
	w.reduced = cfg.Mode.Reduced
	w.mu.Unlock()
	if changed {
		w.logger.Info("capability mode changed reduced=%t", cfg.Mode.Reduced)
	}
}
