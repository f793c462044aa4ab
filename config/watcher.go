package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/logger"
)

// ReloadCallback receives the configuration after a successful reload
type ReloadCallback func(*Config) error

// Watcher reloads the configuration when one of its files changes.
// Directories are watched rather than files so that editors which save by
// rename still trigger a reload.
type Watcher struct {
	files    map[string]struct{}
	load     func() (*Config, error)
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu        sync.Mutex
	callbacks []ReloadCallback
	timer     *time.Timer
	closed    bool

	done chan struct{}
}

// Watch creates a Watcher over every config file that currently exists
// for explicitPath (see NewViper). Reloads go through Load(explicitPath).
func Watch(explicitPath string) (*Watcher, error) {
	var paths []string
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	if explicitPath != "" {
		paths = append(paths, explicitPath)
	}
	return NewWatcher(paths, func() (*Config, error) { return Load(explicitPath) })
}

// NewWatcher watches paths and calls load when any of them changes.
func NewWatcher(paths []string, load func() (*Config, error)) (*Watcher, error) {
	return newWatcher(paths, load, 500*time.Millisecond)
}

func newWatcher(paths []string, load func() (*Config, error), debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(paths)),
		load:     load,
		watcher:  fw,
		debounce: debounce,
		done:     make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to resolve %s", p)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to watch config directory %s", dir)
		}
	}

	go w.watchLoop()
	return w, nil
}

// Files returns the absolute paths being watched.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// OnReload registers a callback to be called when config is reloaded
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; !watched {
				continue
			}
			logger.Infow("Config watcher detected change",
				"file", event.Name,
				"op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid file changes
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("Config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	cfg, err := w.load()
	if err != nil {
		// Keep running with the previous configuration
		return errors.Wrap(err, "failed to reload config")
	}

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for i, cb := range callbacks {
		if err := cb(cfg); err != nil {
			logger.Errorw("Config reload callback failed",
				"callback", i,
				"error", err)
		}
	}
	logger.Infow("Config reloaded", "callbacks", len(callbacks))
	return nil
}
