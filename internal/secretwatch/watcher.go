// Package secretwatch keeps a client secret in sync with a file on disk,
// typically a mounted Kubernetes Secret that is rotated in place.
package secretwatch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"jarvis/pkg/logging"
)

const (
	// DefaultDebounceInterval is the quiet period after the last change
	// before the file is read again.
	DefaultDebounceInterval = 500 * time.Millisecond

	// DefaultPollInterval is used when fsnotify is unavailable.
	DefaultPollInterval = 30 * time.Second
)

// Target receives the new secret on every successful reload.
type Target interface {
	Set(value string) error
}

// Config configures a Watcher.
type Config struct {
	// Path is the file holding the secret. Surrounding whitespace is trimmed.
	Path string

	Target Target

	DebounceInterval time.Duration
	PollInterval     time.Duration
}

// ReadSecretFile reads and trims a secret file. An empty file is an error.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	value := string(bytes.TrimSpace(data))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return value, nil
}

// Watcher reloads the secret when its file changes. It watches the parent
// directory because Kubernetes rotates mounted Secrets by swapping a
// symlink, which never produces an event on the file itself.
type Watcher struct {
	mu      sync.Mutex
	config  Config
	running bool
	stopCh  chan struct{}

	fsWatcher *fsnotify.Watcher

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	current string
	modTime time.Time
}

// New creates a watcher and performs the initial load into the target.
func New(config Config) (*Watcher, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("secret file path is required")
	}
	if config.Target == nil {
		return nil, fmt.Errorf("secret target is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultDebounceInterval
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	w := &Watcher{config: config}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins watching. It falls back to polling when fsnotify cannot
// watch the directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true

	dir := filepath.Dir(w.config.Path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("SecretWatch", "fsnotify not available, falling back to polling: %v", err)
		go w.poll(w.stopCh)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		logging.Warn("SecretWatch", "Failed to watch directory %s, falling back to polling: %v", dir, err)
		watcher.Close()
		go w.poll(w.stopCh)
		return nil
	}

	w.fsWatcher = watcher
	go w.processEvents(w.stopCh, watcher.Events, watcher.Errors)

	logging.Info("SecretWatch", "Watching %s for client secret changes", w.config.Path)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("SecretWatch", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents(stopCh <-chan struct{}, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logging.Debug("SecretWatch", "Change in secret directory: %s", event.Name)
			w.reloadDebounced()
		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("SecretWatch", err, "fsnotify error")
		}
	}
}

func (w *Watcher) poll(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			info, err := os.Stat(w.config.Path)
			if err != nil {
				continue
			}
			w.mu.Lock()
			changed := info.ModTime().After(w.modTime)
			w.mu.Unlock()
			if changed {
				w.reloadDebounced()
			}
		}
	}
}

func (w *Watcher) reloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.DebounceInterval, func() {
		if !w.IsRunning() {
			return
		}
		if err := w.reload(); err != nil {
			// Keep serving the previous secret.
			logging.Error("SecretWatch", err, "Failed to reload client secret")
		}
	})
}

// reload reads the file and pushes a changed value to the target.
func (w *Watcher) reload() error {
	value, err := ReadSecretFile(w.config.Path)
	if err != nil {
		return err
	}
	info, err := os.Stat(w.config.Path)
	if err != nil {
		return fmt.Errorf("stat secret file: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.modTime = info.ModTime()
	if value == w.current {
		return nil
	}
	if err := w.config.Target.Set(value); err != nil {
		return err
	}
	first := w.current == ""
	w.current = value

	if !first {
		logging.Info("SecretWatch", "Reloaded client secret from %s", w.config.Path)
	}
	return nil
}
