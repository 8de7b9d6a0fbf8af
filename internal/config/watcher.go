package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often [Watcher.Run] looks at the file.
const DefaultWatchInterval = 2 * time.Second

// Watcher holds the last valid config read from a file and reports edits.
// Edits that fail to load leave the current config in place.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
	sum     [sha256.Size]byte
}

// fileStamp is the cheap stat-level identity checked before reading.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// OnChange registers fn to receive the previous and the new config after
// every accepted edit. fn runs on the watcher goroutine.
func OnChange(fn func(old, new *Config)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher loads path and returns a watcher over it. Polling starts with
// [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval}
	for _, o := range opts {
		o(w)
	}

	stamp, err := statFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.stamp, w.sum = cfg, stamp, sha256.Sum256(data)
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done. Load failures are logged and retried
// on the next edit.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config: reload failed, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// Reload re-reads the file if its size or mtime moved and reports whether a
// different config was accepted. The change callback runs before Reload
// returns.
func (w *Watcher) Reload() (bool, error) {
	stamp, err := statFile(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if stamp == w.stamp {
		w.mu.Unlock()
		return false, nil
	}
	// Recorded up front so a broken edit is reported once, not every tick.
	w.stamp = stamp
	w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	if sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	w.mu.Unlock()

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current, w.sum = cfg, sum
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime()}, nil
}
