// Package watcher reloads rule sets when files under the rules directory change.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	tickInterval    = 50 * time.Millisecond
)

// ReloadFunc is called once per burst of changes
type ReloadFunc func(ctx context.Context) error

// Stats tracks watcher activity
type Stats struct {
	Events    int       `json:"events"`
	Reloads   int       `json:"reloads"`
	Errors    int       `json:"errors"`
	LastEvent time.Time `json:"last_event"`
}

// Watcher watches a directory tree and calls a ReloadFunc after changes
// settle for the debounce duration.
type Watcher struct {
	mu       sync.Mutex
	fs       *fsnotify.Watcher
	root     string
	suffixes []string
	reload   ReloadFunc
	debounce time.Duration

	pending   bool
	lastEvent time.Time
	stats     Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher for root. Only files ending in one of suffixes
// trigger a reload; directory creation always does.
func New(root string, suffixes []string, debounce time.Duration, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		fs:       fw,
		root:     root,
		suffixes: suffixes,
		reload:   reload,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the directory tree and begins processing events in a goroutine
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", w.root).Msg("Failed to create rules directory")
	}
	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	log.Info().Str("dir", w.root).Dur("debounce", w.debounce).Msg("Watching rule files")
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the underlying watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.fs.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close file watcher")
	}
}

// Stats returns a snapshot of watcher activity
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// GetStats exposes the counters to the metrics endpoint
func (w *Watcher) GetStats(ctx context.Context) map[string]any {
	s := w.Stats()
	return map[string]any{
		"events":     s.Events,
		"reloads":    s.Reloads,
		"errors":     s.Errors,
		"last_event": s.LastEvent,
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	relevant := w.matches(event.Name)
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			relevant = true
		}
	}
	// a removed or renamed directory takes its rule files with it
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if filepath.Ext(event.Name) == "" {
			relevant = true
		}
	}
	if !relevant {
		return
	}

	log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Rule file changed")

	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEvent = w.lastEvent
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	err := w.reload(ctx)

	w.mu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.Reloads++
	}
	w.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("dir", w.root).Msg("Rule set reload failed")
	}
}

func (w *Watcher) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range w.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}
