// Package watch re-runs a callback when watched files change.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 300 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	Paths    []string
	Debounce time.Duration // Default: 300ms
	Log      *logger.Logger
}

// Watcher watches a set of files. Parent directories are watched rather
// than the files themselves so editors that save by rename are seen.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	log      *logger.Logger

	timerMu sync.Mutex
	timer   *time.Timer
	fire    chan struct{}
}

// New creates a Watcher for cfg.Paths.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(cfg.Paths)),
		debounce: cfg.Debounce,
		log:      cfg.Log,
		fire:     make(chan struct{}, 1),
	}

	seen := make(map[string]bool)
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		w.files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Run calls onChange after each debounced change to a watched file until
// ctx is canceled. onChange runs on the caller's goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	for _, dir := range w.dirs {
		if err := fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	defer w.stopTimer()

	w.log.Info("Watching for changes", "files", len(w.files))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		case <-w.fire:
			onChange(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if _, ok := w.files[filepath.Clean(event.Name)]; !ok {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	w.log.Debug("File changed", "path", event.Name, "op", event.Op.String())

	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
