package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Opts configures watch mode.
type Opts struct {
	Debounce             time.Duration `long:"debounce" env:"DEBOUNCE" description:"Quiet period after a change before rebuilding" default:"250ms"`
	BackOff              time.Duration `long:"backoff" env:"BACKOFF" description:"Wait after a failed rebuild" default:"1s"`
	MaxConsecutiveErrors int           `long:"max-errors" env:"MAX_ERRORS" description:"Stop after this many failed rebuilds in a row, 0 never stops" default:"5"`
}

// Watcher emits a signal once a burst of changes under its roots has settled.
// Directories are watched recursively, including those created after Add.
type Watcher struct {
	log      *slog.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	signal   chan struct{}

	mu      sync.Mutex
	ignored map[string]struct{}

	closeOnce sync.Once
}

// NewWatcher returns a new watcher.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		log:      slog.Default(),
		fsw:      fsw,
		debounce: debounce,
		signal:   make(chan struct{}, 1),
		ignored:  map[string]struct{}{},
	}, nil
}

func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.log = logger
	return w
}

// Ignore drops events on the given paths, typically the generated manifest and bundle.
func (w *Watcher) Ignore(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			w.ignored[abs] = struct{}{}
		}
	}
}

func (w *Watcher) isIgnored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.ignored[abs]
	return ok
}

// Add watches each root; directories are walked and every directory below them is watched too.
func (w *Watcher) Add(roots ...string) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := w.fsw.Add(root); err != nil {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			continue
		}
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("walking directory", "path", path, "error", err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		w.log.Debug("watching directory", "path", path)
		return nil
	})
}

// Signal fires once per settled burst of changes.
func (w *Watcher) Signal() <-chan struct{} { return w.signal }

// Start processes filesystem events until ctx is done or the watcher is closed. Non-blocking call.
func (w *Watcher) Start(ctx context.Context) *Watcher {
	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if !w.handle(event) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.WarnContext(ctx, "watcher error", "error", err)
			case <-fire:
				fire = nil
				select {
				case w.signal <- struct{}{}:
				default: // There is already an unconsumed signal in here.
				}
			}
		}
	}()
	return w
}

// handle reports whether event counts as a change.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod || w.isIgnored(event.Name) {
		return false
	}
	getMetrics().eventsTotal.WithLabelValues(opLabel(event.Op)).Inc()
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("watching new directory", "path", event.Name, "error", err)
			}
		}
	}
	w.log.Debug("change", "path", event.Name, "op", event.Op.String())
	return true
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}

// Close stops the watcher and releases its watches.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
