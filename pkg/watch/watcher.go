// Package watch rescans logs when they change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/parser"
	"github.com/logflow/actionlog/pkg/util"
)

// DefaultDebounce is the quiet period after a write before a rescan starts.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors files for changes and triggers updates.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]*fileState
	mu       sync.RWMutex
	debounce time.Duration
	log      logrus.FieldLogger

	OnChange func(path string) error
	OnError  func(path string, err error)
}

type fileState struct {
	path         string
	lastModified time.Time
	size         int64
	processing   bool
	pending      bool // changed again while processing
}

// NewWatcher creates a new file watcher. A non-positive debounce selects
// DefaultDebounce.
func NewWatcher(debounce time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		debounce: debounce,
		log:      log,
	}, nil
}

// Watch starts watching a file for changes.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	w.mu.Lock()
	w.files[absPath] = &fileState{
		path:         absPath,
		lastModified: stat.ModTime(),
		size:         stat.Size(),
	}
	w.mu.Unlock()

	// Watch the directory containing the file (fsnotify works better this way)
	dir := filepath.Dir(absPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	w.log.WithField("path", absPath).Debug("watching")
	return nil
}

// Run starts the watch loop. Blocks until context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	debounceTimers := make(map[string]*time.Timer)
	var timerMu sync.Mutex
	defer func() {
		timerMu.Lock()
		for _, t := range debounceTimers {
			t.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// Rotation shows up as Create; truncation and appends as Write.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			w.mu.RLock()
			state, isWatched := w.files[absPath]
			w.mu.RUnlock()

			if !isWatched {
				continue
			}

			// Debounce rapid changes
			timerMu.Lock()
			if timer, exists := debounceTimers[absPath]; exists {
				timer.Stop()
			}
			debounceTimers[absPath] = time.AfterFunc(w.debounce, func() {
				w.handleChange(absPath, state)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
			if w.OnError != nil {
				w.OnError("", err)
			}
		}
	}
}

// handleChange rescans path. A change that arrives while a rescan is running
// is remembered and rescanned once that rescan returns.
func (w *Watcher) handleChange(path string, state *fileState) {
	w.mu.Lock()
	if state.processing {
		state.pending = true
		w.mu.Unlock()
		return
	}
	state.processing = true
	w.mu.Unlock()

	for {
		w.rescan(path, state)

		w.mu.Lock()
		if !state.pending {
			state.processing = false
			w.mu.Unlock()
			return
		}
		state.pending = false
		w.mu.Unlock()
	}
}

func (w *Watcher) rescan(path string, state *fileState) {
	stat, err := os.Stat(path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(path, err)
		}
		return
	}

	w.mu.Lock()
	unchanged := stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size
	if !unchanged {
		state.lastModified = stat.ModTime()
		state.size = stat.Size()
	}
	w.mu.Unlock()
	if unchanged {
		return
	}

	w.log.WithFields(logrus.Fields{"path": path, "size": stat.Size()}).Debug("change detected")
	if w.OnChange != nil {
		if err := w.OnChange(path); err != nil {
			if w.OnError != nil {
				w.OnError(path, err)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Rescanner scans a whole file each time it changes. An action block may
// span the previous end of file, so partial rescans from an offset are not
// attempted.
type Rescanner struct {
	scanner  *parser.Scanner
	onReport func(path string, report *model.Report)
	ctx      context.Context
}

// NewRescanner creates a Rescanner that hands each report to onReport.
func NewRescanner(ctx context.Context, scanner *parser.Scanner, onReport func(string, *model.Report)) *Rescanner {
	return &Rescanner{scanner: scanner, onReport: onReport, ctx: ctx}
}

// Scan runs one full scan of path. It matches the Watcher.OnChange signature.
func (r *Rescanner) Scan(path string) error {
	rc, err := util.OpenFile(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	report, err := r.scanner.Scan(r.ctx, rc)
	if err != nil {
		return err
	}
	report.Source = path
	if r.onReport != nil {
		r.onReport(path, report)
	}
	return nil
}
