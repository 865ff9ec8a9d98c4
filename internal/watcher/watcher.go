// Package watcher turns raw filesystem events into debounced id batches
// passed to the Store's reconcile primitive (spec §4.7), following the
// same fsnotify + timer-debounce shape as the teacher's watch agent, but
// simplified to a single 100ms quiescence window and content-hash no-op
// suppression instead of category-based routing.
package watcher

import (
	"crypto/md5"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexgetty/roux/internal/graphmodel"
	"github.com/alexgetty/roux/internal/logger"
)

// ignoredDirNames are never descended into or watched (spec §4.7).
var ignoredDirNames = map[string]struct{}{
	".roux":     {},
	".obsidian": {},
	".git":      {},
}

// sourceExtensions lists the enabled source extensions; MVP only tracks
// markdown files (spec §4.7).
var sourceExtensions = map[string]struct{}{
	".md": {},
}

// BatchFunc is invoked once per debounce flush with the set of changed ids
// (already normalized, relative to the source root).
type BatchFunc func(ids map[string]struct{})

// Watcher recursively watches a source root and debounces change events
// into id batches (spec §4.7).
type Watcher struct {
	root      string
	debounce  time.Duration
	onBatch   BatchFunc
	warnings  *logger.Warnings

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	hashes  map[string]string

	ready   chan struct{}
	readyOnce sync.Once
	done    chan struct{}
}

// New constructs a Watcher for sourceRoot. debounce is the quiescence
// window (spec §4.7 default: 100ms).
func New(sourceRoot string, debounce time.Duration, warnings *logger.Warnings, onBatch BatchFunc) *Watcher {
	return &Watcher{
		root:     sourceRoot,
		debounce: debounce,
		onBatch:  onBatch,
		warnings: warnings,
		pending:  make(map[string]struct{}),
		hashes:   make(map[string]string),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The returned channel closes only once the
// underlying OS watcher exists and the recursive directory registration
// has run (a registration failure is reported as a warning) — never a
// sleep-based approximation (spec §9, "Watcher readiness signal").
func (w *Watcher) Start() (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Resource exhaustion (e.g. EMFILE) degrades gracefully: log and
		// leave the Watcher unready; callers keep serving queries from
		// current state (spec §4.7).
		w.warnings.Add("watcher setup failed, serving from current state: %v", err)
		return w.ready, nil
	}
	w.fsw = fsw

	if err := w.addRecursive(w.root); err != nil {
		w.warnings.Add("watcher recursive add failed: %v", err)
	}

	go w.eventLoop()
	w.readyOnce.Do(func() { close(w.ready) })
	return w.ready, nil
}

// Stop releases the underlying OS watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, ignored := ignoredDirNames[d.Name()]; ignored {
			return filepath.SkipDir
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.warnings.Add("watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, ignored := ignoredDirNames[filepath.Base(event.Name)]; !ignored {
				_ = w.fsw.Add(event.Name)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if w.shouldSkip(rel) {
		return
	}
	id := graphmodel.NormalizeID(rel)

	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.mu.Lock()
		delete(w.hashes, id)
		w.mu.Unlock()
		w.queue(id)
	default:
		if w.contentUnchanged(event.Name, id) {
			return
		}
		w.queue(id)
	}
}

// shouldSkip filters hidden path components and non-source extensions
// (spec §4.7).
func (w *Watcher) shouldSkip(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if _, ignored := ignoredDirNames[p]; ignored {
			return true
		}
		if strings.HasPrefix(p, ".") {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(rel))
	_, ok := sourceExtensions[ext]
	return !ok
}

// contentUnchanged hashes file content and reports true when it matches
// the last-seen hash for id, suppressing no-op editor saves (spec §4.7,
// grounded on the teacher's ContentHashTracker).
func (w *Watcher) contentUnchanged(path, id string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	sum := string(h.Sum(nil))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hashes[id] == sum {
		return true
	}
	w.hashes[id] = sum
	return false
}

// queue adds id to the pending batch and (re)arms the debounce timer. A
// transient create-then-delete within the window still surfaces once,
// since reconcile treats a missing file as a deletion regardless of how
// many intermediate events fired (spec §4.7, scenario 3).
func (w *Watcher) queue(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[id] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(batch) > 0 && w.onBatch != nil {
		w.onBatch(batch)
	}
}
