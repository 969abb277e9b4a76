// Package watcher keeps the index live between scans. One fsnotify watcher
// runs per active location, watching every non-excluded directory under the
// root. Raw filesystem events are debounced per path so editor save bursts
// and Ableton's write-temp-then-rename dance collapse into a single change
// notification. Watch failures retry with exponential backoff; persistent
// failure marks the location degraded in the index while retries continue.
package watcher

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"setlist/internal/config"
	"setlist/internal/index"
	"setlist/internal/logging"
	"setlist/internal/scanner"
)

// Change classifies one debounced filesystem change.
type Change string

const (
	ChangeCreated  Change = "created"
	ChangeModified Change = "modified"
	ChangeDeleted  Change = "deleted"
)

// Event is one debounced change to a candidate file.
type Event struct {
	LocationID int64
	Path       string
	Kind       scanner.Kind
	Change     Change
}

// Handler receives debounced events. Calls arrive on watcher goroutines, one
// at a time per location.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Watcher supervises per-location watch loops.
type Watcher struct {
	cfg     *config.Config
	store   *index.Store
	handler Handler
	logger  *slog.Logger

	// OnDegraded, when set, fires once each time a location crosses the
	// consecutive-failure threshold. Set it before Start.
	OnDegraded func(root string)

	volumes *volumeMonitor

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// New constructs a watcher delivering debounced events to handler.
func New(cfg *config.Config, store *index.Store, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		cfg:     cfg,
		store:   store,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "watcher"),
	}
	if cfg.Watcher.VolumeMonitor {
		w.volumes = newVolumeMonitor(store, w.logger)
	}
	return w
}

// Start launches one watch loop per active location plus the removable
// volume monitor when enabled. It returns immediately; loops run until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	locations, err := w.store.ActiveLocations(runCtx)
	if err != nil {
		cancel()
		return err
	}

	w.cancel = cancel
	w.running = true
	for _, location := range locations {
		loop := newLocationLoop(w, location)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			loop.run(runCtx)
		}()
	}
	if w.volumes != nil {
		w.volumes.Start(runCtx)
	}
	w.logger.Info("watcher started", "locations", len(locations))
	return nil
}

// Stop terminates every watch loop and waits for them to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	if w.volumes != nil {
		w.volumes.Stop()
	}
	w.wg.Wait()
	w.logger.Info("watcher stopped")
}

func (w *Watcher) debounce() time.Duration {
	return time.Duration(w.cfg.Watcher.DebounceMillis) * time.Millisecond
}

// locationLoop owns the fsnotify watcher for one location root.
type locationLoop struct {
	parent   *Watcher
	location *index.Location
	logger   *slog.Logger
	excluded map[string]struct{}
	audio    map[string]struct{}

	mu      sync.Mutex
	pending map[string]*pendingChange
}

// pendingChange accumulates raw ops for one path while its debounce timer
// runs.
type pendingChange struct {
	timer *time.Timer
	ops   fsnotify.Op
}

func newLocationLoop(parent *Watcher, location *index.Location) *locationLoop {
	excluded := make(map[string]struct{})
	for _, name := range parent.cfg.Scanner.ExcludedDirNames {
		excluded[strings.ToLower(name)] = struct{}{}
	}
	audio := make(map[string]struct{})
	for _, ext := range parent.cfg.Correlator.AudioExtensions {
		audio[strings.ToLower(ext)] = struct{}{}
	}
	return &locationLoop{
		parent:   parent,
		location: location,
		logger:   parent.logger.With("location_id", location.ID),
		excluded: excluded,
		audio:    audio,
		pending:  make(map[string]*pendingChange),
	}
}

// run establishes the watch and reconnects with backoff until ctx ends.
func (l *locationLoop) run(ctx context.Context) {
	cfg := l.parent.cfg.Watcher
	backoff := time.Duration(cfg.BackoffInitialSeconds) * time.Second
	maxBackoff := time.Duration(cfg.BackoffMaxSeconds) * time.Second
	failures := 0

	for {
		established, err := l.watch(ctx)
		if ctx.Err() != nil {
			l.flushPending()
			return
		}
		if established {
			// The watch ran before failing; the next failure starts a fresh
			// streak.
			failures = 0
			backoff = time.Duration(cfg.BackoffInitialSeconds) * time.Second
		}

		failures++
		l.logger.Warn("watch failed", "error", err, "consecutive_failures", failures)
		if failures == cfg.DegradedAfterFailures {
			if derr := l.parent.store.SetLocationDegraded(ctx, l.location.ID, true); derr != nil {
				l.logger.Warn("mark degraded failed", "error", derr)
			} else {
				l.location.Degraded = true
				l.logger.Warn("location marked degraded", "root", l.location.RootPath)
				if l.parent.OnDegraded != nil {
					l.parent.OnDegraded(l.location.RootPath)
				}
			}
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		select {
		case <-ctx.Done():
			l.flushPending()
			return
		case <-time.After(sleep):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *locationLoop) watch(ctx context.Context) (bool, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer fsw.Close()

	if err := l.addRecursive(fsw, l.location.RootPath); err != nil {
		return false, err
	}

	// Watch re-established: clear a stale degraded flag.
	if l.location.Degraded {
		if err := l.parent.store.SetLocationDegraded(ctx, l.location.ID, false); err == nil {
			l.location.Degraded = false
			l.logger.Info("location recovered", "root", l.location.RootPath)
		}
	}
	l.logger.Info("watching", "root", l.location.RootPath)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return true, nil
			}
			l.handleRaw(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return true, nil
			}
			return true, err
		}
	}
}

// addRecursive registers every non-excluded directory under root.
func (l *locationLoop) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && l.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if werr := fsw.Add(path); werr != nil && path == root {
			return werr
		}
		return nil
	})
}

func (l *locationLoop) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := l.excluded[strings.ToLower(name)]
	return ok
}

// handleRaw feeds one fsnotify event into the debounce map. Directory
// creations extend the watch; candidate file events (re)arm the per-path
// timer so bursts and rename pairs coalesce into a single delivery.
func (l *locationLoop) handleRaw(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !l.skipDir(filepath.Base(ev.Name)) {
				_ = l.addRecursive(fsw, ev.Name)
			}
			return
		}
	}

	kind, ok := l.classify(ev.Name)
	if !ok {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if pending, exists := l.pending[ev.Name]; exists {
		pending.ops |= ev.Op
		pending.timer.Reset(l.parent.debounce())
		return
	}
	path := ev.Name
	pending := &pendingChange{ops: ev.Op}
	pending.timer = time.AfterFunc(l.parent.debounce(), func() {
		l.fire(ctx, path, kind)
	})
	l.pending[path] = pending
}

// fire resolves the final state of a settled path and notifies the handler.
// Existence at fire time decides between change and delete, which also
// resolves rename-create pairs to a single modification.
func (l *locationLoop) fire(ctx context.Context, path string, kind scanner.Kind) {
	l.mu.Lock()
	pending := l.pending[path]
	delete(l.pending, path)
	l.mu.Unlock()

	if ctx.Err() != nil || pending == nil {
		return
	}

	change := ChangeDeleted
	if _, err := os.Stat(path); err == nil {
		// A bare Create with no Write is a new file or a rename target; a
		// save-in-place burst carries Write ops.
		if pending.ops&fsnotify.Create != 0 && pending.ops&fsnotify.Write == 0 {
			change = ChangeCreated
		} else {
			change = ChangeModified
		}
	}
	l.logger.Debug("change settled", "path", path, "change", change)
	l.parent.handler.HandleEvent(ctx, Event{
		LocationID: l.location.ID,
		Path:       path,
		Kind:       kind,
		Change:     change,
	})
}

func (l *locationLoop) classify(path string) (scanner.Kind, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == ".als" {
		return scanner.KindProject, true
	}
	if _, ok := l.audio[ext]; ok {
		return scanner.KindAudio, true
	}
	return "", false
}

func (l *locationLoop) flushPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, pending := range l.pending {
		pending.timer.Stop()
		delete(l.pending, path)
	}
}
