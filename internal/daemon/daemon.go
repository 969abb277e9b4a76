// Package daemon ties the long-running pieces together: the filesystem
// watcher feeding incremental index updates, the worker supervisor running
// scans, and flock-based locking so only one setlist daemon touches the
// index at a time.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"setlist/internal/config"
	"setlist/internal/correlate"
	"setlist/internal/index"
	"setlist/internal/logging"
	"setlist/internal/notifications"
	"setlist/internal/scan"
	"setlist/internal/scanner"
	"setlist/internal/watcher"
	"setlist/internal/worker"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *index.Store
	orchestrator *scan.Orchestrator
	correlator   *correlate.Correlator
	supervisor   *worker.Supervisor
	watcher      *watcher.Watcher
	notifier     notifications.Service

	sessionID string
	lockPath  string
	lock      *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *index.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := notifications.NewService(cfg)
	supervisor := worker.NewSupervisor(logger)
	correlator := correlate.New(cfg, store, logger)
	orchestrator := scan.New(cfg, store, correlator, supervisor, logger)

	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		orchestrator: orchestrator,
		correlator:   correlator,
		supervisor:   supervisor,
		notifier:     notifier,
		sessionID:    uuid.NewString(),
		lockPath:     cfg.LockPath(),
		lock:         flock.New(cfg.LockPath()),
	}
	d.watcher = watcher.New(cfg, store, watcher.HandlerFunc(d.handleChange), logger)
	d.watcher.OnDegraded = func(root string) {
		if err := notifier.NotifyLocationDegraded(context.Background(), root); err != nil {
			d.logger.Warn("degraded notification failed", "error", err)
		}
	}
	return d, nil
}

// SessionID identifies this daemon instance in logs.
func (d *Daemon) SessionID() string { return d.sessionID }

// Start acquires the instance lock and launches the watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another setlist daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started", "session_id", d.sessionID, "lock", d.lockPath)
	return nil
}

// Stop shuts down background services and releases the lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	if err := d.supervisor.Shutdown(ctx); err != nil {
		d.logger.Warn("supervisor shutdown incomplete", "error", err)
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", "error", err)
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped", "session_id", d.sessionID)
}

// Running reports whether Start succeeded and Stop has not yet run.
func (d *Daemon) Running() bool { return d.running.Load() }

// ScanAll submits a scan for every active location, typically at startup.
// Terminal outcomes are pushed through the notification service.
func (d *Daemon) ScanAll(ctx context.Context) error {
	events := make(chan scan.Event, 256)
	handles, err := d.orchestrator.ScanAll(ctx, events)
	if err != nil {
		return err
	}
	d.logger.Info("startup scans submitted", "count", len(handles))
	if len(handles) > 0 {
		go d.notifyScanOutcomes(events, len(handles))
	}
	return nil
}

// notifyScanOutcomes drains run events until every submitted run has
// reported its terminal state. Each run emits exactly one terminal event, so
// the loop always finishes once the runs do.
func (d *Daemon) notifyScanOutcomes(events <-chan scan.Event, runs int) {
	ctx := context.Background()
	for runs > 0 {
		ev := <-events
		if !ev.State.Terminal() {
			continue
		}
		runs--
		root := d.locationRoot(ctx, ev.LocationID)
		switch ev.State {
		case scan.StateComplete:
			if s := ev.Summary; s != nil {
				if err := d.notifier.NotifyScanCompleted(ctx, root, s.ProjectsSeen, s.ExportsSeen, s.Duration); err != nil {
					d.logger.Warn("scan notification failed", "error", err)
				}
			}
		case scan.StateError:
			if err := d.notifier.NotifyScanFailed(ctx, root, ev.Err); err != nil {
				d.logger.Warn("scan notification failed", "error", err)
			}
		}
	}
}

func (d *Daemon) locationRoot(ctx context.Context, id int64) string {
	location, err := d.store.GetLocation(ctx, id)
	if err != nil {
		return fmt.Sprintf("location %d", id)
	}
	return location.RootPath
}

// handleChange routes one debounced watcher event into the index.
func (d *Daemon) handleChange(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Kind == scanner.KindProject && ev.Change == watcher.ChangeDeleted:
		if err := d.orchestrator.MarkMissing(ctx, ev.Path); err != nil && !errors.Is(err, index.ErrNotFound) {
			d.logger.Warn("mark missing failed", "path", ev.Path, "error", err)
		}
	case ev.Kind == scanner.KindProject:
		if err := d.orchestrator.RescanFile(ctx, &ev.LocationID, ev.Path); err != nil {
			d.logger.Warn("rescan failed", "path", ev.Path, "error", err)
		}
	case ev.Kind == scanner.KindAudio && ev.Change == watcher.ChangeDeleted:
		if err := d.store.DeleteExportByPath(ctx, ev.Path); err != nil {
			d.logger.Warn("remove export failed", "path", ev.Path, "error", err)
		}
	case ev.Kind == scanner.KindAudio:
		d.discoverAndLink(ctx, ev)
	}
}

// discoverAndLink records a changed audio file and immediately attempts to
// correlate the location's unlinked exports.
func (d *Daemon) discoverAndLink(ctx context.Context, ev watcher.Event) {
	info, err := os.Stat(ev.Path)
	if err != nil {
		d.logger.Warn("stat export failed", "path", ev.Path, "error", err)
		return
	}
	if _, err := d.correlator.DiscoverFile(ctx, &ev.LocationID, ev.Path, info); err != nil {
		d.logger.Warn("discover export failed", "path", ev.Path, "error", err)
		return
	}
	if _, err := d.correlator.Run(ctx, ev.LocationID); err != nil {
		d.logger.Warn("correlation failed", "location_id", ev.LocationID, "error", err)
	}
}
