// Package scan drives index runs: enumerate a location, hash and parse every
// project file, persist results one transaction per file, discover audio
// exports, and sweep records whose backing file disappeared. Runs execute
// under the worker supervisor keyed by location, so at most one run per
// location is active at a time.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"setlist/internal/config"
	"setlist/internal/correlate"
	"setlist/internal/index"
	"setlist/internal/logging"
	"setlist/internal/worker"
)

// Orchestrator coordinates scan runs over one index store.
type Orchestrator struct {
	cfg        *config.Config
	store      *index.Store
	correlator *correlate.Correlator
	supervisor *worker.Supervisor
	logger     *slog.Logger
}

// New constructs an orchestrator. The supervisor is shared with other
// subsystems so scans and future task kinds contend on the same keys.
func New(cfg *config.Config, store *index.Store, correlator *correlate.Correlator, supervisor *worker.Supervisor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		correlator: correlator,
		supervisor: supervisor,
		logger:     logging.NewComponentLogger(logger, "scan"),
	}
}

func locationKey(id int64) string {
	return fmt.Sprintf("scan:location:%d", id)
}

// ScanLocation submits a full run for one location. Events are delivered to
// the caller-owned channel; pass nil to discard them. A second submission
// for the same location while a run is active fails with services.ErrBusy.
func (o *Orchestrator) ScanLocation(ctx context.Context, locationID int64, events chan<- Event) (*worker.Handle, error) {
	location, err := o.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	run := &run{
		orchestrator: o,
		location:     location,
		runID:        uuid.NewString(),
		pub:          &publisher{events: events},
	}
	return o.supervisor.Submit(locationKey(location.ID), fmt.Sprintf("scan %s", location.RootPath), run.execute)
}

// ScanAll submits one run per active location. Already-busy locations are
// skipped with a log entry rather than failing the whole submission.
func (o *Orchestrator) ScanAll(ctx context.Context, events chan<- Event) ([]*worker.Handle, error) {
	locations, err := o.store.ActiveLocations(ctx)
	if err != nil {
		return nil, err
	}
	var handles []*worker.Handle
	for _, location := range locations {
		handle, err := o.ScanLocation(ctx, location.ID, events)
		if err != nil {
			o.logger.Warn("scan submission skipped", "location_id", location.ID, "error", err)
			continue
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// RescanFile re-indexes a single project file in place. The watcher calls
// this for debounced change events; it runs synchronously on the caller's
// goroutine.
func (o *Orchestrator) RescanFile(ctx context.Context, locationID *int64, path string) error {
	outcome, err := persistProject(ctx, o.store, locationID, path)
	if err != nil {
		return err
	}
	o.logger.Info("project rescanned", "path", path, "outcome", outcome)
	return nil
}

// MarkMissing flags the project record backing a deleted file. Missing
// records keep their metadata and links.
func (o *Orchestrator) MarkMissing(ctx context.Context, path string) error {
	return o.store.MarkProjectMissingByPath(ctx, path)
}
