package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"setlist/internal/fileutil"
	"setlist/internal/index"
	"setlist/internal/liveset"
	"setlist/internal/logging"
	"setlist/internal/scanner"
	"setlist/internal/services"
)

type run struct {
	orchestrator *Orchestrator
	location     *index.Location
	runID        string
	pub          *publisher
}

// execute is the supervisor task body. Cancellation is observed at file
// boundaries: every file processed before the cancel is fully persisted,
// nothing after it is touched.
func (r *run) execute(ctx context.Context) (any, error) {
	o := r.orchestrator
	started := time.Now()
	summary := &Summary{RunID: r.runID, LocationID: r.location.ID}
	logger := o.logger.With(logging.FieldRunID, r.runID, logging.FieldLocationID, r.location.ID)

	finish := func(state State, err error) (any, error) {
		summary.State = state
		summary.Duration = time.Since(started)
		r.pub.terminal(Event{
			RunID:      r.runID,
			LocationID: r.location.ID,
			State:      state,
			Processed:  summary.ProjectsSeen + summary.ExportsSeen,
			Summary:    summary,
			Err:        err,
		})
		return summary, err
	}

	logger.Info("scan started", "root", r.location.RootPath)
	r.pub.progress(Event{RunID: r.runID, LocationID: r.location.ID, State: StateEnumerating})

	var entries []scanner.Entry
	stats, err := scanner.Walk(ctx, r.location.RootPath, scanner.OptionsFromConfig(o.cfg), func(e scanner.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return finish(StateCancelled, err)
		}
		logger.Error("enumeration failed", logging.Error(err))
		return finish(StateError, err)
	}
	summary.Warnings = append(summary.Warnings, stats.Warnings...)

	total := len(entries)
	for i, entry := range entries {
		if cerr := ctx.Err(); cerr != nil {
			return finish(StateCancelled, cerr)
		}
		r.pub.progress(Event{
			RunID:      r.runID,
			LocationID: r.location.ID,
			State:      StateParsing,
			Path:       entry.Path,
			Processed:  i,
			Total:      total,
		})

		switch entry.Kind {
		case scanner.KindProject:
			if perr := r.processProject(ctx, entry, summary, logger); perr != nil {
				logger.Error("scan aborted", logging.FieldPath, entry.Path, logging.Error(perr))
				return finish(StateError, perr)
			}
		case scanner.KindAudio:
			summary.ExportsSeen++
			if _, derr := o.correlator.DiscoverFile(ctx, &r.location.ID, entry.Path, entry.Info); derr != nil {
				summary.Warnings = append(summary.Warnings, fmt.Sprintf("discover %s: %v", entry.Path, derr))
			}
		}

		r.pub.progress(Event{
			RunID:      r.runID,
			LocationID: r.location.ID,
			State:      StatePersisting,
			Path:       entry.Path,
			Processed:  i + 1,
			Total:      total,
		})
	}

	if err := r.sweepMissing(ctx, summary, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			return finish(StateCancelled, err)
		}
		return finish(StateError, err)
	}

	if err := o.store.TouchLocationScanned(ctx, r.location.ID, time.Now().UTC()); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("record scan time: %v", err))
	}

	logger.Info("scan completed",
		"projects", summary.ProjectsSeen,
		"exports", summary.ExportsSeen,
		"failed", summary.ProjectsFailed,
		"missing", summary.MarkedMissing,
		"duration", time.Since(started).Round(time.Millisecond))
	return finish(StateComplete, nil)
}

// processProject persists one project file. Per-file failures are absorbed
// as warnings; validation and configuration errors abort the whole run.
func (r *run) processProject(ctx context.Context, entry scanner.Entry, summary *Summary, logger *slog.Logger) error {
	summary.ProjectsSeen++
	outcome, err := persistProject(ctx, r.orchestrator.store, &r.location.ID, entry.Path)
	if err != nil {
		if services.IsRunAborting(err) {
			return err
		}
		summary.ProjectsFailed++
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("index %s: %v", entry.Path, err))
		logger.Warn("project not indexed", logging.FieldPath, entry.Path, logging.Error(err))
		return nil
	}
	switch outcome {
	case index.OutcomeInserted:
		summary.ProjectsInserted++
	case index.OutcomeUpdated:
		summary.ProjectsUpdated++
	case index.OutcomeMoved:
		summary.ProjectsMoved++
	}
	return nil
}

// sweepMissing marks projects under this location whose backing file no
// longer exists. Records and their export links are kept.
func (r *run) sweepMissing(ctx context.Context, summary *Summary, logger *slog.Logger) error {
	projects, err := r.orchestrator.store.ListProjectsByLocation(ctx, r.location.ID)
	if err != nil {
		return err
	}
	for _, project := range projects {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if project.ParseStatus == index.ParseMissing || fileutil.Exists(project.Path) {
			continue
		}
		if err := r.orchestrator.store.MarkProjectMissing(ctx, project.ID); err != nil {
			return err
		}
		summary.MarkedMissing++
		logger.Info("project marked missing", logging.FieldPath, project.Path)
	}
	return nil
}

// persistProject hashes, parses and stores one project file in a single
// upsert. Unparseable files are persisted as failed records carrying the
// reason code; only read failures return an error.
func persistProject(ctx context.Context, store *index.Store, locationID *int64, path string) (index.UpsertOutcome, error) {
	normalized, err := fileutil.NormalizePath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(normalized)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(normalized)
	if err != nil {
		return "", err
	}

	project := &index.Project{
		LocationID:  locationID,
		Path:        normalized,
		ContentHash: fileutil.HashBytes(data),
		FileModTime: info.ModTime().UTC(),
		FileSize:    info.Size(),
	}

	meta, perr := liveset.Parse(data)
	if perr != nil {
		var parseErr *liveset.ParseError
		if !errors.As(perr, &parseErr) {
			return "", perr
		}
		project.ParseStatus = index.ParseFailed
		project.FailReason = string(parseErr.Reason)
	} else {
		applyMetadata(project, meta)
	}

	_, outcome, err := store.UpsertProject(ctx, project)
	return outcome, err
}

func applyMetadata(project *index.Project, meta *liveset.Metadata) {
	project.ParseStatus = index.ParseComplete
	if !meta.Complete() {
		project.ParseStatus = index.ParsePartial
	}
	project.Warnings = meta.Warnings
	project.Tempo = meta.Tempo
	project.KeySignature = meta.KeySignature
	project.TimeSignature = meta.TimeSignature
	project.AudioTracks = meta.AudioTracks
	project.MidiTracks = meta.MidiTracks
	project.ReturnTracks = meta.ReturnTracks
	project.GroupTracks = meta.GroupTracks
	project.SceneCount = meta.SceneCount
	project.PluginNames = meta.PluginNames
	project.DeviceNames = meta.DeviceNames
	project.SampleRefs = meta.SampleRefs
	project.ArrangementLength = meta.ArrangementLength
	project.SessionLength = meta.SessionLength
	project.HasAutomation = meta.HasAutomation
	project.Creator = meta.Creator
	project.MajorVersion = meta.MajorVersion
	project.MinorVersion = meta.MinorVersion
	for _, m := range meta.Markers {
		project.Markers = append(project.Markers, index.Marker{Time: m.Time, Name: m.Name})
	}
}
