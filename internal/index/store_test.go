package index_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"setlist/internal/index"
	"setlist/internal/services"
	"setlist/internal/testsupport"
)

func newStore(t *testing.T) *index.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg)
}

func sampleProject(path, hash string) *index.Project {
	tempo := 128.0
	return &index.Project{
		Path:        path,
		ContentHash: hash,
		ParseStatus: index.ParseComplete,
		Tempo:       &tempo,
		AudioTracks: 2,
		MidiTracks:  1,
		PluginNames: []string{"Serum"},
		DeviceNames: []string{"Eq8"},
		Markers:     []index.Marker{{Time: 16, Name: "Drop"}},
		FileModTime: time.Now().UTC().Truncate(time.Second),
		FileSize:    4096,
	}
}

func TestAddAndListLocations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	root := t.TempDir()
	loc, err := store.AddLocation(ctx, root, index.LocationLocal)
	if err != nil {
		t.Fatalf("AddLocation returned error: %v", err)
	}
	if !loc.Active {
		t.Fatal("expected new location to be active")
	}

	if _, err := store.AddLocation(ctx, root, index.LocationLocal); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for duplicate root, got %v", err)
	}

	if err := store.SetLocationActive(ctx, loc.ID, false); err != nil {
		t.Fatalf("SetLocationActive returned error: %v", err)
	}
	active, err := store.ActiveLocations(ctx)
	if err != nil {
		t.Fatalf("ActiveLocations returned error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active locations, got %d", len(active))
	}

	all, err := store.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one location, got %d", len(all))
	}
}

func TestAddLocationRejectsMissingDirectory(t *testing.T) {
	store := newStore(t)

	_, err := store.AddLocation(context.Background(), "/nonexistent/setlist-root", index.LocationLocal)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertProjectDedupesByContentHash(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, outcome, err := store.UpsertProject(ctx, sampleProject("/music/old/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("insert returned error: %v", err)
	}
	if outcome != index.OutcomeInserted {
		t.Fatalf("expected inserted outcome, got %s", outcome)
	}

	// Same bytes discovered at a new path while the old path is gone: the
	// record follows the file instead of duplicating.
	moved, outcome, err := store.UpsertProject(ctx, sampleProject("/music/new/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("move upsert returned error: %v", err)
	}
	if outcome != index.OutcomeMoved {
		t.Fatalf("expected moved outcome, got %s", outcome)
	}
	if moved.ID != first.ID {
		t.Fatalf("expected record %d to be re-pathed, got new record %d", first.ID, moved.ID)
	}
	if moved.Path != "/music/new/track.als" {
		t.Fatalf("unexpected path after move: %s", moved.Path)
	}

	all, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one project after move, got %d", len(all))
	}
}

func TestUpsertProjectUpdatesChangedContent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, _, err := store.UpsertProject(ctx, sampleProject("/music/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("insert returned error: %v", err)
	}

	changed := sampleProject("/music/track.als", "hash-b")
	changed.AudioTracks = 5
	updated, outcome, err := store.UpsertProject(ctx, changed)
	if err != nil {
		t.Fatalf("update upsert returned error: %v", err)
	}
	if outcome != index.OutcomeUpdated {
		t.Fatalf("expected updated outcome, got %s", outcome)
	}
	if updated.ID != first.ID {
		t.Fatalf("expected in-place update of record %d, got %d", first.ID, updated.ID)
	}
	if updated.ContentHash != "hash-b" || updated.AudioTracks != 5 {
		t.Fatalf("update did not persist: %+v", updated)
	}
}

func TestProjectRoundTripPreservesMetadata(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	in := sampleProject("/music/track.als", "hash-a")
	key := "A Minor"
	in.KeySignature = &key
	in.Warnings = []string{"time signature not found"}
	in.ParseStatus = index.ParsePartial

	stored, _, err := store.UpsertProject(ctx, in)
	if err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}

	got, err := store.GetProject(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetProject returned error: %v", err)
	}
	if got.Tempo == nil || *got.Tempo != 128 {
		t.Fatalf("tempo not preserved: %v", got.Tempo)
	}
	if got.KeySignature == nil || *got.KeySignature != "A Minor" {
		t.Fatalf("key signature not preserved: %v", got.KeySignature)
	}
	if len(got.Markers) != 1 || got.Markers[0].Name != "Drop" {
		t.Fatalf("markers not preserved: %+v", got.Markers)
	}
	if len(got.Warnings) != 1 || got.ParseStatus != index.ParsePartial {
		t.Fatalf("parse outcome not preserved: %s %v", got.ParseStatus, got.Warnings)
	}
}

func TestMarkProjectMissing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	stored, _, err := store.UpsertProject(ctx, sampleProject("/music/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	if err := store.MarkProjectMissing(ctx, stored.ID); err != nil {
		t.Fatalf("MarkProjectMissing returned error: %v", err)
	}

	got, err := store.GetProject(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetProject returned error: %v", err)
	}
	if got.ParseStatus != index.ParseMissing {
		t.Fatalf("expected missing status, got %s", got.ParseStatus)
	}
}

func TestManualLinkShieldsAutomaticRelink(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	project, _, err := store.UpsertProject(ctx, sampleProject("/music/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("upsert project returned error: %v", err)
	}
	other, _, err := store.UpsertProject(ctx, sampleProject("/music/other.als", "hash-b"))
	if err != nil {
		t.Fatalf("upsert project returned error: %v", err)
	}

	export, err := store.UpsertExport(ctx, &index.Export{
		Path:            "/music/renders/track.wav",
		Format:          "wav",
		SampleRate:      44100,
		BitDepth:        16,
		Channels:        2,
		DurationSeconds: 180,
		FileModTime:     time.Now().UTC(),
		FileSize:        1 << 20,
	})
	if err != nil {
		t.Fatalf("UpsertExport returned error: %v", err)
	}

	if err := store.ConfirmExport(ctx, export.ID, project.ID); err != nil {
		t.Fatalf("ConfirmExport returned error: %v", err)
	}

	err = store.LinkExport(ctx, export.ID, other.ID, 0.9, index.OriginAutomatic)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error overwriting manual link, got %v", err)
	}

	got, err := store.GetExport(ctx, export.ID)
	if err != nil {
		t.Fatalf("GetExport returned error: %v", err)
	}
	if !got.Linked() || *got.ProjectID != project.ID || got.Origin != index.OriginManual {
		t.Fatalf("manual link not preserved: %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected confirmed confidence 1.0, got %g", got.Confidence)
	}
}

func TestUpsertExportPreservesExistingLink(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	project, _, err := store.UpsertProject(ctx, sampleProject("/music/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("upsert project returned error: %v", err)
	}
	export, err := store.UpsertExport(ctx, &index.Export{Path: "/music/renders/track.wav", Format: "wav"})
	if err != nil {
		t.Fatalf("UpsertExport returned error: %v", err)
	}
	if err := store.LinkExport(ctx, export.ID, project.ID, 0.85, index.OriginAutomatic); err != nil {
		t.Fatalf("LinkExport returned error: %v", err)
	}

	// Re-discovery during a later scan must not clear the existing link.
	again, err := store.UpsertExport(ctx, &index.Export{Path: "/music/renders/track.wav", Format: "wav", FileSize: 99})
	if err != nil {
		t.Fatalf("re-upsert returned error: %v", err)
	}
	if !again.Linked() || *again.ProjectID != project.ID {
		t.Fatalf("link lost on re-discovery: %+v", again)
	}
	if again.FileSize != 99 {
		t.Fatalf("file metadata not refreshed: %+v", again)
	}
}

func TestUnlinkExport(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	project, _, err := store.UpsertProject(ctx, sampleProject("/music/track.als", "hash-a"))
	if err != nil {
		t.Fatalf("upsert project returned error: %v", err)
	}
	export, err := store.UpsertExport(ctx, &index.Export{Path: "/music/renders/track.wav", Format: "wav"})
	if err != nil {
		t.Fatalf("UpsertExport returned error: %v", err)
	}
	if err := store.LinkExport(ctx, export.ID, project.ID, 0.85, index.OriginAutomatic); err != nil {
		t.Fatalf("LinkExport returned error: %v", err)
	}
	if err := store.UnlinkExport(ctx, export.ID); err != nil {
		t.Fatalf("UnlinkExport returned error: %v", err)
	}

	unlinked, err := store.ListUnlinkedExports(ctx, 0)
	if err != nil {
		t.Fatalf("ListUnlinkedExports returned error: %v", err)
	}
	if len(unlinked) != 1 {
		t.Fatalf("expected one unlinked export, got %d", len(unlinked))
	}
}

func TestRemoveLocationDetachesRecords(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	loc, err := store.AddLocation(ctx, t.TempDir(), index.LocationLocal)
	if err != nil {
		t.Fatalf("AddLocation returned error: %v", err)
	}

	p := sampleProject("/music/track.als", "hash-a")
	p.LocationID = &loc.ID
	project, _, err := store.UpsertProject(ctx, p)
	if err != nil {
		t.Fatalf("upsert project returned error: %v", err)
	}
	if _, err := store.UpsertExport(ctx, &index.Export{Path: "/music/renders/track.wav", LocationID: &loc.ID, Format: "wav"}); err != nil {
		t.Fatalf("UpsertExport returned error: %v", err)
	}

	if err := store.RemoveLocation(ctx, loc.ID); err != nil {
		t.Fatalf("RemoveLocation returned error: %v", err)
	}

	got, err := store.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject returned error: %v", err)
	}
	if got.LocationID != nil {
		t.Fatalf("expected project detached from removed location, got %v", *got.LocationID)
	}

	if _, err := store.GetLocation(ctx, loc.ID); !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for removed location, got %v", err)
	}
}

func TestSummaryCounts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.AddLocation(ctx, t.TempDir(), index.LocationLocal); err != nil {
		t.Fatalf("AddLocation returned error: %v", err)
	}
	if _, _, err := store.UpsertProject(ctx, sampleProject("/music/a.als", "hash-a")); err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	partial := sampleProject("/music/b.als", "hash-b")
	partial.ParseStatus = index.ParsePartial
	if _, _, err := store.UpsertProject(ctx, partial); err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	if _, err := store.UpsertExport(ctx, &index.Export{Path: "/music/renders/a.wav", Format: "wav"}); err != nil {
		t.Fatalf("UpsertExport returned error: %v", err)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if summary.Projects != 2 || summary.CompleteCount != 1 || summary.PartialCount != 1 {
		t.Fatalf("unexpected project counts: %+v", summary)
	}
	if summary.Exports != 1 || summary.LinkedExports != 0 {
		t.Fatalf("unexpected export counts: %+v", summary)
	}
	if summary.Locations != 1 || summary.ActiveLocations != 1 {
		t.Fatalf("unexpected location counts: %+v", summary)
	}
}
