package similarity_test

import (
	"context"
	"math"
	"testing"
	"time"

	"setlist/internal/index"
	"setlist/internal/similarity"
	"setlist/internal/testsupport"
)

func newEngine(t *testing.T) (*similarity.Engine, *index.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return similarity.New(cfg, store, nil), store
}

func fullProject(path string, tempo float64) *index.Project {
	return &index.Project{
		Path:         path,
		ContentHash:  "hash-" + path,
		ParseStatus:  index.ParseComplete,
		Tempo:        &tempo,
		AudioTracks:  4,
		MidiTracks:   2,
		ReturnTracks: 2,
		PluginNames:  []string{"Serum", "Valhalla Room"},
		DeviceNames:  []string{"Eq8", "Compressor2", "Operator"},
		SampleRefs:   []string{"Samples/kick_909.wav", "Samples/clap.wav"},
		FileModTime:  time.Now().UTC(),
	}
}

func TestCompareSelfSimilarityIsOne(t *testing.T) {
	e, _ := newEngine(t)

	p := fullProject("/music/a.als", 128)
	p.ID = 1
	result := e.Compare(p, p)
	if math.Abs(result.Score-1.0) > 1e-9 {
		t.Fatalf("self similarity should be 1.0, got %g (%v)", result.Score, result.Parts)
	}
	for metric, score := range result.Parts {
		if math.Abs(score-1.0) > 1e-9 {
			t.Fatalf("metric %s should be 1.0 against itself, got %g", metric, score)
		}
	}
}

func TestCompareIsSymmetric(t *testing.T) {
	e, _ := newEngine(t)

	a := fullProject("/music/a.als", 128)
	a.ID = 1
	b := fullProject("/music/b.als", 140)
	b.ID = 2
	b.PluginNames = []string{"Serum", "Diva"}
	b.DeviceNames = []string{"Eq8", "Reverb"}
	b.AudioTracks = 2

	ab := e.Compare(a, b)
	ba := e.Compare(b, a)
	if math.Abs(ab.Score-ba.Score) > 1e-9 {
		t.Fatalf("scores not symmetric: %g vs %g", ab.Score, ba.Score)
	}
	for metric, score := range ab.Parts {
		if other, ok := ba.Parts[metric]; !ok || math.Abs(score-other) > 1e-9 {
			t.Fatalf("metric %s not symmetric: %g vs %g", metric, score, ba.Parts[metric])
		}
	}
}

func TestCompareRenormalizesMissingDimensions(t *testing.T) {
	e, _ := newEngine(t)

	// No tempo on either side: identical plugin/device/structure/feature sets
	// must still reach a full score because the tempo weight is excluded.
	a := fullProject("/music/a.als", 0)
	a.ID = 1
	a.Tempo = nil
	b := fullProject("/music/b.als", 0)
	b.ID = 2
	b.Tempo = nil
	b.ContentHash = a.ContentHash

	result := e.Compare(a, b)
	if _, ok := result.Parts[similarity.MetricTempo]; ok {
		t.Fatal("tempo dimension should be excluded when both sides lack it")
	}
	if math.Abs(result.Score-1.0) > 1e-9 {
		t.Fatalf("expected renormalized full score, got %g (%v)", result.Score, result.Parts)
	}
}

func TestCompareTempoCloseness(t *testing.T) {
	e, _ := newEngine(t)

	a := fullProject("/music/a.als", 120)
	a.ID = 1
	b := fullProject("/music/b.als", 135)
	b.ID = 2

	result := e.Compare(a, b)
	// Default tolerance is 30 BPM, so a 15 BPM delta scores 0.5.
	if got := result.Parts[similarity.MetricTempo]; math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("unexpected tempo closeness: %g", got)
	}

	far := fullProject("/music/c.als", 200)
	far.ID = 3
	result = e.Compare(a, far)
	if got := result.Parts[similarity.MetricTempo]; got != 0 {
		t.Fatalf("tempo beyond tolerance should score 0, got %g", got)
	}
}

func TestRankOrdersAndExplains(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	ref, _, err := store.UpsertProject(ctx, fullProject("/music/ref.als", 128))
	if err != nil {
		t.Fatalf("upsert reference: %v", err)
	}

	twin := fullProject("/music/twin.als", 128)
	if _, _, err := store.UpsertProject(ctx, twin); err != nil {
		t.Fatalf("upsert twin: %v", err)
	}

	distant := fullProject("/music/distant.als", 80)
	distant.PluginNames = []string{"Massive"}
	distant.DeviceNames = []string{"Wavetable"}
	distant.SampleRefs = []string{"Samples/vinyl_crackle.wav"}
	distant.AudioTracks = 1
	distant.MidiTracks = 12
	distant.ReturnTracks = 0
	if _, _, err := store.UpsertProject(ctx, distant); err != nil {
		t.Fatalf("upsert distant: %v", err)
	}

	gone := fullProject("/music/gone.als", 128)
	goneStored, _, err := store.UpsertProject(ctx, gone)
	if err != nil {
		t.Fatalf("upsert gone: %v", err)
	}
	if err := store.MarkProjectMissing(ctx, goneStored.ID); err != nil {
		t.Fatalf("mark missing: %v", err)
	}

	results, err := e.Rank(ctx, ref.ID, 0)
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two candidates (missing excluded), got %d", len(results))
	}
	if results[0].Path != "/music/twin.als" {
		t.Fatalf("expected twin ranked first, got %s", results[0].Path)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("ranking not descending: %g then %g", results[0].Score, results[1].Score)
	}
	if len(results[0].Parts) == 0 {
		t.Fatal("expected per-metric parts in results")
	}

	limited, err := e.Rank(ctx, ref.ID, 1)
	if err != nil {
		t.Fatalf("Rank returned error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit not applied: %d results", len(limited))
	}
}
