package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"setlist/internal/index"
	"setlist/internal/scanner"
	"setlist/internal/testsupport"
	"setlist/internal/watcher"
)

func startWatcher(t *testing.T) (string, chan watcher.Event) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDebounce(150))
	cfg.Watcher.VolumeMonitor = false
	store := testsupport.MustOpenStore(t, cfg)

	root := t.TempDir()
	if _, err := store.AddLocation(context.Background(), root, index.LocationLocal); err != nil {
		t.Fatalf("AddLocation returned error: %v", err)
	}

	events := make(chan watcher.Event, 16)
	w := watcher.New(cfg, store, watcher.HandlerFunc(func(ctx context.Context, ev watcher.Event) {
		events <- ev
	}), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(w.Stop)

	// Give the kernel watch a moment to establish before mutating the tree.
	time.Sleep(200 * time.Millisecond)
	return root, events
}

func waitEvent(t *testing.T, events chan watcher.Event) watcher.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return watcher.Event{}
	}
}

func expectQuiet(t *testing.T, events chan watcher.Event, d time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(d):
	}
}

func TestWriteBurstCoalescesToOneEvent(t *testing.T) {
	root, events := startWatcher(t)

	path := filepath.Join(root, "track.als")
	for i := 0; i < 5; i++ {
		testsupport.WriteLiveSet(t, path, testsupport.BasicLiveSet())
		time.Sleep(20 * time.Millisecond)
	}

	ev := waitEvent(t, events)
	if ev.Path != path || ev.Kind != scanner.KindProject {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Change == watcher.ChangeDeleted {
		t.Fatalf("existing file reported deleted: %+v", ev)
	}
	expectQuiet(t, events, 500*time.Millisecond)
}

func TestDeleteSettlesAsDeleted(t *testing.T) {
	root, events := startWatcher(t)

	path := filepath.Join(root, "track.als")
	testsupport.WriteLiveSet(t, path, testsupport.BasicLiveSet())
	waitEvent(t, events)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Change != watcher.ChangeDeleted || ev.Path != path {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAudioFilesClassified(t *testing.T) {
	root, events := startWatcher(t)

	path := filepath.Join(root, "render.wav")
	testsupport.WriteWAV(t, path, 44100, 16, 2, 0.05)

	ev := waitEvent(t, events)
	if ev.Kind != scanner.KindAudio {
		t.Fatalf("expected audio classification, got %+v", ev)
	}
}

func TestIrrelevantFilesIgnored(t *testing.T) {
	root, events := startWatcher(t)

	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), []byte("setlist"))
	expectQuiet(t, events, 500*time.Millisecond)
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	root, events := startWatcher(t)

	sub := filepath.Join(root, "new Project")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Let the directory watch attach before writing into it.
	time.Sleep(300 * time.Millisecond)

	path := filepath.Join(sub, "fresh.als")
	testsupport.WriteLiveSet(t, path, testsupport.BasicLiveSet())

	ev := waitEvent(t, events)
	if ev.Path != path || ev.Kind != scanner.KindProject {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
