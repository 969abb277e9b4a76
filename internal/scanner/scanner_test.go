package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"setlist/internal/config"
	"setlist/internal/scanner"
	"setlist/internal/services"
	"setlist/internal/testsupport"
)

func defaultOptions() scanner.Options {
	cfg := config.Default()
	return scanner.Options{
		ExcludedDirNames: cfg.Scanner.ExcludedDirNames,
		AudioExtensions:  cfg.Correlator.AudioExtensions,
	}
}

func collect(t *testing.T, root string, opts scanner.Options) (map[string]scanner.Kind, *scanner.Stats) {
	t.Helper()
	found := make(map[string]scanner.Kind)
	stats, err := scanner.Walk(context.Background(), root, opts, func(e scanner.Entry) error {
		rel, err := filepath.Rel(root, e.Path)
		if err != nil {
			t.Fatalf("relativize %s: %v", e.Path, err)
		}
		found[rel] = e.Kind
		return nil
	})
	if err != nil {
		t.Fatalf("Walk returned error: %v", err)
	}
	return found, stats
}

func TestWalkClassifiesAndExcludes(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteLiveSet(t, filepath.Join(root, "track Project", "track.als"), testsupport.BasicLiveSet())
	testsupport.WriteLiveSet(t, filepath.Join(root, "track Project", "Backup", "track [2024-01-01].als"), testsupport.BasicLiveSet())
	testsupport.WriteWAV(t, filepath.Join(root, "Renders", "track.wav"), 44100, 16, 2, 0.1)
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), []byte("setlist"))
	testsupport.WriteFile(t, filepath.Join(root, ".hidden.als"), []byte("x"))
	testsupport.WriteFile(t, filepath.Join(root, ".git", "config"), []byte("x"))

	found, stats := collect(t, root, defaultOptions())

	if kind := found[filepath.Join("track Project", "track.als")]; kind != scanner.KindProject {
		t.Fatalf("expected project classification, got %q", kind)
	}
	if kind := found[filepath.Join("Renders", "track.wav")]; kind != scanner.KindAudio {
		t.Fatalf("expected audio classification, got %q", kind)
	}
	for rel := range found {
		if filepath.Base(filepath.Dir(rel)) == "Backup" {
			t.Fatalf("backup set should have been excluded: %s", rel)
		}
		if rel == "notes.txt" || rel == ".hidden.als" {
			t.Fatalf("unexpected entry %s", rel)
		}
	}
	if stats.Projects != 1 || stats.AudioFiles != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SkippedDirs == 0 {
		t.Fatalf("expected skipped dirs for Backup and .git, got %+v", stats)
	}
}

func TestWalkUnreadableSubdirBecomesWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	root := t.TempDir()
	testsupport.WriteLiveSet(t, filepath.Join(root, "ok", "a.als"), testsupport.BasicLiveSet())
	locked := filepath.Join(root, "locked")
	if err := os.MkdirAll(locked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	found, stats := collect(t, root, defaultOptions())

	if len(found) != 1 {
		t.Fatalf("expected the readable project only, got %v", found)
	}
	if len(stats.Warnings) != 1 {
		t.Fatalf("expected one warning for unreadable dir, got %v", stats.Warnings)
	}
}

func TestWalkMissingRootFails(t *testing.T) {
	_, err := scanner.Walk(context.Background(), "/nonexistent/setlist-root", defaultOptions(), func(scanner.Entry) error {
		return nil
	})
	if !errors.Is(err, services.ErrAccess) {
		t.Fatalf("expected access error for missing root, got %v", err)
	}
}

func TestWalkHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		testsupport.WriteLiveSet(t, filepath.Join(root, name, name+".als"), testsupport.BasicLiveSet())
	}

	ctx, cancel := context.WithCancel(context.Background())
	var seen int
	_, err := scanner.Walk(ctx, root, defaultOptions(), func(scanner.Entry) error {
		seen++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected walk to stop after cancellation, saw %d entries", seen)
	}
}

func TestWalkSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteLiveSet(t, filepath.Join(root, "proj", "p.als"), testsupport.BasicLiveSet())
	if err := os.Symlink(root, filepath.Join(root, "proj", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	opts := defaultOptions()
	opts.FollowSymlinks = true
	found, _ := collect(t, root, opts)

	if len(found) != 1 {
		t.Fatalf("expected cycle to be broken, got %v", found)
	}
}
