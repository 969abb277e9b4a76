// Package scanner enumerates candidate files under a location root. It walks
// lazily, classifies entries as project or audio candidates, and surfaces
// per-entry failures as warnings so a single unreadable directory never
// aborts a scan. Only a failure to read the root itself is fatal.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"setlist/internal/config"
	"setlist/internal/fileutil"
	"setlist/internal/services"
)

// Kind classifies a discovered file.
type Kind string

const (
	KindProject Kind = "project"
	KindAudio   Kind = "audio"
)

// Entry is one discovered candidate file.
type Entry struct {
	Path string
	Kind Kind
	Info fs.FileInfo
}

// Options controls enumeration behavior.
type Options struct {
	// ExcludedDirNames are directory basenames skipped wholesale,
	// case-insensitively. Ableton backup sets live under "Backup" and are
	// excluded through this list.
	ExcludedDirNames []string
	// AudioExtensions are the lowercase extensions classified as audio
	// export candidates.
	AudioExtensions []string
	// FollowSymlinks descends into symlinked directories. Cycles are broken
	// with a resolved-path visited set.
	FollowSymlinks bool
}

// OptionsFromConfig builds walk options from the runtime configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ExcludedDirNames: cfg.Scanner.ExcludedDirNames,
		AudioExtensions:  cfg.Correlator.AudioExtensions,
		FollowSymlinks:   cfg.Scanner.FollowSymlinks,
	}
}

// Stats summarizes one completed walk.
type Stats struct {
	Projects    int
	AudioFiles  int
	SkippedDirs int
	Warnings    []string
}

// WalkFunc receives each classified entry. Returning an error stops the walk
// and propagates the error to the caller.
type WalkFunc func(Entry) error

type walker struct {
	opts     Options
	excluded map[string]struct{}
	audio    map[string]struct{}
	visited  map[string]struct{}
	stats    Stats
	fn       WalkFunc
}

// Walk enumerates root depth-first and invokes fn for every project or audio
// candidate. Enumeration stops early when ctx is cancelled or fn returns an
// error. The returned stats carry per-entry warnings for paths that could
// not be read.
func Walk(ctx context.Context, root string, opts Options, fn WalkFunc) (*Stats, error) {
	normalized, err := fileutil.NormalizePath(root)
	if err != nil {
		return nil, services.Wrap(services.ErrAccess, "scanner", "walk", "invalid root", err)
	}
	if !fileutil.IsDir(normalized) {
		return nil, services.Wrap(services.ErrAccess, "scanner", "walk",
			fmt.Sprintf("root %s is not an accessible directory", normalized), nil)
	}

	w := &walker{
		opts:     opts,
		excluded: lowerSet(opts.ExcludedDirNames),
		audio:    lowerSet(opts.AudioExtensions),
		visited:  make(map[string]struct{}),
		fn:       fn,
	}
	if resolved, rerr := filepath.EvalSymlinks(normalized); rerr == nil {
		w.markVisited(resolved)
	} else {
		w.markVisited(normalized)
	}
	if err := w.walkDir(ctx, normalized); err != nil {
		return nil, err
	}
	return &w.stats, nil
}

func (w *walker) walkDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warn("read dir %s: %v", dir, err)
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if w.skipDir(name) {
				w.stats.SkippedDirs++
				continue
			}
			if w.opts.FollowSymlinks {
				if resolved, rerr := filepath.EvalSymlinks(path); rerr == nil {
					if w.alreadyVisited(resolved) {
						w.stats.SkippedDirs++
						continue
					}
					w.markVisited(resolved)
				}
			}
			if err := w.walkDir(ctx, path); err != nil {
				return err
			}
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			resolved, rerr := filepath.EvalSymlinks(path)
			if rerr != nil {
				w.warn("resolve symlink %s: %v", path, rerr)
				continue
			}
			if fileutil.IsDir(resolved) {
				if w.skipDir(filepath.Base(resolved)) || w.alreadyVisited(resolved) {
					w.stats.SkippedDirs++
					continue
				}
				w.markVisited(resolved)
				if err := w.walkDir(ctx, path); err != nil {
					return err
				}
				continue
			}
		}

		if fileutil.IsHidden(name) {
			continue
		}
		kind, ok := w.classify(name)
		if !ok {
			continue
		}
		info, ierr := entry.Info()
		if ierr != nil {
			// entry.Info on a symlink describes the link; stat the target.
			info, ierr = os.Stat(path)
		}
		if ierr != nil {
			w.warn("stat %s: %v", path, ierr)
			continue
		}
		if err := w.fn(Entry{Path: path, Kind: kind, Info: info}); err != nil {
			return err
		}
		switch kind {
		case KindProject:
			w.stats.Projects++
		case KindAudio:
			w.stats.AudioFiles++
		}
	}
	return nil
}

func (w *walker) classify(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".als":
		return KindProject, true
	default:
		if _, ok := w.audio[ext]; ok {
			return KindAudio, true
		}
	}
	return "", false
}

func (w *walker) skipDir(name string) bool {
	if fileutil.IsHidden(name) {
		return true
	}
	_, ok := w.excluded[strings.ToLower(name)]
	return ok
}

func (w *walker) alreadyVisited(resolved string) bool {
	_, ok := w.visited[resolved]
	return ok
}

func (w *walker) markVisited(resolved string) {
	w.visited[resolved] = struct{}{}
}

func (w *walker) warn(format string, args ...any) {
	w.stats.Warnings = append(w.stats.Warnings, fmt.Sprintf(format, args...))
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}
