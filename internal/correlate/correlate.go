// Package correlate links exported audio renders back to the project that
// produced them. Discovery records export rows with format metadata; matching
// assigns confidence-scored links in three tiers, from exact normalized-name
// equality down to fuzzy string similarity. Manual links are never touched.
package correlate

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"setlist/internal/config"
	"setlist/internal/index"
	"setlist/internal/logging"
)

// Correlator owns export discovery and matching for one index.
type Correlator struct {
	cfg    *config.Config
	store  *index.Store
	logger *slog.Logger
}

// New returns a correlator over store.
func New(cfg *config.Config, store *index.Store, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Correlator{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "correlate"),
	}
}

// DiscoverFile upserts an export row for one audio file. WAV files are
// probed for sample rate, bit depth, channel count and duration; other
// formats only record the extension-derived format. Existing links survive
// re-discovery.
func (c *Correlator) DiscoverFile(ctx context.Context, locationID *int64, path string, info fs.FileInfo) (*index.Export, error) {
	export := &index.Export{
		LocationID:  locationID,
		Path:        path,
		Format:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		FileModTime: info.ModTime().UTC(),
		FileSize:    info.Size(),
	}
	if export.Format == "wav" {
		if err := probeWAV(path, export); err != nil {
			c.logger.Warn("wav probe failed", "path", path, "error", err)
		}
	}
	return c.store.UpsertExport(ctx, export)
}

func probeWAV(path string, export *index.Export) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return errors.New("not a valid WAV file")
	}
	export.SampleRate = int(decoder.SampleRate)
	export.BitDepth = int(decoder.BitDepth)
	export.Channels = int(decoder.NumChans)
	if dur, derr := decoder.Duration(); derr == nil {
		export.DurationSeconds = dur.Seconds()
	}
	return nil
}

// Proposal carries the ranked candidates considered for one export, best
// first. The first entry is the one Run links.
type Proposal struct {
	Export     *index.Export
	Candidates []Candidate
}

// Report summarizes one correlation pass.
type Report struct {
	Examined  int
	Linked    int
	Skipped   int
	Links     []Candidate
	Proposals []Proposal
}

// Run matches every unlinked export under locationID (0 means all locations)
// against the projects of the same scope and stores automatic links for the
// best match at or above the configured cutoff. Lower-ranked candidates are
// reported per export so callers can review or manually re-link.
func (c *Correlator) Run(ctx context.Context, locationID int64) (*Report, error) {
	exports, err := c.store.ListUnlinkedExports(ctx, locationID)
	if err != nil {
		return nil, err
	}
	var projects []*index.Project
	if locationID > 0 {
		projects, err = c.store.ListProjectsByLocation(ctx, locationID)
	} else {
		projects, err = c.store.ListProjects(ctx)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, export := range exports {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		candidates := c.Rank(export, projects)
		if len(candidates) == 0 {
			report.Skipped++
			continue
		}
		report.Proposals = append(report.Proposals, Proposal{Export: export, Candidates: candidates})
		best := candidates[0]
		if err := c.store.LinkExport(ctx, export.ID, best.Project.ID, best.Confidence, index.OriginAutomatic); err != nil {
			c.logger.Warn("link export failed", logging.FieldPath, export.Path, logging.Error(err))
			report.Skipped++
			continue
		}
		c.logger.Info("export linked",
			logging.FieldExportID, export.ID,
			logging.FieldProjectID, best.Project.ID,
			"export", export.Path,
			"project", best.Project.Path,
			"confidence", best.Confidence,
			"tier", best.Tier)
		report.Linked++
		report.Links = append(report.Links, best)
	}
	return report, nil
}
