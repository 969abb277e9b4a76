package correlate

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"setlist/internal/index"
	"setlist/internal/textutil"
)

// Tier identifies which matching stage produced a candidate.
type Tier string

const (
	// TierExact is normalized-name equality after render tags are stripped.
	TierExact Tier = "exact"
	// TierToken is token-set overlap scaled into the configured band.
	TierToken Tier = "token"
	// TierFuzzy is JaroWinkler similarity above the configured cutoff.
	TierFuzzy Tier = "fuzzy"
)

// tokenOverlapFloor is the minimum Dice coefficient for a token-tier match.
// Below it the names share too few tokens to justify the token band and the
// match falls through to the fuzzy tier.
const tokenOverlapFloor = 0.5

const (
	sameDirBonus   = 0.05
	exportDirBonus = 0.03
	recencyBonus   = 0.02
)

// Candidate is one scored export-to-project pairing.
type Candidate struct {
	Export     *index.Export
	Project    *index.Project
	Confidence float64
	Tier       Tier
}

// Rank scores export against every project and returns all candidates in
// preference order: higher confidence first, ties resolved to the most
// recently modified project, then to the lexicographically smaller path.
func (c *Correlator) Rank(export *index.Export, projects []*index.Project) []Candidate {
	exportName := textutil.StripRenderTags(textutil.NormalizeName(filepath.Base(export.Path)))
	if exportName == "" {
		return nil
	}
	exportTokens := textutil.NameTokens(exportName)
	generic := textutil.RenderTagOnly(exportName)

	var candidates []Candidate
	for _, project := range projects {
		if project.ParseStatus == index.ParseMissing {
			continue
		}
		confidence, tier, ok := c.score(exportName, exportTokens, project)
		if !ok && generic {
			confidence, tier, ok = c.scoreGeneric(export, project)
		}
		if !ok {
			continue
		}
		confidence = clamp01(confidence + c.bonuses(export, project))
		candidates = append(candidates, Candidate{Export: export, Project: project, Confidence: confidence, Tier: tier})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return betterCandidate(&candidates[i], &candidates[j])
	})
	return candidates
}

// Match returns the best-ranked candidate for export, or false when no
// project scores above the configured cutoff.
func (c *Correlator) Match(export *index.Export, projects []*index.Project) (*Candidate, bool) {
	candidates := c.Rank(export, projects)
	if len(candidates) == 0 {
		return nil, false
	}
	return &candidates[0], true
}

// scoreGeneric is the fallback for export names made entirely of render tags
// ("mix", "master v2") that name scoring could not place. The name carries
// no project identity, so the match rests on where the file sits: a render
// inside a project's own directory or a recognized export subdirectory of it
// belongs to that project. Confidence starts at the bottom of the token band
// and rises with agreement between the project's folder name and the project
// name.
func (c *Correlator) scoreGeneric(export *index.Export, project *index.Project) (float64, Tier, bool) {
	exportDir := filepath.Dir(export.Path)
	projectDir := filepath.Dir(project.Path)
	if exportDir != projectDir && !c.isExportSubdir(exportDir, projectDir) {
		return 0, "", false
	}
	folderTokens := textutil.NameTokens(textutil.NormalizeName(filepath.Base(projectDir)))
	projectTokens := textutil.NameTokens(textutil.NormalizeName(project.Name()))
	dice := textutil.TokenOverlap(folderTokens, projectTokens)
	low, high := c.cfg.Correlator.TokenBandLow, c.cfg.Correlator.TokenBandHigh
	return low + dice*(high-low), TierToken, true
}

func (c *Correlator) score(exportName string, exportTokens []string, project *index.Project) (float64, Tier, bool) {
	projectName := textutil.NormalizeName(project.Name())
	if projectName == "" {
		return 0, "", false
	}
	if exportName == projectName || exportName == textutil.StripRenderTags(projectName) {
		return 1.0, TierExact, true
	}

	low, high := c.cfg.Correlator.TokenBandLow, c.cfg.Correlator.TokenBandHigh
	if dice := textutil.TokenOverlap(exportTokens, textutil.NameTokens(projectName)); dice >= tokenOverlapFloor {
		return low + dice*(high-low), TierToken, true
	}

	cutoff := c.cfg.Correlator.FuzzyCutoff
	sim := strutil.Similarity(exportName, projectName, metrics.NewJaroWinkler())
	if sim < cutoff {
		return 0, "", false
	}
	// Fuzzy confidence is rescaled to sit below the token band so the tiers
	// stay ordered.
	scaled := cutoff + (sim-cutoff)/(1-cutoff)*(low-cutoff)
	return scaled, TierFuzzy, true
}

func (c *Correlator) bonuses(export *index.Export, project *index.Project) float64 {
	var bonus float64
	exportDir := filepath.Dir(export.Path)
	projectDir := filepath.Dir(project.Path)

	switch {
	case exportDir == projectDir:
		bonus += sameDirBonus
	case c.isExportSubdir(exportDir, projectDir):
		bonus += exportDirBonus
	}

	window := time.Duration(c.cfg.Correlator.RecencyWindowHours) * time.Hour
	delta := export.FileModTime.Sub(project.FileModTime)
	if delta < 0 {
		delta = -delta
	}
	if window > 0 && delta < window {
		bonus += recencyBonus
	}
	return bonus
}

// isExportSubdir reports whether exportDir is a recognized export directory
// inside the project's directory tree.
func (c *Correlator) isExportSubdir(exportDir, projectDir string) bool {
	base := strings.ToLower(filepath.Base(exportDir))
	recognized := false
	for _, name := range c.cfg.Correlator.ExportDirNames {
		if strings.ToLower(name) == base {
			recognized = true
			break
		}
	}
	if !recognized {
		return false
	}
	rel, err := filepath.Rel(projectDir, exportDir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func betterCandidate(a, b *Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.Project.FileModTime.Equal(b.Project.FileModTime) {
		return a.Project.FileModTime.After(b.Project.FileModTime)
	}
	return a.Project.Path < b.Project.Path
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
