// Package similarity ranks indexed projects by how alike they are. The
// aggregate score is a weighted blend of plugin overlap, device overlap,
// tempo closeness, track-structure shape and a token feature vector.
// Dimensions that neither project carries are excluded and the remaining
// weights renormalized, so a pair of sets without tempo information is
// compared on what they do share instead of being penalized.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"setlist/internal/config"
	"setlist/internal/index"
	"setlist/internal/logging"
	"setlist/internal/textutil"
)

// Metric names one similarity dimension.
type Metric string

const (
	MetricPlugins   Metric = "plugins"
	MetricDevices   Metric = "devices"
	MetricTempo     Metric = "tempo"
	MetricStructure Metric = "structure"
	MetricFeatures  Metric = "features"
)

// Result is one scored comparison. Parts carries the per-dimension scores
// that contributed to the aggregate, keyed by metric, for explainable
// output.
type Result struct {
	ProjectID int64
	Path      string
	Score     float64
	Parts     map[Metric]float64
}

// Engine computes and ranks similarity over one index.
type Engine struct {
	cfg    *config.Config
	store  *index.Store
	logger *slog.Logger

	// features caches per-project fingerprints keyed by id and content hash,
	// so an edited project naturally misses and recomputes.
	features *gocache.Cache
}

// New returns an engine over store.
func New(cfg *config.Config, store *index.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	ttl := time.Duration(cfg.Similarity.FeatureCacheTTLMinutes) * time.Minute
	return &Engine{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "similarity"),
		features: gocache.New(ttl, 2*ttl),
	}
}

// Rank compares the reference project against every other indexed project
// and returns results sorted by descending score. Missing projects are
// skipped; results below the configured minimum score are dropped. limit <=
// 0 returns everything.
func (e *Engine) Rank(ctx context.Context, projectID int64, limit int) ([]Result, error) {
	reference, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*index.Project, len(projects))
	var results []Result
	for _, candidate := range projects {
		if candidate.ID == reference.ID || candidate.ParseStatus == index.ParseMissing {
			continue
		}
		result := e.Compare(reference, candidate)
		if result.Score < e.cfg.Similarity.MinScore {
			continue
		}
		byID[candidate.ID] = candidate
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		a, b := byID[results[i].ProjectID], byID[results[j].ProjectID]
		if !a.FileModTime.Equal(b.FileModTime) {
			return a.FileModTime.After(b.FileModTime)
		}
		return a.Path < b.Path
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Compare scores candidate against reference. The score is symmetric in its
// arguments.
func (e *Engine) Compare(reference, candidate *index.Project) Result {
	weights := e.cfg.Similarity
	parts := make(map[Metric]float64)
	var weightedSum, weightTotal float64

	record := func(metric Metric, weight, score float64) {
		parts[metric] = score
		weightedSum += weight * score
		weightTotal += weight
	}

	if len(reference.PluginNames) > 0 || len(candidate.PluginNames) > 0 {
		record(MetricPlugins, weights.PluginWeight,
			textutil.JaccardSimilarity(reference.PluginNames, candidate.PluginNames))
	}
	if len(reference.DeviceNames) > 0 || len(candidate.DeviceNames) > 0 {
		record(MetricDevices, weights.DeviceWeight,
			textutil.JaccardSimilarity(reference.DeviceNames, candidate.DeviceNames))
	}
	if reference.Tempo != nil && candidate.Tempo != nil {
		record(MetricTempo, weights.TempoWeight,
			tempoCloseness(*reference.Tempo, *candidate.Tempo, weights.TempoToleranceBPM))
	}
	if structure, ok := structureSimilarity(reference, candidate); ok {
		record(MetricStructure, weights.StructureWeight, structure)
	}
	refFP := e.fingerprint(reference)
	candFP := e.fingerprint(candidate)
	if refFP.TokenCount() > 0 && candFP.TokenCount() > 0 {
		record(MetricFeatures, weights.FeatureWeight, textutil.CosineSimilarity(refFP, candFP))
	}

	result := Result{ProjectID: candidate.ID, Path: candidate.Path, Parts: parts}
	if weightTotal > 0 {
		result.Score = weightedSum / weightTotal
	}
	return result
}

// tempoCloseness maps the BPM delta linearly onto [0,1], reaching zero at
// the configured tolerance.
func tempoCloseness(a, b, tolerance float64) float64 {
	if tolerance <= 0 {
		if a == b {
			return 1
		}
		return 0
	}
	delta := math.Abs(a - b)
	if delta >= tolerance {
		return 0
	}
	return 1 - delta/tolerance
}

// structureSimilarity is the cosine over the per-type track count vectors.
// Two projects with no tracks at all have no structural signal.
func structureSimilarity(a, b *index.Project) (float64, bool) {
	av, bv := a.TrackVector(), b.TrackVector()
	var dot, an, bn float64
	for i := range av {
		dot += av[i] * bv[i]
		an += av[i] * av[i]
		bn += bv[i] * bv[i]
	}
	if an == 0 && bn == 0 {
		return 0, false
	}
	if an == 0 || bn == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(an) * math.Sqrt(bn)), true
}

// fingerprint returns the cached token feature vector for a project,
// building it from plugin, device and sample-name tokens on a cache miss.
func (e *Engine) fingerprint(p *index.Project) *textutil.Fingerprint {
	key := fmt.Sprintf("%d:%s", p.ID, p.ContentHash)
	if cached, ok := e.features.Get(key); ok {
		return cached.(*textutil.Fingerprint)
	}

	var tokens []string
	tokens = append(tokens, tokenize(p.PluginNames)...)
	tokens = append(tokens, tokenize(p.DeviceNames)...)
	for _, sample := range p.SampleRefs {
		base := filepath.Base(sample)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		tokens = append(tokens, textutil.Tokenize(base)...)
	}
	fp := textutil.NewFingerprintFromTokens(tokens)
	e.features.Set(key, fp, gocache.DefaultExpiration)
	return fp
}

func tokenize(names []string) []string {
	var tokens []string
	for _, name := range names {
		tokens = append(tokens, textutil.Tokenize(name)...)
	}
	return tokens
}
