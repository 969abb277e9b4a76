package index

import (
	"strings"
	"time"
)

// LocationType categorizes the storage backing a registered root folder.
type LocationType string

const (
	LocationLocal     LocationType = "local"
	LocationNetwork   LocationType = "network"
	LocationCloud     LocationType = "cloud"
	LocationRemovable LocationType = "removable"
)

var locationTypes = map[LocationType]struct{}{
	LocationLocal:     {},
	LocationNetwork:   {},
	LocationCloud:     {},
	LocationRemovable: {},
}

// ParseLocationType converts a string into a known LocationType.
func ParseLocationType(value string) (LocationType, bool) {
	normalized := LocationType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := locationTypes[normalized]
	return normalized, ok
}

// ParseStatus represents the outcome of the most recent parse of a project file.
type ParseStatus string

const (
	ParseComplete ParseStatus = "complete"
	ParsePartial  ParseStatus = "partial"
	ParseFailed   ParseStatus = "failed"
	// ParseMissing marks projects whose backing file has disappeared. Records
	// are never hard-deleted automatically.
	ParseMissing ParseStatus = "missing"
)

// LinkOrigin records how an export became linked to a project.
type LinkOrigin string

const (
	// OriginAutomatic links come from correlation runs and may be replaced by
	// later runs with higher confidence.
	OriginAutomatic LinkOrigin = "automatic"
	// OriginManual links come from explicit user confirmation and are
	// immutable under automatic re-matching.
	OriginManual LinkOrigin = "manual"
)

// Location is a registered root folder scanned for project and export files.
type Location struct {
	ID         int64
	RootPath   string
	Type       LocationType
	Active     bool
	Degraded   bool
	LastScanAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Marker is a named position on a project's arrangement timeline.
type Marker struct {
	Time float64 `json:"time"`
	Name string  `json:"name"`
}

// Project is the indexed record derived from one Live set file.
//
// Path is unique while the backing file exists; ContentHash is unique per
// distinct file content. Two paths with identical hash resolve to one record.
type Project struct {
	ID          int64
	LocationID  *int64
	Path        string
	ContentHash string
	ParseStatus ParseStatus
	FailReason  string
	Warnings    []string

	Tempo             *float64
	KeySignature      *string
	TimeSignature     *string
	AudioTracks       int
	MidiTracks        int
	ReturnTracks      int
	GroupTracks       int
	SceneCount        int
	PluginNames       []string
	DeviceNames       []string
	SampleRefs        []string
	Markers           []Marker
	ArrangementLength *float64
	SessionLength     *float64
	HasAutomation     bool
	Creator           string
	MajorVersion      string
	MinorVersion      string

	FileModTime time.Time
	FileSize    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Name returns the display name derived from the project path.
func (p *Project) Name() string {
	if p == nil {
		return ""
	}
	base := p.Path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

// TrackVector returns the per-type track counts in a fixed order for
// structural similarity comparison.
func (p *Project) TrackVector() []float64 {
	if p == nil {
		return nil
	}
	return []float64{
		float64(p.AudioTracks),
		float64(p.MidiTracks),
		float64(p.ReturnTracks),
		float64(p.GroupTracks),
	}
}

// Export is an indexed audio render file, optionally linked to a project.
type Export struct {
	ID         int64
	LocationID *int64
	Path       string
	ProjectID  *int64
	Confidence float64
	Origin     LinkOrigin

	Format          string
	SampleRate      int
	BitDepth        int
	Channels        int
	DurationSeconds float64

	FileModTime time.Time
	FileSize    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Linked reports whether the export has an owning project.
func (e *Export) Linked() bool {
	return e != nil && e.ProjectID != nil
}

// Summary describes aggregated index counts for status reporting.
type Summary struct {
	Locations       int
	ActiveLocations int
	Projects        int
	CompleteCount   int
	PartialCount    int
	FailedCount     int
	MissingCount    int
	Exports         int
	LinkedExports   int
}
