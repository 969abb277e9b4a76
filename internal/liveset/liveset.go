// Package liveset reads Ableton Live set files (.als) and extracts the
// metadata the index stores. Set files are gzip-compressed XML whose schema
// shifts between Live generations, so extraction walks the token stream and
// matches elements by name and ancestry instead of binding to a fixed
// document shape.
package liveset

import (
	"fmt"

	"setlist/internal/services"
)

// FailReason classifies why a set file could not be parsed at all.
type FailReason string

const (
	// ReasonNotGzip means the file is neither gzip data nor plain XML.
	ReasonNotGzip FailReason = "not_gzip"
	// ReasonNotXML means the payload decompressed but is not well-formed XML.
	ReasonNotXML FailReason = "not_xml"
	// ReasonNotLiveSet means the XML root is not an Ableton document.
	ReasonNotLiveSet FailReason = "not_liveset"
)

// ParseError reports an unparseable set file together with its reason code.
type ParseError struct {
	Reason FailReason
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse live set (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse live set (%s)", e.Reason)
}

func (e *ParseError) Unwrap() []error {
	errs := []error{services.ErrParse}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func failParse(reason FailReason, err error) error {
	return &ParseError{Reason: reason, Err: err}
}

// Marker is a named locator on the arrangement timeline.
type Marker struct {
	Time float64
	Name string
}

// Metadata holds every field extracted from one set file. Optional fields
// stay nil when the document does not carry them; each unresolved field adds
// one entry to Warnings.
type Metadata struct {
	Creator      string
	MajorVersion string
	MinorVersion string

	Tempo         *float64
	KeySignature  *string
	TimeSignature *string

	AudioTracks  int
	MidiTracks   int
	ReturnTracks int
	GroupTracks  int
	SceneCount   int

	PluginNames []string
	DeviceNames []string
	SampleRefs  []string
	Markers     []Marker

	ArrangementLength *float64
	SessionLength     *float64
	HasAutomation     bool

	Warnings []string
}

// Complete reports whether every optional field resolved.
func (m *Metadata) Complete() bool {
	return len(m.Warnings) == 0
}

// LiveVersion returns the Live generation the set was saved with, derived
// from the schema minor version ("11.0_11202" reads as "11") with the
// creator string as fallback.
func (m *Metadata) LiveVersion() string {
	for i := 0; i < len(m.MinorVersion); i++ {
		if m.MinorVersion[i] < '0' || m.MinorVersion[i] > '9' {
			if i > 0 {
				return m.MinorVersion[:i]
			}
			break
		}
	}
	if m.MinorVersion != "" && m.MinorVersion[0] >= '0' && m.MinorVersion[0] <= '9' {
		return m.MinorVersion
	}
	return m.Creator
}

var noteNames = [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func keySignature(rootNote int, scale string) string {
	if rootNote < 0 || rootNote >= len(noteNames) {
		rootNote = ((rootNote % 12) + 12) % 12
	}
	return noteNames[rootNote] + " " + scale
}
