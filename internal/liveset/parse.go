package liveset

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"

	"setlist/internal/services"
)

// Parse extracts metadata from raw set file bytes. The payload is
// decompressed first; uncompressed XML is accepted as a fallback because some
// tools re-save sets without gzip. Unreadable files return a *ParseError
// carrying the reason code.
func Parse(data []byte) (*Metadata, error) {
	payload, err := decompress(data)
	if err != nil {
		return nil, err
	}

	ex := newExtractor()
	if err := ex.run(xml.NewDecoder(bytes.NewReader(payload))); err != nil {
		return nil, err
	}
	return ex.finish(), nil
}

// ParseFile reads and parses the set file at path.
func ParseFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAccess, "liveset", "parse", "read set file", err)
	}
	return Parse(data)
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err == nil {
		payload, rerr := io.ReadAll(zr)
		if rerr != nil {
			return nil, failParse(ReasonNotGzip, rerr)
		}
		return payload, nil
	}
	if looksLikeXML(data) {
		return data, nil
	}
	return nil, failParse(ReasonNotGzip, err)
}

func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// extractor accumulates fields while walking the token stream. All element
// matching is by local name plus ancestry so that documents from Live 8
// through 12 resolve the same fields.
type extractor struct {
	stack []string

	creator      string
	majorVersion string
	minorVersion string

	tempo       *float64
	numerator   int
	denominator int
	rootNote    int
	scaleName   string
	hasScale    bool

	audioTracks  int
	midiTracks   int
	returnTracks int
	groupTracks  int
	sceneCount   int

	plugins *stringSet
	devices *stringSet
	samples *stringSet
	markers []Marker

	arrangementEnd *float64
	sessionEnd     *float64
	hasAutomation  bool

	// per-block capture state
	pluginDepth    int
	pluginCaptured bool
	fileRefDepth   int
	fileRefPath    string
	fileRefName    string
	clipDepth      int
	clipKind       string
	marker         *Marker
}

func newExtractor() *extractor {
	return &extractor{
		plugins: newStringSet(),
		devices: newStringSet(),
		samples: newStringSet(),
	}
}

func (ex *extractor) run(dec *xml.Decoder) error {
	seenRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return failParse(ReasonNotXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !seenRoot {
				if t.Name.Local != "Ableton" {
					return failParse(ReasonNotLiveSet, nil)
				}
				seenRoot = true
				ex.creator = attr(t, "Creator")
				ex.majorVersion = attr(t, "MajorVersion")
				ex.minorVersion = attr(t, "MinorVersion")
			}
			ex.start(t)
			ex.stack = append(ex.stack, t.Name.Local)
		case xml.EndElement:
			if len(ex.stack) > 0 {
				ex.stack = ex.stack[:len(ex.stack)-1]
			}
			ex.end(t.Name.Local)
		}
	}
	if !seenRoot {
		return failParse(ReasonNotXML, errors.New("empty document"))
	}
	return nil
}

func (ex *extractor) start(t xml.StartElement) {
	name := t.Name.Local
	value := attr(t, "Value")

	switch name {
	case "AudioTrack", "MidiTrack", "ReturnTrack", "GroupTrack":
		if ex.ancestor("Tracks") {
			switch name {
			case "AudioTrack":
				ex.audioTracks++
			case "MidiTrack":
				ex.midiTracks++
			case "ReturnTrack":
				ex.returnTracks++
			case "GroupTrack":
				ex.groupTracks++
			}
		}
	case "Scene":
		if ex.parent() == "Scenes" {
			ex.sceneCount++
		}
	case "Manual":
		if ex.tempo == nil && ex.ancestor("Tempo") {
			if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
				ex.tempo = &v
			}
		}
	case "Numerator":
		if ex.numerator == 0 && ex.ancestor("TimeSignature") {
			ex.numerator, _ = strconv.Atoi(value)
		}
	case "Denominator":
		if ex.denominator == 0 && ex.ancestor("TimeSignature") {
			ex.denominator, _ = strconv.Atoi(value)
		}
	case "RootNote":
		if ex.parent() == "ScaleInformation" {
			ex.rootNote, _ = strconv.Atoi(value)
		}
	case "VstPluginInfo", "Vst3PluginInfo", "AuPluginInfo":
		ex.pluginDepth = len(ex.stack) + 1
		ex.pluginCaptured = false
	case "PlugName":
		ex.capturePlugin(value)
	case "Name":
		switch {
		case ex.parent() == "ScaleInformation":
			ex.scaleName = value
			ex.hasScale = value != ""
		case ex.parent() == "Locator" && ex.marker != nil:
			ex.marker.Name = value
		case ex.pluginDepth > 0:
			ex.capturePlugin(value)
		}
	case "FileRef":
		if ex.ancestor("SampleRef") {
			ex.fileRefDepth = len(ex.stack) + 1
			ex.fileRefPath = ""
			ex.fileRefName = ""
		}
	case "Path":
		if ex.fileRefDepth > 0 && ex.fileRefPath == "" {
			ex.fileRefPath = value
		}
	case "Locator":
		ex.marker = &Marker{}
	case "Time":
		if ex.parent() == "Locator" && ex.marker != nil {
			ex.marker.Time, _ = strconv.ParseFloat(value, 64)
		}
	case "AudioClip", "MidiClip":
		if ex.clipDepth == 0 {
			ex.clipDepth = len(ex.stack) + 1
			switch {
			case ex.ancestor("ArrangerAutomation"):
				ex.clipKind = "arrangement"
			case ex.ancestor("ClipSlot"):
				ex.clipKind = "session"
			default:
				ex.clipKind = ""
			}
		}
	case "CurrentEnd":
		if ex.clipDepth > 0 {
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				switch ex.clipKind {
				case "arrangement":
					ex.arrangementEnd = maxFloat(ex.arrangementEnd, v)
				case "session":
					ex.sessionEnd = maxFloat(ex.sessionEnd, v)
				}
			}
		}
	case "FloatEvent", "EnumEvent", "BoolEvent":
		if !ex.hasAutomation && ex.ancestor("AutomationEnvelope") {
			ex.hasAutomation = true
		}
	default:
		// Device elements sit directly under Devices and are identified by
		// their tag. Plugin shells are represented by the name captured from
		// their info block instead.
		if ex.parent() == "Devices" && !isPluginShell(name) {
			ex.devices.add(name)
		}
	}
}

func (ex *extractor) end(name string) {
	if ex.pluginDepth > 0 && len(ex.stack) < ex.pluginDepth {
		ex.pluginDepth = 0
	}
	if ex.fileRefDepth > 0 && len(ex.stack) < ex.fileRefDepth {
		if ex.fileRefPath != "" {
			ex.samples.add(ex.fileRefPath)
		} else if ex.fileRefName != "" {
			ex.samples.add(ex.fileRefName)
		}
		ex.fileRefDepth = 0
	}
	if ex.clipDepth > 0 && len(ex.stack) < ex.clipDepth {
		ex.clipDepth = 0
		ex.clipKind = ""
	}
	if name == "Locator" && ex.marker != nil {
		ex.markers = append(ex.markers, *ex.marker)
		ex.marker = nil
	}
}

func (ex *extractor) capturePlugin(name string) {
	if ex.pluginDepth == 0 || ex.pluginCaptured || name == "" {
		return
	}
	ex.plugins.add(name)
	ex.pluginCaptured = true
}

func (ex *extractor) parent() string {
	if len(ex.stack) == 0 {
		return ""
	}
	return ex.stack[len(ex.stack)-1]
}

func (ex *extractor) ancestor(name string) bool {
	for i := len(ex.stack) - 1; i >= 0; i-- {
		if ex.stack[i] == name {
			return true
		}
	}
	return false
}

func (ex *extractor) finish() *Metadata {
	m := &Metadata{
		Creator:           ex.creator,
		MajorVersion:      ex.majorVersion,
		MinorVersion:      ex.minorVersion,
		Tempo:             ex.tempo,
		AudioTracks:       ex.audioTracks,
		MidiTracks:        ex.midiTracks,
		ReturnTracks:      ex.returnTracks,
		GroupTracks:       ex.groupTracks,
		SceneCount:        ex.sceneCount,
		PluginNames:       ex.plugins.values(),
		DeviceNames:       ex.devices.values(),
		SampleRefs:        ex.samples.values(),
		Markers:           ex.markers,
		ArrangementLength: ex.arrangementEnd,
		SessionLength:     ex.sessionEnd,
		HasAutomation:     ex.hasAutomation,
	}

	if m.Tempo == nil {
		m.Warnings = append(m.Warnings, "tempo not found")
	}
	if ex.hasScale {
		key := keySignature(ex.rootNote, ex.scaleName)
		m.KeySignature = &key
	} else {
		m.Warnings = append(m.Warnings, "key signature not found")
	}
	if ex.numerator > 0 && ex.denominator > 0 {
		sig := strconv.Itoa(ex.numerator) + "/" + strconv.Itoa(ex.denominator)
		m.TimeSignature = &sig
	} else {
		m.Warnings = append(m.Warnings, "time signature not found")
	}
	if m.ArrangementLength == nil {
		m.Warnings = append(m.Warnings, "arrangement length not determined")
	}
	if m.SessionLength == nil {
		m.Warnings = append(m.Warnings, "session length not determined")
	}
	return m
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func isPluginShell(name string) bool {
	switch name {
	case "PluginDevice", "AuPluginDevice", "Vst3PluginDevice":
		return true
	}
	return false
}

func maxFloat(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return &v
	}
	return cur
}

// stringSet keeps unique values in first-seen order.
type stringSet struct {
	seen  map[string]struct{}
	order []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *stringSet) values() []string {
	return s.order
}
