package testsupport

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"strings"
	"testing"
)

// FixtureMarker describes an arrangement locator emitted into fixture sets.
type FixtureMarker struct {
	Time float64
	Name string
}

// LiveSetFixture describes the contents of a generated Ableton Live set.
// Zero-valued optional fields are omitted from the XML so tests can exercise
// partial parses.
type LiveSetFixture struct {
	Creator      string
	MajorVersion string
	MinorVersion string

	Tempo     float64
	RootNote  int
	ScaleName string
	TimeSigN  int
	TimeSigD  int

	AudioTracks  int
	MidiTracks   int
	ReturnTracks int
	GroupTracks  int
	Scenes       int

	Plugins []string
	Devices []string
	Samples []string
	Markers []FixtureMarker

	ArrangementEnd float64
	SessionEnd     float64
	Automation     bool
}

// BasicLiveSet returns a fully populated fixture that parses as complete.
func BasicLiveSet() LiveSetFixture {
	return LiveSetFixture{
		Creator:        "Ableton Live 11.3.13",
		MajorVersion:   "5",
		MinorVersion:   "11.0_11202",
		Tempo:          128,
		RootNote:       9,
		ScaleName:      "Minor",
		TimeSigN:       4,
		TimeSigD:       4,
		AudioTracks:    2,
		MidiTracks:     1,
		ReturnTracks:   1,
		GroupTracks:    0,
		Scenes:         8,
		Plugins:        []string{"Serum"},
		Devices:        []string{"Eq8", "Compressor2"},
		Samples:        []string{"Samples/Imported/kick.wav"},
		Markers:        []FixtureMarker{{Time: 16, Name: "Drop"}},
		ArrangementEnd: 256,
		SessionEnd:     32,
		Automation:     true,
	}
}

// XML renders the fixture as uncompressed Live set XML.
func (f LiveSetFixture) XML() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<Ableton MajorVersion=%q MinorVersion=%q SchemaChangeCount="3" Creator=%q Revision="">`+"\n",
		f.MajorVersion, f.MinorVersion, f.Creator)
	b.WriteString("<LiveSet>\n<Tracks>\n")

	for i := 0; i < f.AudioTracks; i++ {
		fmt.Fprintf(&b, `<AudioTrack Id="%d">`+"\n", 10+i)
		fmt.Fprintf(&b, `<Name><EffectiveName Value="Audio %d"/><UserName Value=""/></Name>`+"\n", i+1)
		b.WriteString("<DeviceChain>\n")
		if i == 0 {
			f.writeSequencer(&b)
			f.writeDevices(&b)
		} else {
			b.WriteString("<DeviceChain><Devices/></DeviceChain>\n")
		}
		b.WriteString("</DeviceChain>\n</AudioTrack>\n")
	}
	for i := 0; i < f.MidiTracks; i++ {
		fmt.Fprintf(&b, `<MidiTrack Id="%d"><Name><EffectiveName Value="MIDI %d"/></Name><DeviceChain><DeviceChain><Devices/></DeviceChain></DeviceChain></MidiTrack>`+"\n", 30+i, i+1)
	}
	for i := 0; i < f.GroupTracks; i++ {
		fmt.Fprintf(&b, `<GroupTrack Id="%d"><Name><EffectiveName Value="Group %d"/></Name></GroupTrack>`+"\n", 50+i, i+1)
	}
	for i := 0; i < f.ReturnTracks; i++ {
		fmt.Fprintf(&b, `<ReturnTrack Id="%d"><Name><EffectiveName Value="Return %d"/></Name></ReturnTrack>`+"\n", 70+i, i+1)
	}
	b.WriteString("</Tracks>\n")

	b.WriteString("<MasterTrack>\n<DeviceChain>\n<Mixer>\n")
	if f.Tempo > 0 {
		fmt.Fprintf(&b, `<Tempo><Manual Value="%g"/></Tempo>`+"\n", f.Tempo)
	}
	if f.TimeSigN > 0 && f.TimeSigD > 0 {
		fmt.Fprintf(&b, `<TimeSignature><TimeSignatures><RemoteableTimeSignature Id="0"><Numerator Value="%d"/><Denominator Value="%d"/></RemoteableTimeSignature></TimeSignatures></TimeSignature>`+"\n", f.TimeSigN, f.TimeSigD)
	}
	b.WriteString("</Mixer>\n")
	if f.Automation {
		b.WriteString(`<AutomationEnvelopes><Envelopes><AutomationEnvelope Id="0"><Automation><Events><FloatEvent Id="1" Time="0" Value="0.5"/><FloatEvent Id="2" Time="8" Value="0.75"/></Events></Automation></AutomationEnvelope></Envelopes></AutomationEnvelopes>` + "\n")
	}
	b.WriteString("</DeviceChain>\n</MasterTrack>\n")

	if len(f.Markers) > 0 {
		b.WriteString("<Locators><Locators>\n")
		for i, m := range f.Markers {
			fmt.Fprintf(&b, `<Locator Id="%d"><Time Value="%g"/><Name Value=%q/></Locator>`+"\n", i, m.Time, m.Name)
		}
		b.WriteString("</Locators></Locators>\n")
	}
	if f.Scenes > 0 {
		b.WriteString("<Scenes>\n")
		for i := 0; i < f.Scenes; i++ {
			fmt.Fprintf(&b, `<Scene Id="%d"><FollowAction/></Scene>`+"\n", i)
		}
		b.WriteString("</Scenes>\n")
	}
	if f.ScaleName != "" {
		fmt.Fprintf(&b, `<ScaleInformation><RootNote Value="%d"/><Name Value=%q/></ScaleInformation>`+"\n", f.RootNote, f.ScaleName)
	}

	b.WriteString("</LiveSet>\n</Ableton>\n")
	return []byte(b.String())
}

func (f LiveSetFixture) writeSequencer(b *strings.Builder) {
	b.WriteString("<MainSequencer>\n")
	if f.ArrangementEnd > 0 {
		fmt.Fprintf(b, `<ClipTimeable><ArrangerAutomation><Events><AudioClip Id="0" Time="0"><CurrentEnd Value="%g"/>`, f.ArrangementEnd)
		f.writeSampleRefs(b)
		b.WriteString("</AudioClip></Events></ArrangerAutomation></ClipTimeable>\n")
	}
	if f.SessionEnd > 0 {
		fmt.Fprintf(b, `<ClipSlotList><ClipSlot Id="0"><ClipSlot><Value><AudioClip Id="1" Time="0"><CurrentEnd Value="%g"/></AudioClip></Value></ClipSlot></ClipSlot></ClipSlotList>`+"\n", f.SessionEnd)
	}
	b.WriteString("</MainSequencer>\n")
}

func (f LiveSetFixture) writeSampleRefs(b *strings.Builder) {
	for _, s := range f.Samples {
		fmt.Fprintf(b, `<SampleRef><FileRef><Path Value=%q/></FileRef></SampleRef>`, s)
	}
}

func (f LiveSetFixture) writeDevices(b *strings.Builder) {
	b.WriteString("<DeviceChain><Devices>\n")
	id := 100
	for _, d := range f.Devices {
		fmt.Fprintf(b, `<%s Id="%d"><On><Manual Value="true"/></On></%s>`+"\n", d, id, d)
		id++
	}
	for _, p := range f.Plugins {
		fmt.Fprintf(b, `<PluginDevice Id="%d"><PluginDesc><VstPluginInfo><PlugName Value=%q/></VstPluginInfo></PluginDesc></PluginDevice>`+"\n", id, p)
		id++
	}
	b.WriteString("</Devices></DeviceChain>\n")
}

// WriteLiveSet gzips the fixture XML to path, creating parent directories.
func WriteLiveSet(t testing.TB, path string, f LiveSetFixture) {
	t.Helper()
	WriteGzip(t, path, f.XML())
}

// WriteGzip writes gzip-compressed data to path.
func WriteGzip(t testing.TB, path string, data []byte) {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("compress fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	WriteFile(t, path, buf.Bytes())
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
