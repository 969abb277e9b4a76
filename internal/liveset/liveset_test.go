package liveset_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"setlist/internal/liveset"
	"setlist/internal/services"
	"setlist/internal/testsupport"
)

func gzipXML(t *testing.T, xml []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(xml); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestParseCompleteSet(t *testing.T) {
	fixture := testsupport.BasicLiveSet()
	meta, err := liveset.Parse(gzipXML(t, fixture.XML()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if !meta.Complete() {
		t.Fatalf("expected complete parse, warnings: %v", meta.Warnings)
	}
	if meta.Tempo == nil || *meta.Tempo != 128 {
		t.Fatalf("unexpected tempo: %v", meta.Tempo)
	}
	if meta.KeySignature == nil || *meta.KeySignature != "A Minor" {
		t.Fatalf("unexpected key signature: %v", meta.KeySignature)
	}
	if meta.TimeSignature == nil || *meta.TimeSignature != "4/4" {
		t.Fatalf("unexpected time signature: %v", meta.TimeSignature)
	}
	if meta.AudioTracks != 2 || meta.MidiTracks != 1 || meta.ReturnTracks != 1 || meta.GroupTracks != 0 {
		t.Fatalf("unexpected track counts: %d/%d/%d/%d",
			meta.AudioTracks, meta.MidiTracks, meta.ReturnTracks, meta.GroupTracks)
	}
	if meta.SceneCount != 8 {
		t.Fatalf("unexpected scene count: %d", meta.SceneCount)
	}
	if len(meta.PluginNames) != 1 || meta.PluginNames[0] != "Serum" {
		t.Fatalf("unexpected plugins: %v", meta.PluginNames)
	}
	if len(meta.DeviceNames) != 2 || meta.DeviceNames[0] != "Eq8" {
		t.Fatalf("unexpected devices: %v", meta.DeviceNames)
	}
	if len(meta.SampleRefs) != 1 || meta.SampleRefs[0] != "Samples/Imported/kick.wav" {
		t.Fatalf("unexpected samples: %v", meta.SampleRefs)
	}
	if len(meta.Markers) != 1 || meta.Markers[0].Name != "Drop" || meta.Markers[0].Time != 16 {
		t.Fatalf("unexpected markers: %+v", meta.Markers)
	}
	if meta.ArrangementLength == nil || *meta.ArrangementLength != 256 {
		t.Fatalf("unexpected arrangement length: %v", meta.ArrangementLength)
	}
	if meta.SessionLength == nil || *meta.SessionLength != 32 {
		t.Fatalf("unexpected session length: %v", meta.SessionLength)
	}
	if !meta.HasAutomation {
		t.Fatal("expected automation to be detected")
	}
	if meta.Creator != "Ableton Live 11.3.13" || meta.MajorVersion != "5" {
		t.Fatalf("unexpected root attributes: %q %q", meta.Creator, meta.MajorVersion)
	}
	if meta.LiveVersion() != "11" {
		t.Fatalf("unexpected live version: %q", meta.LiveVersion())
	}
}

func TestParsePartialSetCollectsWarnings(t *testing.T) {
	fixture := testsupport.LiveSetFixture{
		Creator:      "Ableton Live 9.7.7",
		MajorVersion: "4",
		MinorVersion: "9.7_77",
		AudioTracks:  1,
	}
	meta, err := liveset.Parse(gzipXML(t, fixture.XML()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if meta.Complete() {
		t.Fatal("expected partial parse")
	}
	want := map[string]bool{
		"tempo not found":                   false,
		"key signature not found":           false,
		"time signature not found":          false,
		"arrangement length not determined": false,
		"session length not determined":     false,
	}
	for _, w := range meta.Warnings {
		if _, ok := want[w]; !ok {
			t.Fatalf("unexpected warning %q", w)
		}
		want[w] = true
	}
	for w, seen := range want {
		if !seen {
			t.Fatalf("missing warning %q in %v", w, meta.Warnings)
		}
	}
	if meta.Tempo != nil || meta.KeySignature != nil {
		t.Fatalf("expected unresolved fields to stay nil: %v %v", meta.Tempo, meta.KeySignature)
	}
	if meta.AudioTracks != 1 {
		t.Fatalf("unexpected audio track count: %d", meta.AudioTracks)
	}
}

func TestParseAcceptsUncompressedXML(t *testing.T) {
	meta, err := liveset.Parse(testsupport.BasicLiveSet().XML())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if meta.Tempo == nil || *meta.Tempo != 128 {
		t.Fatalf("unexpected tempo: %v", meta.Tempo)
	}
}

func TestParseFailureReasons(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		reason liveset.FailReason
	}{
		{"binary garbage", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}, liveset.ReasonNotGzip},
		{"truncated gzip", gzipXML(t, testsupport.BasicLiveSet().XML())[:10], liveset.ReasonNotGzip},
		{"malformed xml", gzipXML(t, []byte("<Ableton><LiveSet></Ableton>")), liveset.ReasonNotXML},
		{"wrong root", gzipXML(t, []byte(`<?xml version="1.0"?><Project/>`)), liveset.ReasonNotLiveSet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := liveset.Parse(tc.data)
			if err == nil {
				t.Fatal("expected parse failure")
			}
			var perr *liveset.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %T", err)
			}
			if perr.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, perr.Reason)
			}
			if !errors.Is(err, services.ErrParse) {
				t.Fatalf("expected parse marker in chain: %v", err)
			}
		})
	}
}

func TestLiveVersionFallsBackToCreator(t *testing.T) {
	meta := &liveset.Metadata{Creator: "Ableton Live 8.4.2", MinorVersion: ""}
	if got := meta.LiveVersion(); got != "Ableton Live 8.4.2" {
		t.Fatalf("unexpected fallback version: %q", got)
	}
}
