package textutil

import (
	"math"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "My Song.als", "my song"},
		{"punctuation", "My_Song--Take.2.wav", "my song take"},
		{"extension only", ".als", "als"},
		{"empty", "   ", ""},
		{"unicode", "Éclair Session.als", "clair session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripRenderTags(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"my song master", "my song"},
		{"my song final v2", "my song"},
		{"my song mixdown 03", "my song"},
		{"master", "master"},
		{"my song", "my song"},
	}
	for _, tt := range tests {
		if got := StripRenderTags(tt.input); got != tt.want {
			t.Errorf("StripRenderTags(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRenderTagOnly(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"mix", true},
		{"master v2", true},
		{"final bounce", true},
		{"my song master", false},
		{"sunrise", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := RenderTagOnly(tt.input); got != tt.want {
			t.Errorf("RenderTagOnly(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	a := NameTokens("my song master")
	b := NameTokens("my song")
	got := TokenOverlap(a, b)
	want := 2 * 2.0 / 5.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("TokenOverlap = %v, want %v", got, want)
	}

	if TokenOverlap(nil, b) != 0 {
		t.Error("expected zero overlap for empty set")
	}
	if TokenOverlap(a, a) != 1 {
		t.Error("expected identical sets to overlap fully")
	}
}

func TestCosineSimilarityIdentity(t *testing.T) {
	fp := NewFingerprintFromTokens([]string{"serum", "valhalla", "pro-q3", "operator"})
	if got := CosineSimilarity(fp, fp); got != 1.0 {
		t.Errorf("self similarity = %v, want 1.0", got)
	}
}

func TestCosineSimilarityDisjoint(t *testing.T) {
	a := NewFingerprintFromTokens([]string{"serum", "diva"})
	b := NewFingerprintFromTokens([]string{"operator", "wavetable"})
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("disjoint similarity = %v, want 0", got)
	}
}

func TestCosineSimilarityNil(t *testing.T) {
	fp := NewFingerprintFromTokens([]string{"serum"})
	if CosineSimilarity(nil, fp) != 0 || CosineSimilarity(fp, nil) != 0 {
		t.Error("expected nil fingerprints to score 0")
	}
}

func TestFingerprintWithIDFDownweightsCommonTerms(t *testing.T) {
	corpus := NewCorpus()
	common := NewFingerprintFromTokens([]string{"operator", "compressor"})
	rare := NewFingerprintFromTokens([]string{"operator", "obscura"})
	corpus.Add(common)
	corpus.Add(rare)
	corpus.Add(NewFingerprintFromTokens([]string{"operator"}))

	idf := corpus.IDF()
	if idf["operator"] >= idf["obscura"] {
		t.Fatalf("expected common term to weigh less: operator=%v obscura=%v", idf["operator"], idf["obscura"])
	}

	weighted := rare.WithIDF(idf)
	if weighted == nil || weighted.TokenCount() != 2 {
		t.Fatalf("unexpected weighted fingerprint: %#v", weighted)
	}
}
