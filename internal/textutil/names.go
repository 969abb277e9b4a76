package textutil

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// separatorPattern matches runs of characters that separate name tokens.
var separatorPattern = regexp.MustCompile(`[^a-z0-9]+`)

// renderTags are trailing tokens commonly appended to exported render names
// that carry no identity ("My Song master v2.wav" names the project "My Song").
var renderTags = map[string]struct{}{
	"master":    {},
	"final":     {},
	"mix":       {},
	"mixdown":   {},
	"bounce":    {},
	"bounced":   {},
	"render":    {},
	"rendered":  {},
	"export":    {},
	"exported":  {},
	"full":      {},
	"wip":       {},
	"demo":      {},
	"premaster": {},
}

// versionTagPattern matches version counters like "v2", "2", "(3)" or "03".
var versionTagPattern = regexp.MustCompile(`^(?:v?\d{1,3})$`)

// NormalizeName folds a file or project name into a canonical comparison form:
// Unicode NFC, extension stripped, lowercased, with separator runs collapsed
// to single spaces.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if ext := filepath.Ext(name); ext != "" && len(ext) < len(name) {
		name = name[:len(name)-len(ext)]
	}
	name = strings.ToLower(name)
	name = separatorPattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// StripRenderTags removes trailing render-suffix tokens and version counters
// from an already-normalized name. It never strips the final remaining token,
// so "master" as a whole name survives.
func StripRenderTags(normalized string) string {
	tokens := strings.Fields(normalized)
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if _, ok := renderTags[last]; ok {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		if versionTagPattern.MatchString(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return strings.Join(tokens, " ")
}

// RenderTagOnly reports whether every token of an already-normalized name is
// a render tag or version counter. Names like "mix", "master v2" or "final
// bounce" identify what the file is, not which project produced it.
func RenderTagOnly(normalized string) bool {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return false
	}
	for _, token := range tokens {
		if _, ok := renderTags[token]; ok {
			continue
		}
		if versionTagPattern.MatchString(token) {
			continue
		}
		return false
	}
	return true
}

// NameTokens returns the unique comparison tokens of a normalized name.
// Single-character tokens are dropped.
func NameTokens(normalized string) []string {
	fields := strings.Fields(normalized)
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
	}
	return tokens
}

// TokenOverlap computes the Sørensen–Dice coefficient between two token sets.
// Returns 0 when either set is empty.
func TokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, token := range a {
		set[token] = struct{}{}
	}
	shared := 0
	for _, token := range b {
		if _, ok := set[token]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
