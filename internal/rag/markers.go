package rag

import (
	"regexp"
	"strings"
)

var (
	citeMarker     = regexp.MustCompile(`\{\{cite:(c\d+)\}\}`)
	combinedMarker = regexp.MustCompile(`\{\{cite:(c\d+(?:\s*,\s*c\d+)+)\}\}`)
	idSeparator    = regexp.MustCompile(`\s*,\s*`)
)

// ContentPartKind distinguishes the parts of a parsed answer.
type ContentPartKind string

const (
	ContentPartText     ContentPartKind = "text"
	ContentPartCitation ContentPartKind = "citation"
)

// ContentPart is one segment of an answer: either literal text or a citation
// reference resolved from an inline {{cite:cX}} marker.
type ContentPart struct {
	Kind       ContentPartKind
	Content    string
	CitationID string
}

// NormalizeCitationMarkers expands malformed comma-grouped markers such as
// {{cite:c3, c5}} into {{cite:c3}}{{cite:c5}} so the single-ID pattern can
// match each one.
func NormalizeCitationMarkers(answer string) string {
	return combinedMarker.ReplaceAllStringFunc(answer, func(match string) string {
		sub := combinedMarker.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		var b strings.Builder
		for _, id := range idSeparator.Split(sub[1], -1) {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			b.WriteString("{{cite:")
			b.WriteString(id)
			b.WriteString("}}")
		}
		return b.String()
	})
}

// SplitAnswerParts parses an answer into an alternating sequence of text and
// citation parts, normalizing malformed markers first.
func SplitAnswerParts(answer string) []ContentPart {
	normalized := NormalizeCitationMarkers(answer)

	parts := make([]ContentPart, 0, 4)
	last := 0
	for _, loc := range citeMarker.FindAllStringSubmatchIndex(normalized, -1) {
		if loc[0] > last {
			parts = append(parts, ContentPart{Kind: ContentPartText, Content: normalized[last:loc[0]]})
		}
		parts = append(parts, ContentPart{Kind: ContentPartCitation, CitationID: normalized[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(normalized) {
		parts = append(parts, ContentPart{Kind: ContentPartText, Content: normalized[last:]})
	}
	return parts
}

// HasCitations reports whether the answer contains any citation markers.
func HasCitations(answer string) bool {
	return citeMarker.MatchString(answer)
}

// ExtractCitationIDs returns the unique citation IDs referenced by the
// answer, in order of first appearance.
func ExtractCitationIDs(answer string) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, 4)
	for _, match := range citeMarker.FindAllStringSubmatch(answer, -1) {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
