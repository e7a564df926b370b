package rag

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedResponse is the outcome of parsing a model completion. Valid is false
// when JSON parsing or validation failed and the answer was recovered by
// fallback; Err then carries a diagnostic string for logging. The answer is
// always usable.
type ParsedResponse struct {
	Answer    string         `json:"answer"`
	Citations []CitationData `json:"citations"`
	Valid     bool           `json:"isValid"`
	Err       string         `json:"error,omitempty"`
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	shapedJSON  = regexp.MustCompile(`(?s)\{\s*"answer"\s*:\s*".*?"\s*,\s*"citations"\s*:\s*\[.*?\]\s*\}`)
	// balancedObject matches {...} spans with at most one level of nesting.
	balancedObject = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	genericObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResponse extracts a structured answer from a possibly-noisy model
// completion, normalizes malformed citation markers, validates citation IDs
// against the allocated set, and degrades to plain text on parse failure. It
// never fails outright: the caller always receives a usable answer.
func ParseResponse(raw string, contextCitations []CitationData, validCitationIDs []string) ParsedResponse {
	answer, parseErr := parseAnswerField(extractJSON(raw))
	if parseErr == "" {
		sanitized := sanitizeMarkers(NormalizeCitationMarkers(answer), validCitationIDs)
		used := ExtractCitationIDs(sanitized)
		return ParsedResponse{
			Answer:    sanitized,
			Citations: filterCitations(contextCitations, used),
			Valid:     true,
		}
	}

	// Fallback: salvage markers from the raw completion text.
	normalizedRaw := NormalizeCitationMarkers(raw)
	if HasCitations(normalizedRaw) {
		sanitized := sanitizeMarkers(normalizedRaw, validCitationIDs)
		used := ExtractCitationIDs(sanitized)
		return ParsedResponse{
			Answer:    sanitized,
			Citations: filterCitations(contextCitations, used),
			Valid:     false,
			Err:       "json parsing failed but citations extracted from plain text",
		}
	}

	return ParsedResponse{
		Answer:    raw,
		Citations: []CitationData{},
		Valid:     false,
		Err:       parseErr,
	}
}

// extractJSON locates the most plausible JSON payload in the completion.
// Selection priority: fenced code block, then the exact
// {"answer": ..., "citations": [...]} shape, then a balanced object containing
// the "answer" key (last match wins), then any generic {...} span, then the
// raw trimmed text as a last resort.
func extractJSON(raw string) string {
	if match := fencedBlock.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}

	if match := shapedJSON.FindString(raw); match != "" {
		return match
	}

	if objects := balancedObject.FindAllString(raw, -1); objects != nil {
		for i := len(objects) - 1; i >= 0; i-- {
			if strings.Contains(objects[i], `"answer"`) {
				return objects[i]
			}
		}
		return objects[len(objects)-1]
	}

	if match := genericObject.FindString(raw); match != "" {
		return match
	}

	return strings.TrimSpace(raw)
}

// parseAnswerField decodes the candidate JSON and pulls out the answer
// string. The citations array emitted by the model is ignored; the system
// fills citations after validation.
func parseAnswerField(candidate string) (string, string) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return "", "decode response json: " + err.Error()
	}
	answer, ok := decoded["answer"].(string)
	if !ok {
		return "", `missing or invalid "answer" field in response`
	}
	return answer, ""
}

// sanitizeMarkers strips any {{cite:cX}} marker whose ID is not in the valid
// set, leaving no marker text behind.
func sanitizeMarkers(answer string, validCitationIDs []string) string {
	valid := make(map[string]struct{}, len(validCitationIDs))
	for _, id := range validCitationIDs {
		valid[id] = struct{}{}
	}
	return citeMarker.ReplaceAllStringFunc(answer, func(match string) string {
		sub := citeMarker.FindStringSubmatch(match)
		if len(sub) < 2 {
			return ""
		}
		if _, ok := valid[sub[1]]; ok {
			return match
		}
		return ""
	})
}

// filterCitations reduces the allocated citations to exactly those used by
// the answer, preserving allocation order.
func filterCitations(contextCitations []CitationData, usedIDs []string) []CitationData {
	used := make(map[string]struct{}, len(usedIDs))
	for _, id := range usedIDs {
		used[id] = struct{}{}
	}
	filtered := make([]CitationData, 0, len(usedIDs))
	for _, citation := range contextCitations {
		if _, ok := used[citation.ID]; ok {
			filtered = append(filtered, citation)
		}
	}
	return filtered
}
