package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceBoundary matches the end of a sentence followed by the start of the
// next one. Whitespace is already collapsed to single spaces when this runs.
// Latin-centric on purpose; other scripts fall back to word-boundary splitting.
var sentenceBoundary = regexp.MustCompile(`[.!?] [A-Z]`)

// ChunkText splits normalized document text into overlapping, boundary-aware
// chunks with position metadata. Offsets refer to the whitespace-collapsed
// text, not the raw input. Chunk IDs are deterministic per document and
// ChunkIndex forms a contiguous 0-based sequence.
func ChunkText(text, documentID, documentName string, cfg Settings) []Chunk {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	size := cfg.ChunkSize
	if size <= 0 {
		size = 500
	}
	overlap := cfg.ChunkOverlap

	chunks := make([]Chunk, 0, len(normalized)/size+1)
	start := 0
	index := 0

	for start < len(normalized) {
		end := start + size
		if end > len(normalized) {
			end = len(normalized)
		}

		if end < len(normalized) {
			end = snapToBoundary(normalized, start, end, size)
		}

		content := strings.TrimSpace(normalized[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s-chunk-%d", documentID, index),
				DocumentID: documentID,
				Content:    content,
				Metadata: ChunkMetadata{
					DocumentName: documentName,
					ChunkIndex:   index,
					StartChar:    start,
					EndChar:      end,
				},
			})
			index++
		}

		next := end - overlap
		for next > 0 && next < len(normalized) && !utf8.RuneStart(normalized[next]) {
			next++
		}
		// No-progress guards: the window reached the text end, the advanced
		// start leaves less than one character of new text, or a misconfigured
		// overlap >= size would walk backwards.
		if end == len(normalized) {
			break
		}
		if next >= len(normalized)-1 {
			break
		}
		if next <= start {
			break
		}
		start = next
	}

	return chunks
}

// snapToBoundary searches the last 20% of the window for a sentence boundary
// and cuts just past the punctuation and its trailing space. Without one it
// falls back to the nearest preceding space, keeping the raw window end when
// the text has no space before it.
func snapToBoundary(normalized string, start, end, size int) int {
	lookbackStart := end - size/5
	if lookbackStart < start {
		lookbackStart = start
	}
	if loc := sentenceBoundary.FindStringIndex(normalized[lookbackStart:end]); loc != nil {
		return lookbackStart + loc[0] + 2
	}
	if lastSpace := strings.LastIndexByte(normalized[:end+1], ' '); lastSpace > start {
		return lastSpace
	}
	return runeAlignedCut(normalized, start, end)
}

// runeAlignedCut backs a byte offset off to the nearest rune start so a hard
// cut never splits a multi-byte rune. The original offset is kept when the
// whole window is the interior of one rune.
func runeAlignedCut(s string, start, end int) int {
	aligned := end
	for aligned > start && !utf8.RuneStart(s[aligned]) {
		aligned--
	}
	if aligned == start {
		return end
	}
	return aligned
}

// normalizeWhitespace collapses whitespace runs to single spaces and trims.
func normalizeWhitespace(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
