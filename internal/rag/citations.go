package rag

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// snippetLimit bounds citation preview snippets.
	snippetLimit = 200
	// contextDelimiter separates context blocks in the assembled prompt.
	contextDelimiter = "\n\n---\n\n"
)

// CitationContext is the result of assembling a retrieval result into a
// prompt context block plus the allocated citation records.
type CitationContext struct {
	ContextString string
	Citations     []CitationData
}

// AssembleContext converts a ranked retrieval result into a plain-text context
// block and a list of citation records with query-scoped IDs c1..cN assigned
// in ranked order. Re-running on the same ranked input yields the same mapping.
func AssembleContext(result RetrievalResult) CitationContext {
	if result.IsEmpty || len(result.Chunks) == 0 {
		return CitationContext{}
	}

	blocks := make([]string, 0, len(result.Chunks))
	citations := make([]CitationData, 0, len(result.Chunks))
	for i, scored := range result.Chunks {
		id := fmt.Sprintf("c%d", i+1)
		citations = append(citations, CitationData{
			ID:      id,
			Snippet: buildSnippet(scored.Chunk.Content),
			Content: scored.Chunk.Content,
			Metadata: CitationMetadata{
				Source:     scored.Chunk.Metadata.DocumentName,
				ChunkIndex: scored.Chunk.Metadata.ChunkIndex,
			},
		})
		blocks = append(blocks, fmt.Sprintf("[Citation ID: %s]\n[Source: %s, relevance: %d%%]\n%s",
			id, scored.Chunk.Metadata.DocumentName, relevancePercent(scored.Score), scored.Chunk.Content))
	}

	return CitationContext{
		ContextString: strings.Join(blocks, contextDelimiter),
		Citations:     citations,
	}
}

// FormatContext is the legacy variant without citation-ID headers, used by
// prompts that do not request structured citations.
func FormatContext(result RetrievalResult) string {
	if result.IsEmpty || len(result.Chunks) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(result.Chunks))
	for i, scored := range result.Chunks {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s, relevance: %d%%]\n%s",
			i+1, scored.Chunk.Metadata.DocumentName, relevancePercent(scored.Score), scored.Chunk.Content))
	}
	return strings.Join(blocks, contextDelimiter)
}

func relevancePercent(score float64) int {
	return int(math.Round(score * 100))
}

// buildSnippet trims content to a preview of at most snippetLimit characters,
// breaking at the last sentence end past 60% of the limit, else the last
// space, else a hard cut, with a trailing ellipsis when truncated.
func buildSnippet(content string) string {
	if len(content) <= snippetLimit {
		return content
	}

	limit := snippetLimit
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	window := content[:limit]
	cut := -1
	for i := len(window) - 1; i >= snippetLimit*60/100; i-- {
		if window[i] == '.' || window[i] == '!' || window[i] == '?' {
			cut = i + 1
			break
		}
	}
	if cut < 0 {
		if lastSpace := strings.LastIndexByte(window, ' '); lastSpace > 0 {
			cut = lastSpace
		}
	}
	if cut < 0 {
		cut = len(window)
	}
	return strings.TrimSpace(window[:cut]) + "..."
}
