package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPromptNoDocuments(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("what is in my files?", RetrievalResult{IsEmpty: true}, false)

	require.Contains(t, prompt.System, "no documents have been uploaded")
	require.Contains(t, prompt.System, `"answer"`)
	require.Equal(t, "what is in my files?", prompt.User)
	require.Empty(t, prompt.Citations)
	require.Empty(t, prompt.ValidCitationIDs)
}

func TestBuildPromptEmptyRetrieval(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("unknown topic", RetrievalResult{IsEmpty: true}, true)

	require.Contains(t, prompt.System, "no relevant information was found")
	require.Contains(t, prompt.System, "Do NOT answer based on general knowledge")
	require.Contains(t, prompt.System, `"answer"`)
	require.Equal(t, "unknown topic", prompt.User)
	require.Empty(t, prompt.Citations)
	require.Empty(t, prompt.ValidCitationIDs)
}

func TestBuildPromptPopulated(t *testing.T) {
	t.Parallel()

	result := RetrievalResult{Chunks: []ScoredChunk{
		scoredChunk("d1-chunk-0", "d1", "report.pdf", "Revenue grew by 12 percent.", 0, 0.9),
		scoredChunk("d1-chunk-1", "d1", "report.pdf", "Costs were flat year over year.", 1, 0.8),
	}}

	prompt := BuildPrompt("how did revenue develop?", result, true)

	require.Equal(t, []string{"c1", "c2"}, prompt.ValidCitationIDs)
	require.Len(t, prompt.Citations, 2)
	require.Contains(t, prompt.System, "c1, c2")
	require.Contains(t, prompt.System, "{{cite:cX}}")
	require.Contains(t, prompt.System, "SINGLE JSON OBJECT")
	require.Contains(t, prompt.User, "Revenue grew by 12 percent.")
	require.Contains(t, prompt.User, "User question: how did revenue develop?")
	require.True(t, strings.HasPrefix(prompt.User, "Context from uploaded documents:"))
}

func TestBuildLegacyPromptStates(t *testing.T) {
	t.Parallel()

	noDocs := BuildLegacyPrompt("q", RetrievalResult{IsEmpty: true}, false)
	require.Contains(t, noDocs.System, "no documents have been uploaded")
	require.NotContains(t, noDocs.System, `"citations"`)

	empty := BuildLegacyPrompt("q", RetrievalResult{IsEmpty: true}, true)
	require.Contains(t, empty.System, "could not be answered")

	populated := BuildLegacyPrompt("q", RetrievalResult{Chunks: []ScoredChunk{
		scoredChunk("d1-chunk-0", "d1", "notes.txt", "Some facts.", 0, 0.7),
	}}, true)
	require.Contains(t, populated.User, "[Source 1: notes.txt, relevance: 70%]")
	require.NotContains(t, populated.System, "{{cite:")
}
