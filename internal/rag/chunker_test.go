package rag

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInput(t *testing.T) {
	t.Parallel()

	cfg := Settings{ChunkSize: 500, ChunkOverlap: 100}
	chunks := ChunkText("A short document.", "doc-1", "short.txt", cfg)

	require.Len(t, chunks, 1)
	require.Equal(t, "doc-1-chunk-0", chunks[0].ID)
	require.Equal(t, "doc-1", chunks[0].DocumentID)
	require.Equal(t, "A short document.", chunks[0].Content)
	require.Equal(t, 0, chunks[0].Metadata.StartChar)
	require.Equal(t, len("A short document."), chunks[0].Metadata.EndChar)
}

func TestChunkTextEmptyInput(t *testing.T) {
	t.Parallel()

	cfg := Settings{ChunkSize: 500, ChunkOverlap: 100}
	require.Empty(t, ChunkText("", "doc-1", "empty.txt", cfg))
	require.Empty(t, ChunkText("   \n\t  ", "doc-1", "blank.txt", cfg))
}

func TestChunkTextNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	cfg := Settings{ChunkSize: 500, ChunkOverlap: 100}
	chunks := ChunkText("hello\n\n  world\tagain", "doc-1", "ws.txt", cfg)

	require.Len(t, chunks, 1)
	require.Equal(t, "hello world again", chunks[0].Content)
}

func TestChunkTextCoverage(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "Sentence number %d has a few words in it. ", i)
	}
	text := b.String()
	normalized := normalizeWhitespace(text)

	cfg := Settings{ChunkSize: 200, ChunkOverlap: 40}
	chunks := ChunkText(text, "doc-1", "long.txt", cfg)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Metadata.ChunkIndex, "chunk indexes must be contiguous")
		require.Less(t, chunk.Metadata.StartChar, chunk.Metadata.EndChar)
		require.NotEmpty(t, chunk.Content)
	}

	// Consecutive chunks overlap: each next start falls before the previous end.
	for i := 1; i < len(chunks); i++ {
		require.Less(t, chunks[i].Metadata.StartChar, chunks[i-1].Metadata.EndChar)
	}

	require.Equal(t, len(normalized), chunks[len(chunks)-1].Metadata.EndChar,
		"last chunk must reach the end of the normalized text")
}

func TestChunkTextDeterminism(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	cfg := Settings{ChunkSize: 180, ChunkOverlap: 30}

	first := ChunkText(text, "doc-1", "fox.txt", cfg)
	second := ChunkText(text, "doc-1", "fox.txt", cfg)
	require.Equal(t, first, second)
}

func TestChunkTextSentenceBoundarySnap(t *testing.T) {
	t.Parallel()

	// The sentence end sits inside the last 20% of the first window, so the
	// cut must land just past the period and its trailing space.
	text := "Aaaa bbbb cccc dddd eeee ffff gggg hhhh. Xyz continues here with more words to push past the window."
	cfg := Settings{ChunkSize: 45, ChunkOverlap: 5}

	chunks := ChunkText(text, "doc-1", "snap.txt", cfg)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.True(t, strings.HasSuffix(chunks[0].Content, "hhhh."),
		"first chunk should end at the sentence boundary, got %q", chunks[0].Content)
}

func TestChunkTextTerminatesWithoutSpaces(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 5000)
	cfg := Settings{ChunkSize: 100, ChunkOverlap: 20}

	chunks := ChunkText(text, "doc-1", "dense.txt", cfg)
	require.NotEmpty(t, chunks)
	require.Equal(t, 5000, chunks[len(chunks)-1].Metadata.EndChar)
}

func TestChunkTextKeepsMultiByteRunesIntact(t *testing.T) {
	t.Parallel()

	// No spaces or sentence boundaries, so every cut is a hard cut. Three-byte
	// runes at a chunk size not divisible by three force rune-boundary backoff.
	text := strings.Repeat("漢字文章", 40)
	cfg := Settings{ChunkSize: 100, ChunkOverlap: 20}
	chunks := ChunkText(text, "doc-1", "cjk.txt", cfg)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.True(t, utf8.ValidString(chunk.Content), "chunk %s content must be valid UTF-8", chunk.ID)
		require.Less(t, chunk.Metadata.StartChar, chunk.Metadata.EndChar)
	}
}

func TestChunkTextTerminatesOnOverlapMisconfiguration(t *testing.T) {
	t.Parallel()

	// Overlap >= size is a caller misconfiguration; the walk must still stop.
	text := strings.Repeat("y", 2000)
	cfg := Settings{ChunkSize: 50, ChunkOverlap: 80}

	done := make(chan []Chunk, 1)
	go func() { done <- ChunkText(text, "doc-1", "bad.txt", cfg) }()

	chunks := <-done
	require.NotEmpty(t, chunks)
}
