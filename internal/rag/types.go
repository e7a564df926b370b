package rag

import "time"

// ChunkMetadata carries the position of a chunk inside the normalized document text.
type ChunkMetadata struct {
	DocumentName string `json:"documentName"`
	ChunkIndex   int    `json:"chunkIndex"`
	StartChar    int    `json:"startChar"`
	EndChar      int    `json:"endChar"`
}

// Chunk represents one contiguous span of a document. The ID is deterministic
// per document; the embedding is attached once the span has been embedded.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Embedding  []float32     `json:"embedding,omitempty"`
}

// ScoredChunk pairs a chunk with its retrieval score in [0,1].
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is the outcome of one similarity search. IsEmpty is a
// semantic flag: true iff nothing satisfied the score threshold or no corpus
// exists, and consumers must branch on it rather than on len(Chunks) alone.
type RetrievalResult struct {
	Chunks  []ScoredChunk `json:"chunks"`
	IsEmpty bool          `json:"isEmpty"`
}

// CitationMetadata describes the source of a citation.
type CitationMetadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
}

// CitationData is a query-scoped citation record. The ID is an ephemeral cN
// token allocated per request in ranked order; it is never a stable chunk
// reference across requests.
type CitationData struct {
	ID       string           `json:"id"`
	Snippet  string           `json:"snippet"`
	Content  string           `json:"content"`
	Metadata CitationMetadata `json:"metadata"`
}

// DocumentInfo is the listing view of one indexed document.
type DocumentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunkCount"`
}

// ProcessedDocument summarizes one ingested document.
type ProcessedDocument struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ChunkCount  int       `json:"chunkCount"`
	ProcessedAt time.Time `json:"processedAt"`
}
