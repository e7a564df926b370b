// Package store provides similarity-index implementations: an in-memory
// corpus for single-process deployments and tests, and a Postgres/pgvector
// backed store. Both honor the same filter, threshold, and ranking semantics.
package store

import (
	"context"
	"math"
	"sort"
	"sync"

	errors "github.com/Laisky/errors/v2"

	"github.com/ragdocs/docchat/internal/rag"
)

type memoryDocument struct {
	tenant string
	seq    int
	chunks []rag.Chunk
}

// MemoryStore is an in-memory similarity index. Per-document add/remove is
// atomic with respect to concurrent search: a search observes either the
// pre- or post-mutation chunk set for any document, never a partial one.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]*memoryDocument
	nextSeq int
}

// NewMemoryStore constructs an empty in-memory index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDocument)}
}

// AddChunks indexes the embedded chunks of one document, replacing any
// existing chunk set for the same document ID.
func (s *MemoryStore) AddChunks(_ context.Context, tenant, documentID string, chunks []rag.Chunk) error {
	if documentID == "" {
		return errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument, "document id cannot be empty", false))
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument,
				"chunk "+chunk.ID+" has no embedding", false))
		}
	}

	copied := make([]rag.Chunk, len(chunks))
	copy(copied, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	if existing, ok := s.docs[documentID]; ok {
		seq = existing.seq
	} else {
		s.nextSeq++
	}
	s.docs[documentID] = &memoryDocument{tenant: tenant, seq: seq, chunks: copied}
	return nil
}

// RemoveDocument drops all chunks for the document. Removing an absent
// document is a no-op, not an error.
func (s *MemoryStore) RemoveDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	return nil
}

// HasDocument reports whether the document has chunks in the index.
func (s *MemoryStore) HasDocument(_ context.Context, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[documentID]
	return ok, nil
}

// ListDocuments returns the indexed documents in insertion order, optionally
// scoped to a tenant.
func (s *MemoryStore) ListDocuments(_ context.Context, tenant string) ([]rag.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type docEntry struct {
		seq  int
		info rag.DocumentInfo
	}
	entries := make([]docEntry, 0, len(s.docs))
	for id, doc := range s.docs {
		if tenant != "" && doc.tenant != tenant {
			continue
		}
		name := ""
		if len(doc.chunks) > 0 {
			name = doc.chunks[0].Metadata.DocumentName
		}
		entries = append(entries, docEntry{seq: doc.seq, info: rag.DocumentInfo{
			ID:         id,
			Name:       name,
			ChunkCount: len(doc.chunks),
		}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	infos := make([]rag.DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, entry.info)
	}
	return infos, nil
}

// Count returns the number of indexed chunks, optionally scoped to a tenant.
func (s *MemoryStore) Count(_ context.Context, tenant string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, doc := range s.docs {
		if tenant != "" && doc.tenant != tenant {
			continue
		}
		count += int64(len(doc.chunks))
	}
	return count, nil
}

// Search ranks every indexed chunk in the filter scope by cosine similarity
// to the query vector, keeps the top topK entries scoring at least threshold,
// and sets IsEmpty when nothing qualifies. Ties keep insertion order, so
// identical inputs always produce identical output.
func (s *MemoryStore) Search(_ context.Context, queryVec []float32, topK int, threshold float64,
	documentIDs []string, tenant string) (rag.RetrievalResult, error) {
	if len(queryVec) == 0 {
		return rag.RetrievalResult{}, errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument, "query vector cannot be empty", false))
	}
	if topK <= 0 {
		return rag.RetrievalResult{IsEmpty: true}, nil
	}

	var docFilter map[string]struct{}
	if len(documentIDs) > 0 {
		docFilter = make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			docFilter[id] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type docEntry struct {
		seq    int
		chunks []rag.Chunk
	}
	scope := make([]docEntry, 0, len(s.docs))
	for id, doc := range s.docs {
		if tenant != "" && doc.tenant != tenant {
			continue
		}
		if docFilter != nil {
			if _, ok := docFilter[id]; !ok {
				continue
			}
		}
		scope = append(scope, docEntry{seq: doc.seq, chunks: doc.chunks})
	}
	sort.Slice(scope, func(i, j int) bool { return scope[i].seq < scope[j].seq })

	candidates := make([]rag.ScoredChunk, 0, 16)
	for _, doc := range scope {
		for _, chunk := range doc.chunks {
			score := CosineSimilarity(queryVec, chunk.Embedding)
			if score < threshold {
				continue
			}
			candidates = append(candidates, rag.ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return rag.RetrievalResult{
		Chunks:  candidates,
		IsEmpty: len(candidates) == 0,
	}, nil
}

// CosineSimilarity computes the cosine similarity of two vectors, clamped to
// [0,1]. Zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < len(a) && i < len(b); i++ {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
