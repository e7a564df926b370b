package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/ragdocs/docchat/internal/rag"
	"github.com/ragdocs/docchat/library/log"
)

// newSQLiteStore exercises the gorm persistence paths against an in-memory
// database. Vector ranking needs the <=> operator and stays Postgres-only;
// everything else shares the dialect-agnostic gorm code.
func newSQLiteStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	s, err := NewPGStore(db, log.Logger.Named("pg_store_test"))
	require.NoError(t, err, "migrations must skip the extension on non-postgres dialects")
	return s
}

func vectorChunks(documentID string, n int) []rag.Chunk {
	chunks := make([]rag.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, rag.Chunk{
			ID:         fmt.Sprintf("%s-chunk-%d", documentID, i),
			DocumentID: documentID,
			Content:    fmt.Sprintf("chunk %d body", i),
			Metadata: rag.ChunkMetadata{
				DocumentName: documentID + ".txt",
				ChunkIndex:   i,
				StartChar:    i * 100,
				EndChar:      (i + 1) * 100,
			},
			Embedding: []float32{float32(i), 1},
		})
	}
	return chunks
}

func TestPGStoreAddChunksPersistsRows(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, "tenant-a", "d1", vectorChunks("d1", 3)))

	has, err := s.HasDocument(ctx, "d1")
	require.NoError(t, err)
	require.True(t, has)

	count, err := s.Count(ctx, "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	var doc DocumentRow
	require.NoError(t, s.db.First(&doc, "id = ?", "d1").Error)
	require.Equal(t, "d1.txt", doc.Name)
	require.Equal(t, 3, doc.ChunkCount)
}

func TestPGStoreAddChunksReplacesExisting(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, "", "d1", vectorChunks("d1", 3)))
	require.NoError(t, s.AddChunks(ctx, "", "d1", vectorChunks("d1", 1)))

	count, err := s.Count(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	var docs int64
	require.NoError(t, s.db.Model(&DocumentRow{}).Count(&docs).Error)
	require.EqualValues(t, 1, docs)
}

func TestPGStoreAddChunksRejectsMissingEmbedding(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	chunks := vectorChunks("d1", 1)
	chunks[0].Embedding = nil

	err := s.AddChunks(context.Background(), "", "d1", chunks)
	require.Error(t, err)
	require.True(t, rag.IsCode(err, rag.ErrCodeInvalidArgument))
}

func TestPGStoreRemoveDocumentIdempotent(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, "", "d1", vectorChunks("d1", 2)))
	require.NoError(t, s.RemoveDocument(ctx, "d1"))
	require.NoError(t, s.RemoveDocument(ctx, "d1"))

	has, err := s.HasDocument(ctx, "d1")
	require.NoError(t, err)
	require.False(t, has)

	count, err := s.Count(ctx, "")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestPGStoreListDocuments(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, "tenant-a", "d1", vectorChunks("d1", 2)))
	require.NoError(t, s.AddChunks(ctx, "tenant-b", "d2", vectorChunks("d2", 1)))

	all, err := s.ListDocuments(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, rag.DocumentInfo{ID: "d1", Name: "d1.txt", ChunkCount: 2}, all[0])
	require.Equal(t, rag.DocumentInfo{ID: "d2", Name: "d2.txt", ChunkCount: 1}, all[1])

	scoped, err := s.ListDocuments(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "d1", scoped[0].ID)

	require.NoError(t, s.RemoveDocument(ctx, "d1"))
	remaining, err := s.ListDocuments(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "d2", remaining[0].ID)
}

func TestPGStoreCountScopesByTenant(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChunks(ctx, "tenant-a", "d1", vectorChunks("d1", 2)))
	require.NoError(t, s.AddChunks(ctx, "tenant-b", "d2", vectorChunks("d2", 1)))

	all, err := s.Count(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 3, all)

	scoped, err := s.Count(ctx, "tenant-b")
	require.NoError(t, err)
	require.EqualValues(t, 1, scoped)
}
