package store

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/ragdocs/docchat/internal/rag"
	"github.com/ragdocs/docchat/library/log"
)

// PGStore is a Postgres/pgvector backed similarity index. Cosine distance is
// computed by the database via the <=> operator; threshold and topK are
// applied in SQL. Per-document mutations run in a transaction, so a
// concurrent search sees either the pre- or post-mutation chunk set.
type PGStore struct {
	db     *gorm.DB
	logger logSDK.Logger
}

// NewPGStore wires the database handle and runs the required schema
// migrations, including the pgvector extension.
func NewPGStore(db *gorm.DB, logger logSDK.Logger) (*PGStore, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if logger == nil {
		logger = log.Logger.Named("pg_store")
	}

	s := &PGStore{db: db, logger: logger}
	if err := runStoreMigrations(context.Background(), db, logger); err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

func runStoreMigrations(ctx context.Context, db *gorm.DB, logger logSDK.Logger) error {
	logger.Debug("ensuring pgvector extension")
	if err := ensureVectorExtension(ctx, db, logger); err != nil {
		return errors.Wrap(err, "ensure pgvector extension")
	}

	logger.Debug("running store auto migrations")
	if err := db.WithContext(ctx).AutoMigrate(&DocumentRow{}, &ChunkRow{}); err != nil {
		return errors.Wrap(err, "auto migrate store tables")
	}
	return nil
}

func ensureVectorExtension(ctx context.Context, db *gorm.DB, logger logSDK.Logger) error {
	if db == nil {
		return errors.New("gorm db is nil")
	}
	if !isPostgresDialect(db) {
		return nil
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		if shouldFallbackToPgvector(err) {
			if logger != nil {
				logger.Debug("pgvector extension unavailable under name 'vector', retrying with legacy name")
			}
			if execErr := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS pgvector").Error; execErr != nil {
				return errors.Wrap(execErr, "create pgvector extension")
			}
			return nil
		}
		return errors.Wrap(err, "create vector extension")
	}
	return nil
}

func isPostgresDialect(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	return strings.EqualFold(db.Dialector.Name(), "postgres")
}

func shouldFallbackToPgvector(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "58P01", "42704":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "extension \"vector\"") && strings.Contains(msg, "not") && strings.Contains(msg, "available")
}

// AddChunks persists the embedded chunks of one document inside a single
// transaction, replacing any existing chunk set for the same document ID.
// Rows are inserted in bounded batches to respect payload limits.
func (s *PGStore) AddChunks(ctx context.Context, tenant, documentID string, chunks []rag.Chunk) error {
	if documentID == "" {
		return errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument, "document id cannot be empty", false))
	}

	rows := make([]ChunkRow, 0, len(chunks))
	documentName := ""
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument,
				"chunk "+chunk.ID+" has no embedding", false))
		}
		documentName = chunk.Metadata.DocumentName
		rows = append(rows, ChunkRow{
			ID:           chunk.ID,
			DocumentID:   documentID,
			Tenant:       tenant,
			DocumentName: chunk.Metadata.DocumentName,
			ChunkIndex:   chunk.Metadata.ChunkIndex,
			StartChar:    chunk.Metadata.StartChar,
			EndChar:      chunk.Metadata.EndChar,
			Content:      chunk.Content,
			Embedding:    pgvector.NewVector(chunk.Embedding),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&ChunkRow{}).Error; err != nil {
			return errors.Wrap(err, "delete stale chunks")
		}
		if err := tx.Where("id = ?", documentID).Delete(&DocumentRow{}).Error; err != nil {
			return errors.Wrap(err, "delete stale document")
		}
		if err := tx.Create(&DocumentRow{
			ID:         documentID,
			Tenant:     tenant,
			Name:       documentName,
			ChunkCount: len(rows),
		}).Error; err != nil {
			return errors.Wrap(err, "insert document")
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return errors.Wrap(err, "insert chunks")
		}
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	s.logger.Info("chunks indexed",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(rows)))
	return nil
}

// RemoveDocument deletes the document and its chunks. Removing an absent
// document is a no-op.
func (s *PGStore) RemoveDocument(ctx context.Context, documentID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&ChunkRow{}).Error; err != nil {
			return errors.Wrap(err, "delete chunks")
		}
		if err := tx.Where("id = ?", documentID).Delete(&DocumentRow{}).Error; err != nil {
			return errors.Wrap(err, "delete document")
		}
		return nil
	})
	return errors.WithStack(err)
}

// HasDocument reports whether the document has chunks in the store.
func (s *PGStore) HasDocument(ctx context.Context, documentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ChunkRow{}).
		Where("document_id = ?", documentID).
		Count(&count).Error
	if err != nil {
		return false, storeBackendError(err, "count document chunks")
	}
	return count > 0, nil
}

// Count returns the number of indexed chunks, optionally scoped to a tenant.
func (s *PGStore) Count(ctx context.Context, tenant string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&ChunkRow{})
	if tenant != "" {
		query = query.Where("tenant = ?", tenant)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, storeBackendError(err, "count chunks")
	}
	return count, nil
}

// ListDocuments returns the indexed documents in ingestion order, optionally
// scoped to a tenant.
func (s *PGStore) ListDocuments(ctx context.Context, tenant string) ([]rag.DocumentInfo, error) {
	query := s.db.WithContext(ctx).Model(&DocumentRow{}).Order("created_at ASC, id ASC")
	if tenant != "" {
		query = query.Where("tenant = ?", tenant)
	}

	var rows []DocumentRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, storeBackendError(err, "list documents")
	}

	infos := make([]rag.DocumentInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, rag.DocumentInfo{
			ID:         row.ID,
			Name:       row.Name,
			ChunkCount: row.ChunkCount,
		})
	}
	return infos, nil
}

type scoredRow struct {
	ID           string  `gorm:"column:id"`
	DocumentID   string  `gorm:"column:document_id"`
	DocumentName string  `gorm:"column:document_name"`
	ChunkIndex   int     `gorm:"column:chunk_index"`
	StartChar    int     `gorm:"column:start_char"`
	EndChar      int     `gorm:"column:end_char"`
	Content      string  `gorm:"column:content"`
	Similarity   float64 `gorm:"column:similarity"`
}

// Search runs a cosine-similarity query against the chunk corpus, scoped to
// the tenant and optional document subset, keeping the top topK rows whose
// similarity is at least threshold.
func (s *PGStore) Search(ctx context.Context, queryVec []float32, topK int, threshold float64,
	documentIDs []string, tenant string) (rag.RetrievalResult, error) {
	if len(queryVec) == 0 {
		return rag.RetrievalResult{}, errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument, "query vector cannot be empty", false))
	}
	if topK <= 0 {
		return rag.RetrievalResult{IsEmpty: true}, nil
	}

	vec := pgvector.NewVector(queryVec)

	sql := `
        SELECT id, document_id, document_name, chunk_index, start_char, end_char, content,
               1 - (embedding <=> ?) AS similarity
        FROM ` + TableChunks + `
        WHERE 1 - (embedding <=> ?) >= ?`
	args := []any{vec, vec, threshold}
	if tenant != "" {
		sql += " AND tenant = ?"
		args = append(args, tenant)
	}
	if len(documentIDs) > 0 {
		sql += " AND document_id IN ?"
		args = append(args, documentIDs)
	}
	sql += `
        ORDER BY embedding <=> ? ASC, id ASC
        LIMIT ?`
	args = append(args, vec, topK)

	rows := make([]scoredRow, 0, topK)
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return rag.RetrievalResult{}, storeBackendError(err, "query similar chunks")
	}

	scored := make([]rag.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, rag.ScoredChunk{
			Chunk: rag.Chunk{
				ID:         row.ID,
				DocumentID: row.DocumentID,
				Content:    row.Content,
				Metadata: rag.ChunkMetadata{
					DocumentName: row.DocumentName,
					ChunkIndex:   row.ChunkIndex,
					StartChar:    row.StartChar,
					EndChar:      row.EndChar,
				},
			},
			Score: clampScore(row.Similarity),
		})
	}

	return rag.RetrievalResult{
		Chunks:  scored,
		IsEmpty: len(scored) == 0,
	}, nil
}

// storeBackendError types a database failure so callers can distinguish
// infrastructure faults from bad input.
func storeBackendError(err error, op string) error {
	return errors.WithStack(rag.NewError(rag.ErrCodeStoreBackend, op+": "+err.Error(), true))
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
