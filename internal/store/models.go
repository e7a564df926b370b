package store

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// DocumentRow is the persisted record of one ingested document.
type DocumentRow struct {
	ID         string `gorm:"primaryKey"`
	Tenant     string `gorm:"index"`
	Name       string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName sets the documents table name.
func (DocumentRow) TableName() string { return TableDocuments }

// ChunkRow is the persisted record of one embedded chunk.
type ChunkRow struct {
	ID           string `gorm:"primaryKey"`
	DocumentID   string `gorm:"index"`
	Tenant       string `gorm:"index"`
	DocumentName string
	ChunkIndex   int
	StartChar    int
	EndChar      int
	Content      string
	Embedding    pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt    time.Time
}

// TableName sets the chunks table name.
func (ChunkRow) TableName() string { return TableChunks }

const (
	TableDocuments = "rag_documents"
	TableChunks    = "rag_document_chunks"

	// insertBatchSize bounds rows per insert to respect payload limits.
	insertBatchSize = 100
)
