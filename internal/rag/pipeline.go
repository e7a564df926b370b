package rag

import (
	"context"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/ragdocs/docchat/library/log"
)

// SimilarityIndex stores embedded chunks and answers top-K nearest-neighbor
// queries with a minimum-score threshold, optionally filtered by document
// subset and tenant.
type SimilarityIndex interface {
	Search(ctx context.Context, queryVec []float32, topK int, threshold float64,
		documentIDs []string, tenant string) (RetrievalResult, error)
	AddChunks(ctx context.Context, tenant, documentID string, chunks []Chunk) error
	RemoveDocument(ctx context.Context, documentID string) error
	HasDocument(ctx context.Context, documentID string) (bool, error)
	ListDocuments(ctx context.Context, tenant string) ([]DocumentInfo, error)
	Count(ctx context.Context, tenant string) (int64, error)
}

// Embedder converts text into vector representations, preserving input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedText(ctx context.Context, input string) ([]float32, error)
}

// Completer produces a completion for a system/user prompt pair.
type Completer interface {
	ChatWithSystem(ctx context.Context, system, user string) (string, error)
}

// Clock abstracts time source for deterministic tests.
type Clock func() time.Time

// Pipeline coordinates chunking, embedding, retrieval, prompting, and
// response parsing. All operations are request-scoped and stateless between
// requests; shared mutable state lives in the injected SimilarityIndex.
type Pipeline struct {
	index     SimilarityIndex
	embedder  Embedder
	completer Completer
	settings  Settings
	logger    logSDK.Logger
	clock     Clock
	newID     func() string
}

// NewPipeline wires the pipeline dependencies.
func NewPipeline(index SimilarityIndex, embedder Embedder, completer Completer,
	settings Settings, logger logSDK.Logger) (*Pipeline, error) {
	if index == nil {
		return nil, errors.New("similarity index is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding client is required")
	}
	if completer == nil {
		return nil, errors.New("completion client is required")
	}
	if logger == nil {
		logger = log.Logger.Named("rag_pipeline")
	}

	return &Pipeline{
		index:     index,
		embedder:  embedder,
		completer: completer,
		settings:  sanitizeSettings(settings),
		logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID: uuid.NewString,
	}, nil
}

func (p *Pipeline) loggerFromContext(ctx context.Context) logSDK.Logger {
	if ctx != nil {
		if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	if p.logger != nil {
		return p.logger
	}
	return log.Logger.Named("rag_pipeline")
}

// IngestDocument chunks and embeds the document text and indexes the result.
func (p *Pipeline) IngestDocument(ctx context.Context, tenant, name, text string) (*ProcessedDocument, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.WithStack(NewError(ErrCodeInvalidArgument, "document name cannot be empty", false))
	}

	documentID := p.newID()
	chunks := ChunkText(text, documentID, name, p.settings)
	if len(chunks) == 0 {
		return nil, errors.WithStack(NewError(ErrCodeInvalidArgument, "no chunks generated from document text", false))
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, "embed document chunks")
	}
	if len(vectors) != len(chunks) {
		return nil, errors.WithStack(NewError(ErrCodeBadResponse, "embedding count mismatch", true))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.index.AddChunks(ctx, tenant, documentID, chunks); err != nil {
		return nil, errors.Wrap(err, "index document chunks")
	}

	p.loggerFromContext(ctx).Info("document ingested",
		zap.String("document_id", documentID),
		zap.String("name", name),
		zap.Int("chunks", len(chunks)))

	return &ProcessedDocument{
		ID:          documentID,
		Name:        name,
		ChunkCount:  len(chunks),
		ProcessedAt: p.clock(),
	}, nil
}

// RemoveDocument drops the document from the index. Idempotent.
func (p *Pipeline) RemoveDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return errors.WithStack(NewError(ErrCodeInvalidArgument, "document id cannot be empty", false))
	}
	return errors.WithStack(p.index.RemoveDocument(ctx, documentID))
}

// ListDocuments returns the indexed documents, optionally scoped to a tenant,
// in ingestion order.
func (p *Pipeline) ListDocuments(ctx context.Context, tenant string) ([]DocumentInfo, error) {
	docs, err := p.index.ListDocuments(ctx, tenant)
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	return docs, nil
}

// AnswerInput captures the normalized parameters of one query request. TopK
// and ScoreThreshold override the configured defaults when set.
type AnswerInput struct {
	Tenant         string
	Query          string
	DocumentIDs    []string
	TopK           int
	ScoreThreshold *float64
}

// AnswerResult is the parsed, citation-resolved outcome of one query.
type AnswerResult struct {
	Answer    string
	Citations []CitationData
	Valid     bool
	ParseErr  string
	Retrieval RetrievalResult
}

// Answer runs the full query path: corpus check, query embedding, similarity
// search, context assembly, prompting, completion, and response parsing.
// When no corpus exists, no embedding or search call is issued.
func (p *Pipeline) Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, errors.WithStack(NewError(ErrCodeInvalidArgument, "query cannot be empty", false))
	}

	topK := p.settings.TopK
	if input.TopK > 0 {
		topK = input.TopK
	}
	if topK > p.settings.TopKLimit {
		topK = p.settings.TopKLimit
	}
	threshold := p.settings.ScoreThreshold
	if input.ScoreThreshold != nil {
		threshold = *input.ScoreThreshold
	}

	logger := p.loggerFromContext(ctx)

	count, err := p.index.Count(ctx, input.Tenant)
	if err != nil {
		return nil, errors.Wrap(err, "count corpus chunks")
	}

	var result RetrievalResult
	hasDocuments := count > 0
	if hasDocuments {
		queryVec, err := p.embedder.EmbedText(ctx, input.Query)
		if err != nil {
			return nil, errors.Wrap(err, "embed query")
		}
		result, err = p.index.Search(ctx, queryVec, topK, threshold, input.DocumentIDs, input.Tenant)
		if err != nil {
			return nil, errors.Wrap(err, "search similar chunks")
		}
	} else {
		result = RetrievalResult{IsEmpty: true}
	}

	prompt := BuildPrompt(input.Query, result, hasDocuments)

	raw, err := p.completer.ChatWithSystem(ctx, prompt.System, prompt.User)
	if err != nil {
		return nil, errors.Wrap(err, "request completion")
	}

	parsed := ParseResponse(raw, prompt.Citations, prompt.ValidCitationIDs)
	if !parsed.Valid {
		logger.Warn("degraded response parse",
			zap.String("error", parsed.Err),
			zap.Int("citations", len(parsed.Citations)))
	}

	logger.Debug("query answered",
		zap.Int("retrieved", len(result.Chunks)),
		zap.Bool("is_empty", result.IsEmpty),
		zap.Bool("valid", parsed.Valid))

	return &AnswerResult{
		Answer:    parsed.Answer,
		Citations: parsed.Citations,
		Valid:     parsed.Valid,
		ParseErr:  parsed.Err,
		Retrieval: result,
	}, nil
}
