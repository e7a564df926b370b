package web

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docchat/internal/rag"
)

type handlers struct {
	pipeline *rag.Pipeline
}

type ingestRequest struct {
	Name   string `json:"name" binding:"required"`
	Text   string `json:"text" binding:"required"`
	Tenant string `json:"tenant"`
}

type chatRequest struct {
	Query          string   `json:"query" binding:"required"`
	DocumentIDs    []string `json:"documentIds"`
	Tenant         string   `json:"tenant"`
	TopK           int      `json:"topK"`
	ScoreThreshold *float64 `json:"scoreThreshold"`
}

type chatResponse struct {
	Response  string             `json:"response"`
	Citations []rag.CitationData `json:"citations"`
	Valid     bool               `json:"isValid"`
}

func (h *handlers) ingestDocument(ctx *gin.Context) {
	var req ingestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.pipeline.IngestDocument(ctx, req.Tenant, req.Name, req.Text)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "document": doc})
}

func (h *handlers) listDocuments(ctx *gin.Context) {
	docs, err := h.pipeline.ListDocuments(ctx, ctx.Query("tenant"))
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *handlers) removeDocument(ctx *gin.Context) {
	if err := h.pipeline.RemoveDocument(ctx, ctx.Param("id")); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handlers) chat(ctx *gin.Context) {
	var req chatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.pipeline.Answer(ctx, rag.AnswerInput{
		Tenant:         req.Tenant,
		Query:          req.Query,
		DocumentIDs:    req.DocumentIDs,
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, chatResponse{
		Response:  result.Answer,
		Citations: result.Citations,
		Valid:     result.Valid,
	})
}

// abortWithError maps typed pipeline errors to HTTP statuses. Infrastructure
// failures surface here as request failures; data-quality degradation never
// reaches this path.
func abortWithError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	if typed, ok := rag.AsError(err); ok {
		switch typed.Code {
		case rag.ErrCodeInvalidArgument:
			status = http.StatusBadRequest
		case rag.ErrCodeConfig, rag.ErrCodeStoreBackend:
			status = http.StatusInternalServerError
		case rag.ErrCodeUpstream, rag.ErrCodeBadResponse:
			status = http.StatusBadGateway
		}
	}

	if status >= http.StatusInternalServerError {
		gmw.GetLogger(ctx).Error("request failed", zap.Error(err))
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
