// Package web exposes the retrieval pipeline over a thin gin HTTP surface.
package web

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docchat/internal/rag"
	"github.com/ragdocs/docchat/library/log"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(pipeline *rag.Pipeline) *gin.Engine {
	server := gin.New()
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(log.Logger.Named("gin")),
		),
	)

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	h := &handlers{pipeline: pipeline}
	api := server.Group("/api")
	api.POST("/documents", h.ingestDocument)
	api.GET("/documents", h.listDocuments)
	api.DELETE("/documents/:id", h.removeDocument)
	api.POST("/chat", h.chat)

	return server
}

// RunServer starts the HTTP server and blocks until it exits.
func RunServer(addr string, pipeline *rag.Pipeline) {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	server := NewRouter(pipeline)

	log.Logger.Info("listening on http", zap.String("addr", addr))
	log.Logger.Panic("http server exit", zap.Error(server.Run(addr)))
}
