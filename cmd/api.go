package cmd

import (
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ragdocs/docchat/internal/llm"
	"github.com/ragdocs/docchat/internal/rag"
	"github.com/ragdocs/docchat/internal/store"
	"github.com/ragdocs/docchat/internal/web"
	"github.com/ragdocs/docchat/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API for the document chat pipeline`,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		pipeline, err := buildPipeline()
		if err != nil {
			log.Logger.Panic("build pipeline", zap.Error(err))
		}
		web.RunServer(gconfig.Shared.GetString("listen"), pipeline)
	},
}

// buildPipeline assembles the similarity index, model clients, and pipeline
// from the loaded configuration. Without a database DSN the index runs
// in-memory.
func buildPipeline() (*rag.Pipeline, error) {
	settings := rag.LoadSettingsFromConfig()

	var index rag.SimilarityIndex
	dsn := strings.TrimSpace(gconfig.Shared.GetString("settings.db.dsn"))
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		index, err = store.NewPGStore(db, log.Logger.Named("pg_store"))
		if err != nil {
			return nil, errors.Wrap(err, "create pg store")
		}
	} else {
		log.Logger.Info("no database configured, using in-memory index")
		index = store.NewMemoryStore()
	}

	embedder, err := llm.NewEmbeddingClient(settings, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create embedding client")
	}
	completer, err := llm.NewCompletionClient(settings, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create completion client")
	}

	pipeline, err := rag.NewPipeline(index, embedder, completer, settings, log.Logger.Named("pipeline"))
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline")
	}
	return pipeline, nil
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
