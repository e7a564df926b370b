package rag

import (
	"fmt"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings captures runtime configuration for the retrieval pipeline.
// Values are process-wide and immutable after startup; only TopK and
// ScoreThreshold may be overridden per request by the caller.
type Settings struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	TopKLimit      int
	ScoreThreshold float64

	EmbedBatchSize  int
	EmbedBatchDelay time.Duration

	EmbeddingModel  string
	CompletionModel string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxTokens       int
}

// LoadSettingsFromConfig reads the shared configuration and returns a sanitized Settings instance.
func LoadSettingsFromConfig() Settings {
	cfg := Settings{
		ChunkSize:       intFromConfig("settings.rag.chunk_size", 500),
		ChunkOverlap:    intFromConfig("settings.rag.chunk_overlap", 100),
		TopK:            intFromConfig("settings.rag.top_k", 8),
		TopKLimit:       intFromConfig("settings.rag.top_k_limit", 20),
		ScoreThreshold:  floatFromConfig("settings.rag.score_threshold", 0.1),
		EmbedBatchSize:  intFromConfig("settings.rag.embed_batch_size", 100),
		EmbedBatchDelay: time.Duration(intFromConfig("settings.rag.embed_batch_delay_ms", 100)) * time.Millisecond,
		EmbeddingModel:  strings.TrimSpace(gconfig.Shared.GetString("settings.openai.embedding_model")),
		CompletionModel: strings.TrimSpace(gconfig.Shared.GetString("settings.openai.completion_model")),
		BaseURL:         strings.TrimSpace(gconfig.Shared.GetString("settings.openai.base_url")),
		APIKey:          strings.TrimSpace(gconfig.Shared.GetString("settings.openai.api_key")),
		Temperature:     floatFromConfig("settings.openai.temperature", 0.3),
		MaxTokens:       intFromConfig("settings.openai.max_tokens", 1024),
	}

	return sanitizeSettings(cfg)
}

func sanitizeSettings(cfg Settings) Settings {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.TopKLimit <= 0 {
		cfg.TopKLimit = 20
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.TopK > cfg.TopKLimit {
		cfg.TopK = cfg.TopKLimit
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		cfg.ScoreThreshold = 0.1
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 100
	}
	if cfg.EmbedBatchDelay < 0 {
		cfg.EmbedBatchDelay = 100 * time.Millisecond
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "openai/text-embedding-3-large"
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = "google/gemini-2.0-flash-001"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return cfg
}

func intFromConfig(key string, def int) int {
	value := gconfig.Shared.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed int
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

func floatFromConfig(key string, def float64) float64 {
	value := gconfig.Shared.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed float64
		if _, err := fmt.Sscanf(trimmed, "%f", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
