// Package llm contains HTTP clients for OpenAI-compatible embedding and
// chat-completion endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/ragdocs/docchat/internal/rag"
	"github.com/ragdocs/docchat/library/log"
)

// DefaultEmbedBatchSize bounds the number of inputs per embeddings request.
const DefaultEmbedBatchSize = 100

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint, batching
// inputs and preserving submission order.
type EmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	batchDelay time.Duration
	httpClient *http.Client
	logger     logSDK.Logger
}

// NewEmbeddingClient constructs an embedding client for the configured model.
// A missing API key is a configuration error raised before any network call.
func NewEmbeddingClient(settings rag.Settings, httpClient *http.Client) (*EmbeddingClient, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeConfig, "missing api key for embeddings", false))
	}
	if strings.TrimSpace(settings.BaseURL) == "" {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeConfig, "missing embeddings base url", false))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	batchSize := settings.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	return &EmbeddingClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/"),
		apiKey:     strings.TrimSpace(settings.APIKey),
		model:      strings.TrimSpace(settings.EmbeddingModel),
		batchSize:  batchSize,
		batchDelay: settings.EmbedBatchDelay,
		httpClient: httpClient,
		logger:     log.Logger.Named("embeddings"),
	}, nil
}

// EmbedTexts returns one vector per input, in input order. Inputs are split
// into fixed-size batches with one request per batch; each batch's results
// are re-sorted by the service-returned index before concatenation since the
// service does not guarantee submission order. Any batch failure aborts the
// whole call; partial results are never returned.
func (c *EmbeddingClient) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	totalBatches := (len(inputs) + c.batchSize - 1) / c.batchSize
	vectors := make([][]float32, 0, len(inputs))

	for start := 0; start < len(inputs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batchNum := start/c.batchSize + 1

		c.logger.Debug("embedding batch",
			zap.Int("batch", batchNum),
			zap.Int("total_batches", totalBatches),
			zap.Int("size", end-start))

		batchVectors, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, errors.Wrapf(err, "embed batch %d/%d", batchNum, totalBatches)
		}
		vectors = append(vectors, batchVectors...)

		// Rate-limit courtesy between batches; a scheduling policy, not a
		// correctness requirement.
		if end < len(inputs) && c.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "wait between embedding batches")
			case <-time.After(c.batchDelay):
			}
		}
	}

	return vectors, nil
}

// EmbedText is a convenience wrapping a singleton batch.
func (c *EmbeddingClient) EmbedText(ctx context.Context, input string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{input})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(vectors) == 0 {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeBadResponse, "embedding provider returned no vector", true))
	}
	return vectors[0], nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []embeddingsDataItem `json:"data"`
}

type embeddingsDataItem struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: batch})
	if err != nil {
		return nil, errors.Wrap(err, "marshal embeddings request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build embeddings request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call embeddings endpoint")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeUpstream,
			upstreamErrorMessage("embeddings", httpResp.StatusCode, httpResp.Body), httpResp.StatusCode >= 500))
	}

	var decoded embeddingsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode embeddings response")
	}
	if len(decoded.Data) != len(batch) {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeBadResponse, "embedding count mismatch", true))
	}

	sort.Slice(decoded.Data, func(i, j int) bool {
		return decoded.Data[i].Index < decoded.Data[j].Index
	})

	vectors := make([][]float32, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		values := make([]float32, len(item.Embedding))
		for i, value := range item.Embedding {
			values[i] = float32(value)
		}
		vectors = append(vectors, values)
	}
	return vectors, nil
}

// upstreamErrorMessage captures the status and a bounded slice of the
// response body for diagnostics.
func upstreamErrorMessage(endpoint string, status int, body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return fmt.Sprintf("%s endpoint status %d", endpoint, status)
	}
	return fmt.Sprintf("%s endpoint status %d: %s", endpoint, status, text)
}
