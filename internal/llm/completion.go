package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	errors "github.com/Laisky/errors/v2"

	"github.com/ragdocs/docchat/internal/rag"
)

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionClient calls an OpenAI-compatible chat-completions endpoint.
type CompletionClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewCompletionClient constructs a completion client for the configured
// model. A missing API key is a configuration error raised before any
// network call.
func NewCompletionClient(settings rag.Settings, httpClient *http.Client) (*CompletionClient, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeConfig, "missing api key for completions", false))
	}
	if strings.TrimSpace(settings.BaseURL) == "" {
		return nil, errors.WithStack(rag.NewError(rag.ErrCodeConfig, "missing completions base url", false))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CompletionClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/"),
		apiKey:      strings.TrimSpace(settings.APIKey),
		model:       strings.TrimSpace(settings.CompletionModel),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		httpClient:  httpClient,
	}, nil
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

// Chat sends one chat-completion request and returns the raw completion text
// from the first choice. A response without choices is a hard failure.
func (c *CompletionClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.WithStack(rag.NewError(rag.ErrCodeInvalidArgument, "no messages provided", false))
	}

	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build completion request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "call completions endpoint")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return "", errors.WithStack(rag.NewError(rag.ErrCodeUpstream,
			upstreamErrorMessage("completions", httpResp.StatusCode, httpResp.Body), httpResp.StatusCode >= 500))
	}

	var decoded completionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "decode completion response")
	}
	if len(decoded.Choices) == 0 {
		return "", errors.WithStack(rag.NewError(rag.ErrCodeBadResponse, "completion returned no choices", true))
	}

	return decoded.Choices[0].Message.Content, nil
}

// ChatWithSystem is a convenience for single-turn chat with a system prompt.
func (c *CompletionClient) ChatWithSystem(ctx context.Context, system, user string) (string, error) {
	return c.Chat(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}
