package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/infra/httpclient"
)

const openAIBaseURL = "https://api.openai.com/v1"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// OpenAIChat calls the OpenAI chat completions endpoint. A shared rate
// limiter keeps the auxiliary-tier calls under the account limit.
type OpenAIChat struct {
	BaseURL string
	APIKey  string
	ModelID string
	Client  *http.Client
	Limiter *rate.Limiter
}

func NewOpenAIChat(apiKey, model string, rps float64, burst int) *OpenAIChat {
	return &OpenAIChat{
		BaseURL: openAIBaseURL,
		APIKey:  apiKey,
		ModelID: model,
		Client:  httpclient.NewPooledClient(120 * time.Second),
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *OpenAIChat) Model() string {
	return c.ModelID
}

// Complete sends a single-turn prompt and returns the assistant message
// plus usage counts.
func (c *OpenAIChat) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: err}
	}

	reqBody := openAIChatRequest{
		Model:       c.ModelID,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Provider: "openai",
			Err:      fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200)),
		}
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: fmt.Errorf("failed to decode chat response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: "openai", Err: fmt.Errorf("chat response had no choices")}
	}

	choice := chatResp.Choices[0]
	return &domain.ChatResult{
		Text:         strings.TrimSpace(choice.Message.Content),
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
		Truncated:    choice.FinishReason == "length",
	}, nil
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	BaseURL string
	APIKey  string
	ModelID string
	Dims    int
	Client  *http.Client
	Limiter *rate.Limiter
}

func NewOpenAIEmbedder(apiKey, model string, dims int, rps float64, burst int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		BaseURL: openAIBaseURL,
		APIKey:  apiKey,
		ModelID: model,
		Dims:    dims,
		Client:  httpclient.NewPooledClient(30 * time.Second),
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.Dims
}

// Embed returns the vector for one text. Identical text always maps to the
// same vector for a given model.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (*domain.EmbedResult, error) {
	if err := e.Limiter.Wait(ctx); err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: err}
	}

	jsonPayload, err := json.Marshal(openAIEmbedRequest{Model: e.ModelID, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", strings.TrimRight(e.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Provider: "openai",
			Err:      fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200)),
		}
	}

	var embedResp openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, &domain.ProviderError{Provider: "openai", Err: fmt.Errorf("failed to decode embed response: %w", err)}
	}
	if len(embedResp.Data) == 0 {
		return nil, &domain.ProviderError{Provider: "openai", Err: fmt.Errorf("embed response had no data")}
	}
	if got := len(embedResp.Data[0].Embedding); got != e.Dims {
		return nil, &domain.ProviderError{
			Provider: "openai",
			Err:      fmt.Errorf("embedding dimension mismatch: got %d, want %d", got, e.Dims),
		}
	}

	return &domain.EmbedResult{
		Vector: embedResp.Data[0].Embedding,
		Tokens: embedResp.Usage.PromptTokens,
	}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var (
	_ domain.ChatModel = (*OpenAIChat)(nil)
	_ domain.Embedder  = (*OpenAIEmbedder)(nil)
)
