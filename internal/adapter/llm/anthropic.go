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

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// AnthropicChat calls the Anthropic messages endpoint. There is no native
// JSON response mode; callers relying on JSON output shape the prompt and
// parse defensively.
type AnthropicChat struct {
	BaseURL string
	APIKey  string
	ModelID string
	Client  *http.Client
	Limiter *rate.Limiter
}

func NewAnthropicChat(apiKey, model string, rps float64, burst int) *AnthropicChat {
	return &AnthropicChat{
		BaseURL: anthropicBaseURL,
		APIKey:  apiKey,
		ModelID: model,
		Client:  httpclient.NewPooledClient(120 * time.Second),
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *AnthropicChat) Model() string {
	return c.ModelID
}

func (c *AnthropicChat) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, &domain.ProviderError{Provider: "anthropic", Err: err}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	jsonPayload, err := json.Marshal(anthropicRequest{
		Model:       c.ModelID,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages request: %w", err)
	}

	url := fmt.Sprintf("%s/messages", strings.TrimRight(c.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "anthropic", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{
			Provider: "anthropic",
			Err:      fmt.Errorf("messages endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200)),
		}
	}

	var msgResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, &domain.ProviderError{Provider: "anthropic", Err: fmt.Errorf("failed to decode messages response: %w", err)}
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &domain.ChatResult{
		Text:         strings.TrimSpace(text.String()),
		InputTokens:  msgResp.Usage.InputTokens,
		OutputTokens: msgResp.Usage.OutputTokens,
		Truncated:    msgResp.StopReason == "max_tokens",
	}, nil
}

var _ domain.ChatModel = (*AnthropicChat)(nil)
