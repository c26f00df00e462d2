package domain

import "context"

// ChatRequest is a single prompt sent to a chat model. Temperature is fixed
// per call-site; JSONMode asks the provider for a valid-JSON-only response
// where supported.
type ChatRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// ChatResult carries the model output plus the usage counts needed for cost
// accounting. Truncated is set when the provider stopped at the token limit.
type ChatResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Truncated    bool
}

// ChatModel is a black-box text-in/text-out capability provider.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
	Model() string
}

// EmbedResult is a fixed-dimension vector plus the token count charged for it.
type EmbedResult struct {
	Vector []float32
	Tokens int
}

// Embedder turns text into a fixed-dimension vector. Deterministic for
// identical text and model configuration.
type Embedder interface {
	Embed(ctx context.Context, text string) (*EmbedResult, error)
	Dimensions() int
}
