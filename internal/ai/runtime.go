package ai

import "context"

// Runtime is a minimal interface implemented by completion backends
// such as OpenRouter, Anthropic and local runtimes (e.g., Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// RuntimeFunc adapts a plain function to Runtime.
type RuntimeFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

func (f RuntimeFunc) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return f(ctx, req)
}
