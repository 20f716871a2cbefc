package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/utils"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// contextWarnRatio is the share of a model's context window above which
// prompts are logged as at risk of truncation.
const contextWarnRatio = 0.9

// Completer sends a single prompt as one user message and returns the text.
type Completer struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

func (c *Completer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Complete returns the trimmed completion for prompt.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if c.Runtime == nil {
		return "", errors.New("no completion runtime configured")
	}
	log := c.logger().With("model", c.Model)
	estimate := utils.CountTokens(prompt)
	if mi, ok := LookupModel(c.Model); ok && mi.ContextTokens > 0 {
		if float64(estimate+c.MaxTokens) > contextWarnRatio*float64(mi.ContextTokens) {
			log.Warn("prompt close to context window", "prompt_tokens", estimate, "max_tokens", c.MaxTokens, "context_tokens", mi.ContextTokens)
		}
	}

	start := time.Now()
	resp, err := c.Runtime.Generate(ctx, GenerateRequest{
		Model:       c.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	attrs := []any{"duration", time.Since(start), "request_id", resp.RequestID, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens}
	if cost, ok := EstimateCostUSD(c.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok && cost > 0 {
		attrs = append(attrs, "cost_usd", cost)
	}
	log.Debug("completion received", attrs...)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
