package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicMaxTokens is used when a request leaves MaxTokens unset;
// the Messages API requires a value.
const DefaultAnthropicMaxTokens = 1024

// AnthropicClient runs completions through the official Anthropic SDK.
type AnthropicClient struct {
	client anthropic.Client
	hasKey bool
}

// NewAnthropicClient builds a client. An empty baseURL uses the SDK default.
// Retries are left to the SDK.
func NewAnthropicClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(httpTimeout))
	}
	if retryMax > 0 {
		// the SDK counts retries, not attempts
		opts = append(opts, option.WithMaxRetries(retryMax-1))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), hasKey: apiKey != ""}
}

// Generate maps the shared request onto the Messages API. System messages are
// concatenated into the system prompt.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if !c.hasKey {
		return nil, &AuthError{APIError: &APIError{StatusCode: http.StatusUnauthorized, Message: "Anthropic API key is missing"}}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultAnthropicMaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Type: "text", Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        msg.ID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: msg.ID,
	}, nil
}

// mapAnthropicError converts SDK status errors into this package's error family.
func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("anthropic request: %w", err)
	}
	e := &APIError{
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Error(),
		RequestID:  extractRequestID(apiErr.Response),
	}
	// Anthropic reports overload as 529
	if apiErr.StatusCode == 529 {
		return &ServerError{APIError: e}
	}
	return classifyAPIError(e, apiErr.Response)
}
