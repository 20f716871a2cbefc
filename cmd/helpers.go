package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/ai"
	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// normalizeProvider maps provider aliases onto registered runtime names.
func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openrouter", "openai", "google", "gemini", "meta", "llama":
		return ai.ProviderOpenRouter
	case "ollama", "local":
		return ai.ProviderOllama
	case "anthropic", "claude":
		return ai.ProviderAnthropic
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := opts.ProviderFlag
	if strings.TrimSpace(providerName) == "" && cfg != nil {
		providerName = cfg.DefaultProvider
	}
	providerName = normalizeProvider(providerName)

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	switch providerName {
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
	case ai.ProviderAnthropic:
		if cfg != nil {
			rc.APIKey = cfg.AnthropicAPIKey
		}
	default:
		if cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel(provider)
}

// newCompleter wires the configured runtime and model into a Completer.
func newCompleter(cfg *cfgpkg.Global) (*ai.Completer, error) {
	rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: flagProvider, OllamaHost: flagOllamaHost})
	if err != nil {
		return nil, err
	}
	c := &ai.Completer{
		Runtime: rt,
		Model:   selectModel(cfg, provider, flagModel),
		Logger:  logger.With("provider", provider),
	}
	if cfg != nil {
		c.MaxTokens = cfg.MaxTokens
		c.Temperature = cfg.Temperature
	}
	return c, nil
}

func execTimeout(cfg *cfgpkg.Global) time.Duration {
	if cfg != nil && cfg.ExecTimeoutMs > 0 {
		return time.Duration(cfg.ExecTimeoutMs) * time.Millisecond
	}
	return sandbox.DefaultTimeout
}

// newChatSession builds a session backed by the configured completion
// provider and a sandboxed executor.
func newChatSession(cfg *cfgpkg.Global, opts ...session.Option) (*session.Session, error) {
	c, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}
	ex := sandbox.New(execTimeout(cfg), logger)
	return session.New(c, ex, append([]session.Option{session.WithLogger(logger)}, opts...)...), nil
}

// printTurn writes the assistant reply and its display for a terminal.
func printTurn(w io.Writer, res *session.TurnResult) error {
	switch res.Action.Kind {
	case render.ShowTable, render.RenderChart:
		fmt.Fprintln(w, res.Reply)
	}
	return render.Present(w, res.Action)
}

func ingestOptions(sheet string, sheetIndex int) ingest.Options {
	return ingest.Options{Sheet: sheet, SheetIndex: sheetIndex}
}
