package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
)

// ModelInfo carries the context window and pricing used for prompt-size
// warnings and cost estimates. Prices are illustrative.
type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

// Default models per provider.
const (
	DefaultOpenRouterModel = "google/gemini-1.5-flash"
	DefaultAnthropicModel  = "claude-3-5-haiku-latest"
	DefaultOllamaModel     = "llama3.1:8b-instruct"
)

var presets = map[string]map[string]ModelInfo{
	ProviderOpenRouter: {
		"google/gemini-1.5-flash":     {Name: "google/gemini-1.5-flash", ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008},
		"google/gemini-1.5-pro":       {Name: "google/gemini-1.5-pro", ContextTokens: 1000000, InputPerK: 0.00125, OutputPerK: 0.005},
		"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.0006, OutputPerK: 0.0024},
		"openai/gpt-4o":               {Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015},
		"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"deepseek/deepseek-r1:free":   {Name: "deepseek/deepseek-r1:free", ContextTokens: 128000},
	},
	ProviderAnthropic: {
		"claude-3-5-haiku-latest":  {Name: "claude-3-5-haiku-latest", ContextTokens: 200000, InputPerK: 0.0008, OutputPerK: 0.004},
		"claude-3-7-sonnet-latest": {Name: "claude-3-7-sonnet-latest", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"claude-sonnet-4-0":        {Name: "claude-sonnet-4-0", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
	},
	ProviderOllama: {
		"llama3.1:8b-instruct":    {Name: "llama3.1:8b-instruct", ContextTokens: 8192},
		"llama3:latest":           {Name: "llama3:latest", ContextTokens: 8192},
		"mistral-nemo:latest":     {Name: "mistral-nemo:latest", ContextTokens: 8192},
		"phi3:mini-128k-instruct": {Name: "phi3:mini-128k-instruct", ContextTokens: 128000},
	},
}

var (
	catalogMu sync.RWMutex
	models    = defaultCatalog()
)

func defaultCatalog() map[string]ModelInfo {
	out := map[string]ModelInfo{}
	for _, p := range presets {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// DefaultModel returns the model used when none is configured for provider.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOllama:
		return DefaultOllamaModel
	default:
		return DefaultOpenRouterModel
	}
}

// PresetCatalog returns a copy of the built-in catalog for a provider.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	p, ok := presets[provider]
	if !ok {
		return nil, false
	}
	out := make(map[string]ModelInfo, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, true
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "openai/gpt-4o-mini": {"Name":"openai/gpt-4o-mini","ContextTokens":128000,"InputPerK":0.0006,"OutputPerK":0.0024} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeCatalog(f)
}

// FetchCatalog downloads a catalog in the same JSON shape.
func FetchCatalog(ctx context.Context, client *http.Client, url string) (map[string]ModelInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	return decodeCatalog(resp.Body)
}

func decodeCatalog(r io.Reader) (map[string]ModelInfo, error) {
	var m map[string]ModelInfo
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	models = make(map[string]ModelInfo, len(m))
	for k, v := range m {
		models[k] = v
	}
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
