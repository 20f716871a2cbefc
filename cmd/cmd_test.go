package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/ai"
	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

type stubCompleter string

func (s stubCompleter) Complete(context.Context, string) (string, error) { return string(s), nil }

type scriptedReader struct {
	lines []string
	read  int
}

func (r *scriptedReader) Readline() (string, error) {
	if r.read >= len(r.lines) {
		return "", io.EOF
	}
	line := r.lines[r.read]
	r.read++
	return line, nil
}

func TestNormalizeProvider(t *testing.T) {
	cases := map[string]string{
		"":          ai.ProviderOpenRouter,
		"OpenAI":    ai.ProviderOpenRouter,
		" local ":   ai.ProviderOllama,
		"Claude":    ai.ProviderAnthropic,
		"anthropic": ai.ProviderAnthropic,
		"bedrock":   "bedrock",
	}
	for in, want := range cases {
		if got := normalizeProvider(in); got != want {
			t.Fatalf("normalizeProvider(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model"}
	if got := selectModel(cfg, ai.ProviderOpenRouter, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, ai.ProviderOpenRouter, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	cfg.DefaultModel = ""
	if got := selectModel(cfg, ai.ProviderAnthropic, ""); got != ai.DefaultAnthropicModel {
		t.Fatalf("expected provider default, got %q", got)
	}
}

func TestBuildRuntimeProviders(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "ollama", APIKey: "sk-or", AnthropicAPIKey: "sk-ant"}

	rt, name, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil || name != ai.ProviderOllama {
		t.Fatalf("expected ollama runtime, got %q err=%v", name, err)
	}
	if _, ok := rt.(*ai.OllamaClient); !ok {
		t.Fatalf("expected *ai.OllamaClient, got %T", rt)
	}

	rt, name, err = buildRuntime(cfg, runtimeOptions{ProviderFlag: "anthropic"})
	if err != nil || name != ai.ProviderAnthropic {
		t.Fatalf("expected anthropic runtime, got %q err=%v", name, err)
	}
	if _, ok := rt.(*ai.AnthropicClient); !ok {
		t.Fatalf("expected *ai.AnthropicClient, got %T", rt)
	}

	rt, _, err = buildRuntime(cfg, runtimeOptions{ProviderFlag: "openrouter"})
	if err != nil {
		t.Fatalf("openrouter: %v", err)
	}
	if _, ok := rt.(*ai.Client); !ok {
		t.Fatalf("expected *ai.Client, got %T", rt)
	}

	if _, _, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: "bedrock"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}
	if err := setConfigValue(c, "default_provider", "Local"); err != nil || c.DefaultProvider != "ollama" {
		t.Fatalf("default_provider: %v %q", err, c.DefaultProvider)
	}
	if err := setConfigValue(c, "allowed_origins", "http://a.test, http://b.test,"); err != nil {
		t.Fatal(err)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", c.AllowedOrigins)
	}
	if err := setConfigValue(c, "exec_timeout_ms", "2500"); err != nil || c.ExecTimeoutMs != 2500 {
		t.Fatalf("exec_timeout_ms: %v %d", err, c.ExecTimeoutMs)
	}
	if err := setConfigValue(c, "models_auto_sync", "true"); err != nil || !c.ModelsAutoSync {
		t.Fatalf("models_auto_sync: %v", err)
	}
	for _, kv := range [][2]string{{"default_provider", "bedrock"}, {"max_tokens", "many"}, {"session_ttl_min", "-1"}, {"nope", "x"}} {
		if err := setConfigValue(c, kv[0], kv[1]); err == nil {
			t.Fatalf("expected error for %s=%s", kv[0], kv[1])
		}
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" || mask("abc") != "******" || mask("sk-or-123456") != "sk-****456" {
		t.Fatalf("unexpected masks: %q %q %q", mask(""), mask("abc"), mask("sk-or-123456"))
	}
}

func TestTurnTimeout(t *testing.T) {
	c := &cfgpkg.Global{HTTPTimeoutSec: 30, RetryMaxAttempts: 2, ExecTimeoutMs: 1000}
	if got := turnTimeout(c); got != 61*time.Second {
		t.Fatalf("turnTimeout = %v", got)
	}
	if got := execTimeout(&cfgpkg.Global{}); got != sandbox.DefaultTimeout {
		t.Fatalf("execTimeout default = %v", got)
	}
}

func TestREPL(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(data, []byte("region,sales\nnorth,10\nsouth,4\nnorth,6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sess := session.New(stubCompleter("```js\nresult = df.head(2)\n```"), sandbox.New(2*time.Second, nil))
	if err := sess.LoadFile(data, ingest.Options{}); err != nil {
		t.Fatalf("load: %v", err)
	}

	exportPath := filepath.Join(dir, "out", "top.csv")
	in := &scriptedReader{lines: []string{
		"/examples",
		"/example 1",
		"",
		"first two rows",
		"/history",
		"/export " + exportPath,
		"/bogus",
		"/quit",
		"never read",
	}}
	var out bytes.Buffer
	r := &repl{sess: sess, out: &out, exportDir: dir}
	if err := r.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"✓ Loaded sales.csv",
		"1. " + session.DefaultExamples[0],
		"> " + session.DefaultExamples[0],
		"Here is the tabular data you requested.",
		"user: first two rows",
		"✓ Saved " + exportPath,
		"Unknown command: /bogus",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if in.read != len(in.lines)-1 {
		t.Fatalf("expected /quit to stop reading, read %d lines", in.read)
	}
	b, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(b) != "region,sales\nnorth,10\nsouth,4\n" {
		t.Fatalf("unexpected export %q", b)
	}
}

func TestREPLReportsRefusals(t *testing.T) {
	sess := session.New(stubCompleter("ok"), sandbox.New(time.Second, nil))
	in := &scriptedReader{lines: []string{"hello", "/export", "/example 9", "/schema"}}
	var out bytes.Buffer
	r := &repl{sess: sess, out: &out, exportDir: t.TempDir()}
	if err := r.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	for _, want := range []string{session.ErrNoDataset.Error(), session.ErrNoTable.Error(), session.ErrUnknownExample.Error()} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWriteSchema(t *testing.T) {
	df, err := ingest.Read(strings.NewReader("name,age\nAda,36\nBob,\n"), "people.csv", ingest.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := writeSchema(&out, "people.csv", df); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "people.csv: 2 rows, 2 columns") || !strings.Contains(got, "Ada, Bob") {
		t.Fatalf("unexpected schema output:\n%s", got)
	}
}
