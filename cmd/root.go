package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetchat/internal/ai"
	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
	"github.com/KaramelBytes/sheetchat/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int
	// Completion target (override config if set)
	flagProvider   string
	flagModel      string
	flagOllamaHost string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:     "sheetchat",
	Short:   "SheetChat: ask questions about a spreadsheet in plain language",
	Long:    `SheetChat loads a CSV, TSV or XLSX file and answers questions about it. Answers come from an LLM either as text or as a short script that is run against the table to produce a table, a chart or a value.`,
	Version: Version,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sheetchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "completion provider: openrouter, anthropic or ollama (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagOllamaHost, "ollama-host", "", "Ollama base URL (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger = logging.New(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd()))
	slog.SetDefault(logger)

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	// Optional: auto-sync model catalog at startup
	if cfg.ModelsAutoSync && cfg.ModelsCatalogURL != "" {
		if err := syncCatalog(cfg.ModelsCatalogURL, cfg.ModelsMerge); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: models auto-sync failed: %v\n", err)
		}
	}
}

// syncCatalog downloads a JSON catalog and applies it in-memory.
func syncCatalog(url string, merge bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	m, err := ai.FetchCatalog(ctx, nil, url)
	if err != nil {
		return err
	}
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
	return nil
}
