package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SheetChat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		showConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func showConfig(w io.Writer, c *cfgpkg.Global) {
	fmt.Fprintf(w, "api_key: %s\n", mask(c.APIKey))
	fmt.Fprintf(w, "anthropic_api_key: %s\n", mask(c.AnthropicAPIKey))
	fmt.Fprintf(w, "default_provider: %s\n", c.DefaultProvider)
	fmt.Fprintf(w, "default_model: %s\n", c.DefaultModel)
	fmt.Fprintf(w, "max_tokens: %d\n", c.MaxTokens)
	fmt.Fprintf(w, "temperature: %.3f\n", c.Temperature)
	if c.ModelsCatalogURL != "" {
		fmt.Fprintf(w, "models_catalog_url: %s\n", c.ModelsCatalogURL)
		fmt.Fprintf(w, "models_auto_sync: %t\n", c.ModelsAutoSync)
	}
	fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
	fmt.Fprintf(w, "exec_timeout_ms: %d\n", c.ExecTimeoutMs)
	fmt.Fprintf(w, "server_addr: %s\n", c.ServerAddr)
	fmt.Fprintf(w, "session_ttl_min: %d\n", c.SessionTTLMin)
	fmt.Fprintf(w, "allowed_origins: %s\n", strings.Join(c.AllowedOrigins, ","))
	fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "export_dir: %s\n", c.ExportDir)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "anthropic_api_key":
		c.AnthropicAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := normalizeProvider(val)
		switch p {
		case "openrouter", "anthropic", "ollama":
			c.DefaultProvider = p
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, anthropic or ollama)", val)
		}
	case "max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_tokens: %w", err)
		}
		c.MaxTokens = i
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "models_catalog_url":
		c.ModelsCatalogURL = val
	case "models_auto_sync", "models_merge":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %w", key, err)
		}
		if key == "models_auto_sync" {
			c.ModelsAutoSync = b
		} else {
			c.ModelsMerge = b
		}
	case "ollama_host":
		c.OllamaHost = val
	case "exec_timeout_ms", "session_ttl_min", "http_timeout_sec", "retry_max_attempts":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "exec_timeout_ms":
			c.ExecTimeoutMs = i
		case "session_ttl_min":
			c.SessionTTLMin = i
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		default:
			c.RetryMaxAttempts = i
		}
	case "server_addr":
		c.ServerAddr = val
	case "allowed_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	case "log_level":
		c.LogLevel = val
	case "export_dir":
		c.ExportDir = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
