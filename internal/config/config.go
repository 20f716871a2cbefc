package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SHEETCHAT_API_KEY.
const EnvPrefix = "SHEETCHAT"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Models catalog auto-sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url"`
	ModelsAutoSync   bool   `mapstructure:"models_auto_sync" yaml:"models_auto_sync"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Snippet execution
	ExecTimeoutMs int `mapstructure:"exec_timeout_ms" yaml:"exec_timeout_ms"`

	// HTTP server
	ServerAddr     string   `mapstructure:"server_addr" yaml:"server_addr"`
	SessionTTLMin  int      `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// Dir returns ~/.sheetchat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sheetchat"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sheetchat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults. A .env file in the
// working directory is read first and never overrides variables already set.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// provider-native variables as a fallback
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.AnthropicAPIKey == "" {
		c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("default_model", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("models_catalog_url", "")
	v.SetDefault("models_auto_sync", false)
	v.SetDefault("models_merge", true)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("exec_timeout_ms", 10000)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("session_ttl_min", 30)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("export_dir", ".")
}
