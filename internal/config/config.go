package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/storage"
)

const (
	// EnvConfig points at an explicit config file.
	EnvConfig = "BETTERPROMPT_CONFIG"
	// EnvConfigDir overrides the config directory.
	EnvConfigDir = "BETTERPROMPT_CONFIG_DIR"

	configName = "betterprompt"
)

// Config holds all configuration for betterprompt.
type Config struct {
	// --- Request defaults ---
	Provider       string  `mapstructure:"provider" json:"provider"`
	Model          string  `mapstructure:"model" json:"model,omitempty"`
	Temperature    float64 `mapstructure:"temperature" json:"temperature"`
	Strength       string  `mapstructure:"strength" json:"strength"`
	Template       string  `mapstructure:"template" json:"template,omitempty"`
	ThinkingBudget *int    `mapstructure:"thinking_budget" json:"thinking_budget,omitempty"`

	MultiRound MultiRoundConfig `mapstructure:"multi_round" json:"multi_round"`

	// --- Error handling ---
	Timeout    int `mapstructure:"timeout" json:"timeout"` // seconds per attempt
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`
	RateLimit  int `mapstructure:"rate_limit" json:"rate_limit,omitempty"` // requests per minute, 0 = off

	// --- API keys from the environment ---
	GeminiAPIKey     string `mapstructure:"gemini_api_key" json:"-"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key" json:"-"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key" json:"-"`
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key" json:"-"`

	// --- Provider overrides ---
	Providers map[string]ProviderOverride `mapstructure:"provider_config" json:"provider_config,omitempty"`

	Storage  StorageConfig `mapstructure:"storage" json:"storage"`
	KeyStore string        `mapstructure:"key_store" json:"key_store,omitempty"` // storage or keyring
	LogLevel string        `mapstructure:"log_level" json:"log_level"`
	Theme    string        `mapstructure:"theme" json:"theme,omitempty"` // dark, light or none
}

// MultiRoundConfig enables iterative refinement requests.
type MultiRoundConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Rounds  int    `mapstructure:"rounds" json:"rounds"`
	Depth   string `mapstructure:"depth" json:"depth"`
}

// ProviderOverride replaces a provider's endpoint or API key.
type ProviderOverride struct {
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	APIKey  string `mapstructure:"api_key" json:"api_key,omitempty"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	Path   string `mapstructure:"path" json:"path,omitempty"`
}

// Load reads configuration from defaults, config files, a .env file and the
// environment, in increasing order of precedence. path, when set, replaces
// the config file search.
func Load(path string) (*Config, error) {
	// a missing .env is not an error
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("provider", string(provider.Gemini))
	v.SetDefault("model", "")
	v.SetDefault("temperature", 0.5)
	v.SetDefault("strength", "medium")
	v.SetDefault("template", "")
	v.SetDefault("timeout", 30)
	v.SetDefault("max_retries", 3)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("multi_round.enabled", false)
	v.SetDefault("multi_round.rounds", 3)
	v.SetDefault("multi_round.depth", "moderate")
	v.SetDefault("storage.driver", storage.DriverFile)
	v.SetDefault("storage.path", "")
	v.SetDefault("key_store", "storage")
	v.SetDefault("log_level", "warn")
	v.SetDefault("theme", "dark")

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BETTERPROMPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openrouter_api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("thinking_budget")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config loaded", "path", used)
	}

	if config.Storage.Path == "" {
		config.Storage.Path = DefaultStoragePath(config.Storage.Driver)
	}
	return &config, nil
}

// GetConfigDir returns the directory holding the config file and the store.
func GetConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".betterprompt"
	}
	return filepath.Join(home, ".config", "betterprompt")
}

// DefaultConfigPath is where SaveConfig writes when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), configName+".yaml")
}

// DefaultStoragePath returns the store location for a driver.
func DefaultStoragePath(driver string) string {
	if driver == storage.DriverSQLite {
		return filepath.Join(GetConfigDir(), "store.db")
	}
	return filepath.Join(GetConfigDir(), "store.json")
}

// APIKey returns the configured key for id: the provider_config override
// first, then the environment.
func (c *Config) APIKey(id provider.ID) string {
	if o, ok := c.Providers[string(id)]; ok && o.APIKey != "" {
		return o.APIKey
	}
	switch id {
	case provider.Gemini:
		return c.GeminiAPIKey
	case provider.OpenAI:
		return c.OpenAIAPIKey
	case provider.Anthropic:
		return c.AnthropicAPIKey
	case provider.OpenRouter:
		return c.OpenRouterAPIKey
	}
	return ""
}

// BaseURL returns the endpoint override for id, or "".
func (c *Config) BaseURL(id provider.ID) string {
	return c.Providers[string(id)].BaseURL
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values mean warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// SaveConfig saves the configuration to a file.
// The file may later hold API keys, so it is only readable by the owner.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
