package config

import (
	"fmt"
	"strings"

	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/optimizer"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/storage"
	"github.com/Dhanuzh/betterprompt/internal/template"
	"github.com/Dhanuzh/betterprompt/internal/theme"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := provider.ParseID(c.Provider); err != nil {
		add("provider", "%v", err)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		add("temperature", "must be between 0 and 1, got %g", c.Temperature)
	}
	if _, err := optimizer.ParseStrength(c.Strength); err != nil {
		add("strength", "%v", err)
	}
	if c.Template != "" {
		if ok := isTemplateName(c.Template); !ok {
			add("template", "unknown template %q, valid: %s", c.Template, strings.Join(template.Names(), ", "))
		}
	}
	if c.Timeout <= 0 {
		add("timeout", "must be positive, got %d", c.Timeout)
	}
	if c.MaxRetries < 1 {
		add("max_retries", "must be at least 1, got %d", c.MaxRetries)
	}
	if c.RateLimit < 0 {
		add("rate_limit", "must not be negative, got %d", c.RateLimit)
	}
	if c.MultiRound.Enabled && c.MultiRound.Rounds < 1 {
		add("multi_round.rounds", "must be at least 1, got %d", c.MultiRound.Rounds)
	}
	if c.ThinkingBudget != nil && *c.ThinkingBudget < -1 {
		add("thinking_budget", "must be -1 (dynamic) or a non-negative token count, got %d", *c.ThinkingBudget)
	}
	switch c.Storage.Driver {
	case storage.DriverFile, storage.DriverSQLite, storage.DriverMemory:
	default:
		add("storage.driver", "unknown driver %q, valid: file, sqlite, memory", c.Storage.Driver)
	}
	switch c.KeyStore {
	case "", credential.VaultStorage, credential.VaultKeyring:
	default:
		add("key_store", "unknown key store %q, valid: %s, %s", c.KeyStore, credential.VaultStorage, credential.VaultKeyring)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		add("log_level", "unknown level %q", c.LogLevel)
	}
	if c.Theme != "" && c.Theme != "none" {
		if _, err := theme.Get(c.Theme); err != nil {
			add("theme", "%v, valid: %s, none", err, strings.Join(theme.Names(), ", "))
		}
	}
	for name := range c.Providers {
		if _, err := provider.ParseID(name); err != nil {
			add("provider_config."+name, "%v", err)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isTemplateName(name string) bool {
	for _, n := range template.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// GetConfigPrecedence returns documentation about config precedence
func GetConfigPrecedence() string {
	return `Configuration Precedence (highest to lowest):
1. Command-line flags (--provider, --model, --temperature, ...)
2. Environment variables (BETTERPROMPT_*, GEMINI_API_KEY, OPENAI_API_KEY, ...)
3. .env file in the working directory
4. ./betterprompt.yaml
5. ~/.config/betterprompt/betterprompt.yaml
6. Built-in defaults

API keys saved with 'betterprompt auth set' are used when no environment
variable or provider_config.<name>.api_key is set.`
}
