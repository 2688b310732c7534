package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Dhanuzh/betterprompt/internal/provider"
)

// EnvVars lists the environment variables read for each provider's key.
var EnvVars = map[provider.ID][]string{
	provider.Gemini:     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	provider.OpenAI:     {"OPENAI_API_KEY"},
	provider.Anthropic:  {"ANTHROPIC_API_KEY"},
	provider.OpenRouter: {"OPENROUTER_API_KEY"},
}

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadHiddenInput reads input without echoing it (for passwords/keys)
func ReadHiddenInput(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(bytes)), nil
}
