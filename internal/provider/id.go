package provider

import (
	"fmt"
	"strings"
)

// ID identifies one of the supported LLM providers.
type ID string

const (
	Gemini     ID = "gemini"
	OpenAI     ID = "openai"
	Anthropic  ID = "anthropic"
	OpenRouter ID = "openrouter"
)

// IDs returns every provider in declaration order. Listings and key detection
// follow this order.
func IDs() []ID {
	return []ID{Gemini, OpenAI, Anthropic, OpenRouter}
}

// Valid reports whether id is one of the known providers.
func (id ID) Valid() bool {
	switch id {
	case Gemini, OpenAI, Anthropic, OpenRouter:
		return true
	}
	return false
}

func (id ID) String() string { return string(id) }

// ParseID converts a user-supplied name into an ID.
// "google" is accepted as an alias for gemini.
func ParseID(name string) (ID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "google" {
		return Gemini, nil
	}
	id := ID(n)
	if !id.Valid() {
		names := make([]string, 0, 4)
		for _, known := range IDs() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("unknown provider %q, valid: %s", name, strings.Join(names, ", "))
	}
	return id, nil
}
