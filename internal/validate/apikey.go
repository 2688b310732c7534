package validate

import (
	"regexp"

	"github.com/Dhanuzh/betterprompt/internal/provider"
)

var keyPatterns = map[provider.ID]*regexp.Regexp{
	provider.Gemini:     regexp.MustCompile(`^AI[a-zA-Z0-9_-]{35,40}$`),
	provider.OpenAI:     regexp.MustCompile(`^sk-[a-zA-Z0-9]{48}$`),
	provider.Anthropic:  regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]+$`),
	provider.OpenRouter: regexp.MustCompile(`^sk-or-v1-[a-zA-Z0-9]{64}$`),
}

// APIKey reports whether key has the shape of an API key for id.
func APIKey(key string, id provider.ID) bool {
	re, ok := keyPatterns[id]
	return ok && key != "" && re.MatchString(key)
}

// AnyAPIKey reports whether key has the shape of any known provider's key.
func AnyAPIKey(key string) bool {
	_, ok := DetectProvider(key)
	return ok
}

// DetectProvider returns the first provider, in provider.IDs order, whose key
// shape matches key. If two shapes ever overlap the earlier provider wins.
func DetectProvider(key string) (provider.ID, bool) {
	if key == "" {
		return "", false
	}
	for _, id := range provider.IDs() {
		if keyPatterns[id].MatchString(key) {
			return id, true
		}
	}
	return "", false
}
