package provider

import "net/http"

const (
	openRouterReferer = "https://github.com/Dhanuzh/betterprompt"
	openRouterTitle   = "Better Prompt"
)

// NewOpenRouterAdapter returns a chat-completions adapter that adds the
// OpenRouter attribution headers.
func NewOpenRouterAdapter() *ChatAdapter {
	h := make(http.Header)
	h.Set("HTTP-Referer", openRouterReferer)
	h.Set("X-Title", openRouterTitle)
	return &ChatAdapter{id: OpenRouter, headers: h}
}
