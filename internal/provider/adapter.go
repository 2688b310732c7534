package provider

import "fmt"

// MaxOutputTokens is the completion budget sent to providers that require one.
const MaxOutputTokens = 4000

// Call is the provider-neutral input of one optimize request.
type Call struct {
	// Instruction is the composed rewriting instruction.
	Instruction string
	// Text is the user's original prompt.
	Text        string
	Model       string
	Temperature float64
	// ThinkingBudget is only honored by gemini models that support it.
	ThinkingBudget *int
}

// Adapter translates a Call into one provider's wire format and back.
// BuildRequest and ParseResponse do no I/O.
type Adapter interface {
	Provider() ID
	BuildRequest(endpoint, apiKey string, call *Call) (*HTTPRequest, error)
	// ParseResponse extracts the generated text from a 2xx body.
	ParseResponse(body []byte) (string, error)
	// ErrorMessage extracts the provider's message from an error body. It
	// returns "" when the body carries none.
	ErrorMessage(body []byte) string
}

// NewAdapter returns the adapter for id.
func NewAdapter(id ID) (Adapter, error) {
	switch id {
	case Gemini:
		return &GeminiAdapter{}, nil
	case OpenAI:
		return NewOpenAIAdapter(), nil
	case Anthropic:
		return &AnthropicAdapter{}, nil
	case OpenRouter:
		return NewOpenRouterAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

// Adapters returns one adapter per known provider.
func Adapters() map[ID]Adapter {
	out := make(map[ID]Adapter, len(IDs()))
	for _, id := range IDs() {
		a, _ := NewAdapter(id)
		out[id] = a
	}
	return out
}

// originalPrompt is the user turn shared by the chat-style adapters.
func originalPrompt(text string) string {
	return "Original prompt: " + text
}
