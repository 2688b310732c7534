package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatAdapter speaks the OpenAI chat-completions API, which OpenRouter also
// implements. The instruction is sent as a separate system message.
type ChatAdapter struct {
	id ID
	// extra headers added to every request
	headers http.Header
}

// NewOpenAIAdapter returns the adapter for api.openai.com.
func NewOpenAIAdapter() *ChatAdapter {
	return &ChatAdapter{id: OpenAI}
}

func (a *ChatAdapter) Provider() ID { return a.id }

func (a *ChatAdapter) BuildRequest(endpoint, apiKey string, call *Call) (*HTTPRequest, error) {
	temperature := float32(call.Temperature)
	if temperature == 0 {
		// the client library drops a zero temperature from the payload
		temperature = math.SmallestNonzeroFloat32
	}
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model: call.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: call.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: originalPrompt(call.Text)},
		},
		Temperature: temperature,
		MaxTokens:   MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", a.id, err)
	}

	req := &HTTPRequest{
		URL:    strings.TrimRight(endpoint, "/") + "/chat/completions",
		Header: a.headers.Clone(),
		Body:   body,
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

func (a *ChatAdapter) ParseResponse(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Provider: a.id, Kind: KindTransient, Message: "malformed response body", Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &EmptyResultError{Provider: a.id}
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *ChatAdapter) ErrorMessage(body []byte) string {
	var e openai.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Message
}
