package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicAdapter speaks the Messages API. The instruction goes into the
// dedicated system field.
type AnthropicAdapter struct{}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (AnthropicAdapter) Provider() ID { return Anthropic }

func (AnthropicAdapter) BuildRequest(endpoint, apiKey string, call *Call) (*HTTPRequest, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       call.Model,
		System:      call.Instruction,
		Messages:    []anthropicMessage{{Role: "user", Content: originalPrompt(call.Text)}},
		Temperature: call.Temperature,
		MaxTokens:   MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	req := &HTTPRequest{
		URL:    strings.TrimRight(endpoint, "/") + "/messages",
		Header: make(http.Header),
		Body:   body,
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (AnthropicAdapter) ParseResponse(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Provider: Anthropic, Kind: KindTransient, Message: "malformed response body", Err: err}
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", &EmptyResultError{Provider: Anthropic}
	}
	return resp.Content[0].Text, nil
}

func (AnthropicAdapter) ErrorMessage(body []byte) string {
	return errorMessage(body)
}
