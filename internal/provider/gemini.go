package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// thinkingModels lists the gemini models that accept a thinking budget.
var thinkingModels = map[string]bool{
	"gemini-2.5-flash-preview-05-20": true,
}

// SupportsThinkingBudget reports whether a gemini model accepts a thinking budget.
func SupportsThinkingBudget(model string) bool {
	return thinkingModels[model]
}

// GeminiAdapter speaks the generateContent API. The key travels as a URL
// query parameter and the instruction is folded into the single user turn.
type GeminiAdapter struct{}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiGenerationConfig struct {
	Temperature    float64               `json:"temperature"`
	ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (GeminiAdapter) Provider() ID { return Gemini }

// GeminiPrompt builds the single text block sent to gemini.
func GeminiPrompt(instruction, text string) string {
	return fmt.Sprintf("%s\n\nOriginal prompt:\n\"\"\"\n%s\n\"\"\"\n\nOptimized prompt:", instruction, text)
}

func (a GeminiAdapter) BuildRequest(endpoint, apiKey string, call *Call) (*HTTPRequest, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: GeminiPrompt(call.Instruction, call.Text)}},
		}},
		GenerationConfig: geminiGenerationConfig{Temperature: call.Temperature},
	}
	if call.ThinkingBudget != nil && SupportsThinkingBudget(call.Model) {
		payload.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{ThinkingBudget: *call.ThinkingBudget}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(call.Model), url.QueryEscape(apiKey))
	return &HTTPRequest{URL: u, Body: body}, nil
}

func (a GeminiAdapter) ParseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Provider: Gemini, Kind: KindTransient, Message: "malformed response body", Err: err}
	}
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		if text := resp.Candidates[0].Content.Parts[0].Text; text != "" {
			return text, nil
		}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &ContentBlockedError{Provider: Gemini, Reason: resp.PromptFeedback.BlockReason}
	}
	return "", &EmptyResultError{Provider: Gemini}
}

func (GeminiAdapter) ErrorMessage(body []byte) string {
	return errorMessage(body)
}

// errorMessage reads the {"error":{"message":...}} shape shared by gemini
// and anthropic.
func errorMessage(body []byte) string {
	var e apiErrorBody
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Message
}
