package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

var (
	testOpenAIKey     = "sk-" + strings.Repeat("t", 48)
	testOpenRouterKey = "sk-or-v1-" + strings.Repeat("r", 64)
)

// chatServer answers OpenAI-style chat completions with reply and records the
// last request body.
type chatServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
}

func newChatServer(t *testing.T, reply string) *chatServer {
	t.Helper()
	s := &chatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		s.lastBody.Store(string(body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(s.Close)
	return s
}

// setupEnv isolates the config directory and the key environment variables,
// and writes body as the config file.
func setupEnv(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	t.Setenv(config.EnvConfig, "")
	for _, vars := range config.EnvVars {
		for _, v := range vars {
			t.Setenv(v, "")
		}
	}
	if body != "" {
		if err := os.WriteFile(filepath.Join(dir, "betterprompt.yaml"), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func openAIConfig(url string) string {
	return openAIConfigWithKey(url, testOpenAIKey)
}

func openAIConfigWithKey(url, key string) string {
	return fmt.Sprintf(`provider: openai
provider_config:
  openai:
    base_url: %s
    api_key: %s
`, url, key)
}

func TestOptimizeRecordsHistory(t *testing.T) {
	srv := newChatServer(t, "Improved prompt")
	setupEnv(t, openAIConfig(srv.URL))

	out, err := execute(t, "", "optimize", "write", "a", "poem")
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if strings.TrimSpace(out) != "Improved prompt" {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(srv.lastBody.Load().(string), "Original prompt: write a poem") {
		t.Errorf("request body = %s", srv.lastBody.Load())
	}

	out, err = execute(t, "", "history", "export", "--format", "json")
	if err != nil {
		t.Fatalf("history export: %v", err)
	}
	var doc struct {
		History []struct {
			Original  string `json:"original"`
			Optimized string `json:"optimized"`
			Provider  string `json:"provider"`
		} `json:"history"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("export is not JSON: %v\n%s", err, out)
	}
	if len(doc.History) != 1 {
		t.Fatalf("history has %d entries, want 1", len(doc.History))
	}
	got := doc.History[0]
	if got.Original != "write a poem" || got.Optimized != "Improved prompt" || got.Provider != "openai" {
		t.Errorf("entry = %+v", got)
	}
}

func TestOptimizeReadsStdin(t *testing.T) {
	srv := newChatServer(t, "ok")
	setupEnv(t, openAIConfig(srv.URL))

	if _, err := execute(t, "piped prompt\n", "optimize", "--no-history"); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !strings.Contains(srv.lastBody.Load().(string), "Original prompt: piped prompt") {
		t.Errorf("request body = %s", srv.lastBody.Load())
	}

	out, err := execute(t, "", "history", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No history entries") {
		t.Errorf("--no-history still recorded: %s", out)
	}
}

func TestOptimizeMissingKey(t *testing.T) {
	srv := newChatServer(t, "ok")
	setupEnv(t, "provider: anthropic\n")

	_, err := execute(t, "", "optimize", "hello")
	var missing *provider.MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingCredentialError", err)
	}
	if srv.calls.Load() != 0 {
		t.Error("no request should be sent without a key")
	}
	if fe := makeFriendly(err); fe.Title != "API Key Missing" || !strings.Contains(fe.Suggestion, "ANTHROPIC_API_KEY") {
		t.Errorf("friendly = %+v", fe)
	}
}

func TestOptimizeIgnoresMalformedConfigKey(t *testing.T) {
	srv := newChatServer(t, "ok")
	setupEnv(t, openAIConfigWithKey(srv.URL, "bad-key"))

	_, err := execute(t, "", "optimize", "hello")
	var missing *provider.MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingCredentialError", err)
	}
	if srv.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", srv.calls.Load())
	}
}

func TestOptimizeRejectsLongPrompt(t *testing.T) {
	srv := newChatServer(t, "ok")
	setupEnv(t, openAIConfig(srv.URL))

	_, err := execute(t, strings.Repeat("a", validate.MaxPromptLength+1), "optimize", "-")
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if srv.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", srv.calls.Load())
	}
}

func TestCompare(t *testing.T) {
	srv := newChatServer(t, "same answer")
	setupEnv(t, fmt.Sprintf(`provider: openai
provider_config:
  openai:
    base_url: %[1]s
    api_key: %[2]s
  openrouter:
    base_url: %[1]s
    api_key: %[3]s
`, srv.URL, testOpenAIKey, testOpenRouterKey))

	out, err := execute(t, "", "compare", "--providers", "openai,openrouter", "summarize this")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if srv.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", srv.calls.Load())
	}
	for _, want := range []string{"openai", "openrouter", "same answer"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAuthSetPersists(t *testing.T) {
	setupEnv(t, "")
	key := "sk-" + strings.Repeat("a", 48)

	if _, err := execute(t, "", "auth", "set", "openai", key); err != nil {
		t.Fatalf("auth set: %v", err)
	}
	out, err := execute(t, "", "auth", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sk-a...aaaa") || !strings.Contains(out, "stored") {
		t.Errorf("auth list:\n%s", out)
	}

	_, err = execute(t, "", "auth", "set", "openai", "bad-key")
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("malformed key: err = %v, want ValidationError", err)
	}

	if _, err := execute(t, "", "auth", "remove", "openai"); err != nil {
		t.Fatal(err)
	}
	out, _ = execute(t, "", "auth", "list")
	if strings.Contains(out, "sk-a...aaaa") {
		t.Errorf("key still listed after remove:\n%s", out)
	}
}

func TestAuthSetKeyring(t *testing.T) {
	keyring.MockInit()
	dir := setupEnv(t, "key_store: keyring\n")
	key := "sk-" + strings.Repeat("b", 48)

	if _, err := execute(t, "", "auth", "set", "openai", key); err != nil {
		t.Fatalf("auth set: %v", err)
	}
	if got, err := keyring.Get("betterprompt", "openai"); err != nil || got != key {
		t.Errorf("keyring entry = %q, %v", got, err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "store.json"))
	if strings.Contains(string(data), key) {
		t.Error("key written to the settings store")
	}
}

func TestProvidersUsePersists(t *testing.T) {
	setupEnv(t, "")
	if _, err := execute(t, "", "providers", "use", "anthropic"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "providers")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Anthropic (active)") {
		t.Errorf("providers:\n%s", out)
	}
}

func TestModelsAddRemove(t *testing.T) {
	setupEnv(t, "")

	if _, err := execute(t, "", "models", "add", "openrouter", "mistral/mixtral-8x7b", "Mixtral"); err != nil {
		t.Fatal(err)
	}
	out, _ := execute(t, "", "models", "openrouter")
	if !strings.Contains(out, "mistral/mixtral-8x7b") {
		t.Errorf("custom model not listed:\n%s", out)
	}

	if _, err := execute(t, "", "models", "add", "openai", "gpt-5"); !errors.Is(err, provider.ErrCustomModelsUnsupported) {
		t.Errorf("openai custom model: err = %v", err)
	}
	if _, err := execute(t, "", "models", "remove", "openrouter", "openai/gpt-4o"); err == nil {
		t.Error("removing a built-in model should fail")
	}

	if _, err := execute(t, "", "models", "remove", "openrouter", "mistral/mixtral-8x7b"); err != nil {
		t.Fatal(err)
	}
	out, _ = execute(t, "", "models", "openrouter")
	if strings.Contains(out, "mistral/mixtral-8x7b") {
		t.Errorf("custom model still listed:\n%s", out)
	}
}

func TestConfigSetTimeoutPersists(t *testing.T) {
	setupEnv(t, "")
	if _, err := execute(t, "", "config", "set-timeout", "0"); err == nil {
		t.Error("timeout 0 should be rejected")
	}
	if _, err := execute(t, "", "config", "set-timeout", "45"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "config", "set-retries", "5"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	var view struct {
		Timeout    int `json:"timeout"`
		MaxRetries int `json:"max_retries"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("config show: %v\n%s", err, out)
	}
	if view.Timeout != 45 || view.MaxRetries != 5 {
		t.Errorf("settings = %+v, want 45s and 5 attempts", view)
	}
}

func TestTemplateUseAndCustom(t *testing.T) {
	setupEnv(t, "")
	custom := "Please rewrite the following prompt so it is clearer and more specific for the model."

	if _, err := execute(t, custom, "template", "set-custom", "--use"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "template", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != custom {
		t.Errorf("active content = %q", out)
	}
	if _, err := execute(t, "", "template", "use", "nope"); err == nil {
		t.Error("unknown template should fail")
	}
}

func TestMakeFriendly(t *testing.T) {
	tests := []struct {
		err   error
		title string
	}{
		{&validate.ValidationError{Reasons: []string{"prompt is required"}}, "Invalid Input"},
		{&provider.RequestError{Provider: provider.OpenAI, StatusCode: 401, Kind: provider.KindClient}, "Authentication Failed"},
		{&provider.RequestError{Provider: provider.OpenAI, StatusCode: 400, Kind: provider.KindClient}, "Bad Request"},
		{&provider.RequestError{Provider: provider.OpenAI, StatusCode: 429, Kind: provider.KindTransient}, "Rate Limit Exceeded"},
		{&provider.RequestError{Provider: provider.OpenAI, StatusCode: 503, Kind: provider.KindTransient}, "Provider Unavailable"},
		{&provider.RequestError{Provider: provider.Gemini, Kind: provider.KindTransient, Err: context.DeadlineExceeded}, "Request Timeout"},
		{&provider.RequestError{Provider: provider.Gemini, Kind: provider.KindTransient, Err: errors.New("dial tcp")}, "Network Error"},
		{&provider.ContentBlockedError{Provider: provider.Gemini, Reason: "SAFETY"}, "Content Blocked"},
		{&provider.EmptyResultError{Provider: provider.Anthropic}, "Empty Response"},
		{fmt.Errorf("dispatch: %w", context.Canceled), "Cancelled"},
		{config.ValidationErrors{{Field: "timeout", Message: "must be positive"}}, "Invalid Configuration"},
		{errors.New("boom"), "Error"},
	}
	for _, tt := range tests {
		if got := makeFriendly(tt.err).Title; got != tt.title {
			t.Errorf("makeFriendly(%v).Title = %q, want %q", tt.err, got, tt.title)
		}
	}
}
