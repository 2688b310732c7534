package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

var testKeys = map[provider.ID]string{
	provider.Gemini:     "AI" + strings.Repeat("g", 38),
	provider.OpenAI:     "sk-" + strings.Repeat("o", 48),
	provider.Anthropic:  "sk-ant-test_key",
	provider.OpenRouter: "sk-or-v1-" + strings.Repeat("r", 64),
}

var successBodies = map[provider.ID]string{
	provider.Gemini:     `{"candidates":[{"content":{"parts":[{"text":"optimized by gemini"}]}}]}`,
	provider.OpenAI:     `{"choices":[{"message":{"role":"assistant","content":"optimized by openai"}}]}`,
	provider.Anthropic:  `{"content":[{"type":"text","text":"optimized by anthropic"}]}`,
	provider.OpenRouter: `{"choices":[{"message":{"role":"assistant","content":"optimized by openrouter"}}]}`,
}

// fakeProvider serves canned responses and counts requests.
type fakeProvider struct {
	srv     *httptest.Server
	calls   atomic.Int32
	lastReq atomic.Pointer[http.Request]
	body    atomic.Value // []byte of the last request body
}

func newFakeProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int32)) *fakeProvider {
	t.Helper()
	f := &fakeProvider{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		f.body.Store(b)
		f.lastReq.Store(r.Clone(context.Background()))
		handler(w, r, n)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request, int32) {
	return func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestDispatcher(t *testing.T, id provider.ID, f *fakeProvider, withKey bool, opts ...Option) *Dispatcher {
	t.Helper()
	reg := provider.NewRegistry()
	if f != nil {
		if err := reg.SetEndpoint(id, f.srv.URL); err != nil {
			t.Fatal(err)
		}
	}
	creds := credential.NewStore(id)
	if withKey {
		if err := creds.SetAPIKey(id, testKeys[id]); err != nil {
			t.Fatal(err)
		}
	}
	opts = append([]Option{WithRetryBaseDelay(time.Millisecond)}, opts...)
	return New(reg, creds, opts...)
}

func TestOptimizeEachProvider(t *testing.T) {
	for _, id := range provider.IDs() {
		t.Run(string(id), func(t *testing.T) {
			f := newFakeProvider(t, respond(http.StatusOK, successBodies[id]))
			d := newTestDispatcher(t, id, f, true)

			opts := DefaultOptions()
			opts.Template = "Improve this prompt."
			got, err := d.Optimize(context.Background(), "summarize a book", opts)
			if err != nil {
				t.Fatalf("Optimize() error = %v", err)
			}
			if got != "optimized by "+string(id) {
				t.Errorf("Optimize() = %q", got)
			}
			if f.calls.Load() != 1 {
				t.Errorf("calls = %d, want 1", f.calls.Load())
			}

			r := f.lastReq.Load()
			switch id {
			case provider.Gemini:
				if r.URL.Query().Get("key") != testKeys[id] {
					t.Errorf("gemini key missing from query: %s", r.URL)
				}
				if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash-preview-05-20:generateContent") {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "" {
					t.Error("gemini request must not carry an Authorization header")
				}
			case provider.Anthropic:
				if r.Header.Get("x-api-key") != testKeys[id] || r.URL.Path != "/messages" {
					t.Errorf("anthropic request = %s %v", r.URL.Path, r.Header)
				}
			default:
				if r.Header.Get("Authorization") != "Bearer "+testKeys[id] || r.URL.Path != "/chat/completions" {
					t.Errorf("%s request = %s %v", id, r.URL.Path, r.Header)
				}
			}
		})
	}
}

func TestOptimizeReturnsTextVerbatim(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, `{"content":[{"type":"text","text":"  spaced\n\n"}]}`))
	d := newTestDispatcher(t, provider.Anthropic, f, true)
	got, err := d.Optimize(context.Background(), "x", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got != "  spaced\n\n" {
		t.Errorf("Optimize() = %q, want untrimmed text", got)
	}
}

func TestOptimizeLengthGate(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.OpenAI]))
	d := newTestDispatcher(t, provider.OpenAI, f, true)

	_, err := d.Optimize(context.Background(), strings.Repeat("a", validate.MaxPromptLength+1), DefaultOptions())
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if f.calls.Load() != 0 {
		t.Errorf("calls = %d, want no network call", f.calls.Load())
	}

	_, err = d.Optimize(context.Background(), "   ", DefaultOptions())
	if !errors.As(err, &ve) {
		t.Errorf("blank text error = %v, want ValidationError", err)
	}
}

func TestOptimizeRejectsBadOptions(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.OpenAI]))
	d := newTestDispatcher(t, provider.OpenAI, f, true)

	bad := []Options{
		{Temperature: 1.5, Strength: Medium},
		{Temperature: 0.5, Strength: "extreme"},
	}
	for _, opts := range bad {
		_, err := d.Optimize(context.Background(), "hello", opts)
		var ve *validate.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Optimize(%+v) error = %v, want ValidationError", opts, err)
		}
	}
	if f.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", f.calls.Load())
	}
}

func TestOptimizeMissingCredential(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.Gemini]))
	d := newTestDispatcher(t, provider.Gemini, f, false)

	_, err := d.Optimize(context.Background(), "hello", DefaultOptions())
	var mc *provider.MissingCredentialError
	if !errors.As(err, &mc) || mc.Provider != provider.Gemini {
		t.Fatalf("error = %v, want MissingCredentialError(gemini)", err)
	}
	if f.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", f.calls.Load())
	}
}

func TestOptimizeClientErrorNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		f := newFakeProvider(t, respond(status, `{"error":{"message":"invalid api key"}}`))
		d := newTestDispatcher(t, provider.OpenAI, f, true)
		if err := d.SetConfig(SettingsUpdate{MaxRetries: intPtr(5)}); err != nil {
			t.Fatal(err)
		}

		_, err := d.Optimize(context.Background(), "hello", DefaultOptions())
		if !provider.IsClientError(err) || provider.StatusCode(err) != status {
			t.Errorf("status %d: error = %v, want client RequestError", status, err)
		}
		if !strings.Contains(err.Error(), "invalid api key") {
			t.Errorf("error should carry the provider message: %v", err)
		}
		if f.calls.Load() != 1 {
			t.Errorf("status %d: calls = %d, want 1", status, f.calls.Load())
		}
	}
}

func TestOptimizeRetryExhaustion(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, _ *http.Request, n int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": fmt.Sprintf("overloaded %d", n)}})
	})
	d := newTestDispatcher(t, provider.Anthropic, f, true)

	_, err := d.Optimize(context.Background(), "hello", DefaultOptions())
	if f.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", f.calls.Load())
	}
	if provider.StatusCode(err) != http.StatusServiceUnavailable || !strings.Contains(err.Error(), "overloaded 3") {
		t.Errorf("error = %v, want the third attempt's 503", err)
	}
}

func TestOptimizeRecoversAfterTransientFailure(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, _ *http.Request, n int32) {
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, successBodies[provider.OpenRouter])
	})
	d := newTestDispatcher(t, provider.OpenRouter, f, true)

	res, err := d.Dispatch(context.Background(), provider.OpenRouter, "hello", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 2 || res.Model != "openai/gpt-4o" {
		t.Errorf("Result = %+v", res)
	}
}

func TestOptimizeContentBlockedNotRetried(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`))
	d := newTestDispatcher(t, provider.Gemini, f, true)

	_, err := d.Optimize(context.Background(), "hello", DefaultOptions())
	var cb *provider.ContentBlockedError
	if !errors.As(err, &cb) || cb.Reason != "SAFETY" {
		t.Fatalf("error = %v, want ContentBlockedError", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", f.calls.Load())
	}
}

func TestOptimizeTimeoutIsRetried(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, n int32) {
		if n == 1 {
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, successBodies[provider.OpenAI])
	})
	d := newTestDispatcher(t, provider.OpenAI, f, true,
		WithSettings(Settings{Timeout: 100 * time.Millisecond, MaxRetries: 2}))

	got, err := d.Optimize(context.Background(), "hello", DefaultOptions())
	if err != nil || got != "optimized by openai" {
		t.Fatalf("Optimize() = %q, %v", got, err)
	}
	if f.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", f.calls.Load())
	}
}

func TestOptimizeWithExplicitProvider(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.Anthropic]))
	reg := provider.NewRegistry()
	_ = reg.SetEndpoint(provider.Anthropic, f.srv.URL)
	creds := credential.NewStore(provider.Gemini)
	_ = creds.SetAPIKey(provider.Anthropic, testKeys[provider.Anthropic])
	d := New(reg, creds)

	got, err := d.OptimizeWith(context.Background(), provider.Anthropic, "hello", DefaultOptions())
	if err != nil || got != "optimized by anthropic" {
		t.Fatalf("OptimizeWith() = %q, %v", got, err)
	}
	if creds.Provider() != provider.Gemini {
		t.Error("OptimizeWith must not change the active provider")
	}
}

func TestOptimizePayloadCarriesComposedInstruction(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.Anthropic]))
	d := newTestDispatcher(t, provider.Anthropic, f, true)

	opts := Options{
		Template:    "Rewrite the prompt.",
		Model:       "claude-3-haiku-20240307",
		Temperature: 0.2,
		Strength:    Strong,
		MultiRound:  &MultiRound{Enabled: true, Rounds: 2, Depth: "deep"},
	}
	if _, err := d.Optimize(context.Background(), "hello", opts); err != nil {
		t.Fatal(err)
	}

	var body map[string]any
	if err := json.Unmarshal(f.body.Load().([]byte), &body); err != nil {
		t.Fatal(err)
	}
	want := ComposeInstruction(opts.Template, opts.Strength, opts.MultiRound)
	if body["system"] != want {
		t.Errorf("system = %q, want %q", body["system"], want)
	}
	if body["model"] != "claude-3-haiku-20240307" {
		t.Errorf("model = %v", body["model"])
	}
}

func TestOptimizeMixedCaseStrength(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.Anthropic]))
	d := newTestDispatcher(t, provider.Anthropic, f, true)

	opts := DefaultOptions()
	opts.Template = "Rewrite the prompt."
	opts.Strength = "Strong"
	if _, err := d.Optimize(context.Background(), "hello", opts); err != nil {
		t.Fatal(err)
	}

	var body map[string]any
	if err := json.Unmarshal(f.body.Load().([]byte), &body); err != nil {
		t.Fatal(err)
	}
	system, _ := body["system"].(string)
	if !strings.Contains(system, strengthBlocks[Strong]) {
		t.Errorf("system missing strong block: %q", system)
	}
	if want := ComposeInstruction(opts.Template, Strong, nil); system != want {
		t.Errorf("system = %q, want %q", system, want)
	}
}

func TestOptimizeContextCanceled(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusBadGateway, ""))
	d := newTestDispatcher(t, provider.OpenAI, f, true, WithRetryBaseDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Optimize(ctx, "hello", DefaultOptions())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context deadline", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", f.calls.Load())
	}
}

func TestSetConfig(t *testing.T) {
	d := New(provider.NewRegistry(), credential.NewStore(provider.OpenAI))
	if got := d.Settings(); got != DefaultSettings() {
		t.Errorf("Settings() = %+v", got)
	}

	if err := d.SetConfig(SettingsUpdate{TimeoutSeconds: intPtr(60)}); err != nil {
		t.Fatal(err)
	}
	if got := d.Settings(); got.Timeout != time.Minute || got.MaxRetries != 3 {
		t.Errorf("partial update changed too much: %+v", got)
	}

	bad := []SettingsUpdate{
		{TimeoutSeconds: intPtr(0)},
		{TimeoutSeconds: intPtr(-5)},
		{MaxRetries: intPtr(0)},
		{TimeoutSeconds: intPtr(10), MaxRetries: intPtr(-1)},
	}
	for _, u := range bad {
		if err := d.SetConfig(u); err == nil {
			t.Errorf("SetConfig(%+v) should fail", u)
		}
	}
	if got := d.Settings(); got.Timeout != time.Minute || got.MaxRetries != 3 {
		t.Errorf("rejected update must not apply: %+v", got)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.OpenAI]))
	d := newTestDispatcher(t, provider.OpenAI, f, true, WithRateLimit(600))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := d.Optimize(context.Background(), "hello", DefaultOptions()); err != nil {
			t.Fatal(err)
		}
	}
	// 600 rpm allows one call per 100ms after the first.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("3 calls took %v, want rate limiting", elapsed)
	}
}

func TestRateLimitWaitNotRetried(t *testing.T) {
	f := newFakeProvider(t, respond(http.StatusOK, successBodies[provider.OpenAI]))
	d := newTestDispatcher(t, provider.OpenAI, f, true, WithRateLimit(1))

	if _, err := d.Optimize(context.Background(), "hello", DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	// The next token is a minute away, past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.Optimize(ctx, "hello", DefaultOptions())
	if err == nil {
		t.Fatal("expected rate limiter error")
	}
	if provider.ShouldRetry(err) {
		t.Errorf("ShouldRetry(%v) = true, want false", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", f.calls.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("rate limited call took %v", elapsed)
	}
}

func intPtr(v int) *int { return &v }
