// Package optimizer turns a prompt and a rewriting instruction into a
// provider call and returns the rewritten prompt.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

// Options describe one optimize request.
type Options struct {
	Template    string
	Model       string
	Temperature float64
	Strength    Strength
	MultiRound  *MultiRound
	// ThinkingBudget is forwarded to gemini models that support it.
	ThinkingBudget *int
}

// DefaultOptions returns temperature 0.5 and medium strength.
func DefaultOptions() Options {
	return Options{Temperature: 0.5, Strength: Medium}
}

// Result is a successful optimization.
type Result struct {
	Text        string
	Provider    provider.ID
	Model       string
	Instruction string
	Attempts    int
	Duration    time.Duration
}

// Dispatcher sends optimize requests to the configured providers.
// It is safe for concurrent use.
type Dispatcher struct {
	registry  *provider.Registry
	creds     *credential.Store
	transport *provider.Transport
	adapters  map[provider.ID]provider.Adapter
	logger    *slog.Logger
	limiter   *rate.Limiter
	baseDelay time.Duration

	mu       sync.RWMutex
	settings Settings
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.transport = provider.NewTransport(c) }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRateLimit caps outgoing attempts at rpm per minute. Zero disables it.
func WithRateLimit(rpm int) Option {
	return func(d *Dispatcher) {
		if rpm > 0 {
			d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithRetryBaseDelay changes the linear backoff unit (1s by default).
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.baseDelay = delay }
}

// WithSettings replaces the initial settings.
func WithSettings(s Settings) Option {
	return func(d *Dispatcher) { d.settings = s }
}

// WithAdapter overrides the adapter used for a provider.
func WithAdapter(a provider.Adapter) Option {
	return func(d *Dispatcher) { d.adapters[a.Provider()] = a }
}

// New creates a Dispatcher reading provider data from registry and keys
// from creds.
func New(registry *provider.Registry, creds *credential.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		creds:     creds,
		transport: provider.NewTransport(nil),
		adapters:  provider.Adapters(),
		logger:    slog.New(slog.DiscardHandler),
		baseDelay: time.Second,
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Settings returns the current runtime settings.
func (d *Dispatcher) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// SetConfig applies a partial settings update. Nothing changes if any field
// is invalid.
func (d *Dispatcher) SetConfig(u SettingsUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := u.apply(d.settings)
	if err != nil {
		return err
	}
	d.settings = s
	return nil
}

// Optimize rewrites text with the active provider and returns the generated
// text verbatim.
func (d *Dispatcher) Optimize(ctx context.Context, text string, opts Options) (string, error) {
	res, err := d.Dispatch(ctx, d.creds.Provider(), text, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// OptimizeWith is Optimize against an explicit provider.
func (d *Dispatcher) OptimizeWith(ctx context.Context, id provider.ID, text string, opts Options) (string, error) {
	res, err := d.Dispatch(ctx, id, text, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Dispatch runs one optimize request against id and reports how it went.
// Input and credential checks happen before any network call.
func (d *Dispatcher) Dispatch(ctx context.Context, id provider.ID, text string, opts Options) (*Result, error) {
	if err := validate.Prompt(text).Err(); err != nil {
		return nil, err
	}
	if err := validate.Temperature(opts.Temperature); err != nil {
		return nil, err
	}
	if opts.Strength == "" {
		opts.Strength = Medium
	}
	st, err := ParseStrength(string(opts.Strength))
	if err != nil {
		return nil, &validate.ValidationError{Reasons: []string{err.Error()}}
	}
	opts.Strength = st

	desc, ok := d.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}
	adapter, ok := d.adapters[id]
	if !ok {
		return nil, fmt.Errorf("no adapter for provider %q", id)
	}
	apiKey, ok := d.creds.APIKey(id)
	if !ok {
		return nil, &provider.MissingCredentialError{Provider: id}
	}

	call := &provider.Call{
		Instruction:    ComposeInstruction(opts.Template, opts.Strength, opts.MultiRound),
		Text:           text,
		Model:          opts.Model,
		Temperature:    opts.Temperature,
		ThinkingBudget: opts.ThinkingBudget,
	}
	if call.Model == "" {
		call.Model = desc.DefaultModel()
	}
	req, err := adapter.BuildRequest(desc.Endpoint, apiKey, call)
	if err != nil {
		return nil, err
	}

	settings := d.Settings()
	logger := d.logger.With("provider", string(id), "model", call.Model)
	attempts := 0
	policy := provider.RetryPolicy{
		MaxAttempts: settings.MaxRetries,
		BaseDelay:   d.baseDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn("provider request failed, retrying",
				"attempt", attempt, "delay", delay, "error", err)
		},
	}

	start := time.Now()
	out, err := provider.CallWithRetry(ctx, policy, func(ctx context.Context) (string, error) {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return "", &rateLimitError{err: err}
			}
		}
		attempts++
		logger.Debug("sending provider request", "attempt", attempts, "timeout", settings.Timeout)
		return d.transport.Execute(ctx, adapter, req, settings.Timeout)
	})
	if err != nil {
		logger.Debug("provider request failed", "attempts", attempts, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	logger.Debug("provider request succeeded", "attempts", attempts, "duration", elapsed)
	return &Result{
		Text:        out,
		Provider:    id,
		Model:       call.Model,
		Instruction: call.Instruction,
		Attempts:    attempts,
		Duration:    elapsed,
	}, nil
}

// rateLimitError wraps a limiter wait failure. Waiting again would hit the
// same deadline, so it is never retried.
type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string   { return "rate limiter: " + e.err.Error() }
func (e *rateLimitError) Unwrap() error   { return e.err }
func (e *rateLimitError) Retryable() bool { return false }
