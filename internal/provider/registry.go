package provider

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCustomModelsUnsupported is returned when a custom model is added to or
// removed from a provider with a fixed model list.
var ErrCustomModelsUnsupported = errors.New("provider does not accept custom models")

// Model is a selectable model of a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Descriptor describes a provider: where to reach it and which models it offers.
type Descriptor struct {
	ID                   ID      `json:"id"`
	Name                 string  `json:"name"`
	Endpoint             string  `json:"endpoint"`
	Models               []Model `json:"models"`
	SignupURL            string  `json:"signup_url"`
	SupportsCustomModels bool    `json:"supports_custom_models"`
}

// HasModel reports whether modelID is in the descriptor's model list.
func (d Descriptor) HasModel(modelID string) bool {
	for _, m := range d.Models {
		if m.ID == modelID {
			return true
		}
	}
	return false
}

// DefaultModel returns the first listed model, or "" for an empty list.
func (d Descriptor) DefaultModel() string {
	if len(d.Models) == 0 {
		return ""
	}
	return d.Models[0].ID
}

func (d Descriptor) clone() Descriptor {
	d.Models = append([]Model(nil), d.Models...)
	return d
}

func defaultCatalog() []Descriptor {
	return []Descriptor{
		{
			ID:       Gemini,
			Name:     "Google Gemini",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Models: []Model{
				{ID: "gemini-2.5-flash-preview-05-20", Name: "Gemini 2.5 Flash (speed)"},
				{ID: "gemini-2.5-pro-preview-06-05", Name: "Gemini 2.5 Pro (quality)"},
			},
			SignupURL: "https://makersuite.google.com/",
		},
		{
			ID:       OpenAI,
			Name:     "OpenAI",
			Endpoint: "https://api.openai.com/v1",
			Models: []Model{
				{ID: "gpt-4o", Name: "GPT-4o (strongest)"},
				{ID: "gpt-4o-mini", Name: "GPT-4o Mini (fast)"},
				{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo (economy)"},
			},
			SignupURL: "https://platform.openai.com/",
		},
		{
			ID:       Anthropic,
			Name:     "Anthropic",
			Endpoint: "https://api.anthropic.com/v1",
			Models: []Model{
				{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet (balanced)"},
				{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku (fast)"},
			},
			SignupURL: "https://console.anthropic.com/",
		},
		{
			ID:       OpenRouter,
			Name:     "OpenRouter",
			Endpoint: "https://openrouter.ai/api/v1",
			Models: []Model{
				{ID: "openai/gpt-4o", Name: "GPT-4o (OpenRouter)"},
				{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet (OpenRouter)"},
				{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash (OpenRouter)"},
				{ID: "meta-llama/llama-3.3-70b-instruct", Name: "Llama 3.3 70B (OpenRouter)"},
				{ID: "deepseek/deepseek-chat", Name: "DeepSeek V3 (OpenRouter)"},
			},
			SignupURL:            "https://openrouter.ai/keys",
			SupportsCustomModels: true,
		},
	}
}

// Registry is the provider catalog. Each Registry owns its own copy of the
// catalog; callers pass it explicitly to whatever needs provider data.
type Registry struct {
	mu        sync.RWMutex
	entries   map[ID]*Descriptor
	protected map[ID]map[string]struct{}
}

// NewRegistry creates a registry holding the built-in catalog.
// The built-in models of each provider are protected from removal.
func NewRegistry() *Registry {
	r := &Registry{
		entries:   make(map[ID]*Descriptor),
		protected: make(map[ID]map[string]struct{}),
	}
	for _, d := range defaultCatalog() {
		d := d
		r.entries[d.ID] = &d
		ids := make(map[string]struct{}, len(d.Models))
		for _, m := range d.Models {
			ids[m.ID] = struct{}{}
		}
		r.protected[d.ID] = ids
	}
	return r
}

// Get returns a copy of the descriptor for id.
func (r *Registry) Get(id ID) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Providers returns a copy of every descriptor keyed by provider ID.
func (r *Registry) Providers() map[ID]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ID]Descriptor, len(r.entries))
	for id, d := range r.entries {
		out[id] = d.clone()
	}
	return out
}

// List returns the descriptors in declaration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, id := range IDs() {
		if d, ok := r.entries[id]; ok {
			out = append(out, d.clone())
		}
	}
	return out
}

// SetEndpoint overrides the base URL used for a provider.
func (r *Registry) SetEndpoint(id ID, endpoint string) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return fmt.Errorf("empty endpoint for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	d.Endpoint = endpoint
	return nil
}

// AddCustomModel appends a model to the provider's list. Adding an id that is
// already listed is a no-op.
func (r *Registry) AddCustomModel(id ID, modelID, name string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return fmt.Errorf("model id must not be empty")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = modelID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.customizable(id)
	if err != nil {
		return err
	}
	if d.HasModel(modelID) {
		return nil
	}
	d.Models = append(d.Models, Model{ID: modelID, Name: name})
	return nil
}

// RemoveCustomModel removes every entry for modelID. Built-in models are
// protected and removing one is a no-op.
func (r *Registry) RemoveCustomModel(id ID, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.customizable(id)
	if err != nil {
		return err
	}
	if _, ok := r.protected[id][modelID]; ok {
		return nil
	}
	kept := d.Models[:0]
	for _, m := range d.Models {
		if m.ID != modelID {
			kept = append(kept, m)
		}
	}
	d.Models = kept
	return nil
}

// CustomModels returns the models that were added at runtime.
func (r *Registry) CustomModels(id ID) []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[id]
	if !ok {
		return nil
	}
	var out []Model
	for _, m := range d.Models {
		if _, builtin := r.protected[id][m.ID]; !builtin {
			out = append(out, m)
		}
	}
	return out
}

// IsDefaultModel reports whether modelID is one of the provider's built-in models.
func (r *Registry) IsDefaultModel(id ID, modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.protected[id][modelID]
	return ok
}

// customizable must be called with r.mu held.
func (r *Registry) customizable(id ID) (*Descriptor, error) {
	d, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}
	if !d.SupportsCustomModels {
		return nil, fmt.Errorf("%s: %w", id, ErrCustomModelsUnsupported)
	}
	return d, nil
}
