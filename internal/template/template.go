// Package template manages the rewriting instructions sent along with a
// prompt: the built-in templates and one user-defined custom template.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Dhanuzh/betterprompt/internal/storage"
)

// Template names.
const (
	Default  = "default"
	Simple   = "simple"
	Extended = "extended"
	Custom   = "custom"
)

var builtins = map[string]string{
	Default:  defaultTemplate,
	Simple:   simpleTemplate,
	Extended: extendedTemplate,
}

// Names returns every selectable template name.
func Names() []string {
	return []string{Default, Simple, Extended, Custom}
}

// Labels returns the display label of each template.
func Labels() map[string]string {
	return map[string]string{
		Default:  "Default optimization",
		Simple:   "Concise mode",
		Extended: "Extended structure",
		Custom:   "Custom template",
	}
}

// Builtin returns the content of a built-in template.
func Builtin(name string) (string, bool) {
	s, ok := builtins[name]
	return s, ok
}

// Manager tracks the active template and the custom template text, and
// persists both to a storage.Store.
type Manager struct {
	store storage.Store

	mu     sync.RWMutex
	active string
	custom string
}

// NewManager loads the template settings from store.
func NewManager(store storage.Store) (*Manager, error) {
	m := &Manager{store: store, active: Default}
	var active, custom string
	if found, err := store.Get(storage.KeyActiveTemplate, &active); err != nil {
		return nil, err
	} else if found && isKnown(active) {
		m.active = active
	}
	if _, err := store.Get(storage.KeyCustomPrompt, &custom); err != nil {
		return nil, err
	}
	m.custom = custom
	return m, nil
}

func isKnown(name string) bool {
	_, ok := builtins[name]
	return ok || name == Custom
}

// Active returns the active template name.
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetActive selects a template. Unknown names are ignored and reported as false.
func (m *Manager) SetActive(name string) (bool, error) {
	if !isKnown(name) {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = name
	return true, m.save()
}

// ActiveContent returns the instruction to send with the next request.
// A non-blank custom template takes precedence over the default template.
func (m *Manager) ActiveContent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == Default && strings.TrimSpace(m.custom) != "" {
		return m.custom
	}
	if m.active == Custom && m.custom != "" {
		return m.custom
	}
	if s, ok := builtins[m.active]; ok {
		return s
	}
	return builtins[Default]
}

// Custom returns the custom template text.
func (m *Manager) Custom() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.custom
}

// SetCustom replaces the custom template text.
func (m *Manager) SetCustom(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.custom = text
	return m.save()
}

// All returns the built-in templates plus the custom one when set.
func (m *Manager) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(builtins)+1)
	for k, v := range builtins {
		out[k] = v
	}
	if m.custom != "" {
		out[Custom] = m.custom
	}
	return out
}

// Reset selects the default template and clears the custom text.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = Default
	m.custom = ""
	return m.save()
}

// Config is the exported template configuration.
type Config struct {
	ActiveTemplate string    `json:"activeTemplate"`
	CustomPrompt   string    `json:"customPrompt"`
	ExportDate     time.Time `json:"exportDate"`
}

// ExportConfig returns the current configuration.
func (m *Manager) ExportConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Config{ActiveTemplate: m.active, CustomPrompt: m.custom, ExportDate: time.Now().UTC()}
}

// ImportConfig applies the non-empty fields of c. An unknown template name
// is an error and nothing is applied.
func (m *Manager) ImportConfig(c Config) error {
	if c.ActiveTemplate != "" && !isKnown(c.ActiveTemplate) {
		return fmt.Errorf("unknown template %q", c.ActiveTemplate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ActiveTemplate != "" {
		m.active = c.ActiveTemplate
	}
	if c.CustomPrompt != "" {
		m.custom = c.CustomPrompt
	}
	return m.save()
}

// save must be called with m.mu held.
func (m *Manager) save() error {
	if err := m.store.Set(storage.KeyActiveTemplate, m.active); err != nil {
		return fmt.Errorf("failed to save template settings: %w", err)
	}
	if err := m.store.Set(storage.KeyCustomPrompt, m.custom); err != nil {
		return fmt.Errorf("failed to save template settings: %w", err)
	}
	return nil
}

// ValidationResult is the outcome of Validate. Warnings do not make a
// template invalid.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

var rewriteVerb = regexp.MustCompile(`(?i)optimi[sz]|rewrit|improv|refine|enhance`)

// Validate checks a candidate template.
func Validate(text string) ValidationResult {
	r := ValidationResult{Valid: true}
	if strings.TrimSpace(text) == "" {
		r.Valid = false
		r.Errors = append(r.Errors, "template must not be empty")
	}
	n := len([]rune(text))
	if text != "" && n < 50 {
		r.Warnings = append(r.Warnings, "template may be too short")
	}
	if n > 5000 {
		r.Warnings = append(r.Warnings, "template may be too long, consider trimming it")
	}
	if !rewriteVerb.MatchString(text) {
		r.Warnings = append(r.Warnings, "template does not seem to ask for an optimization or rewrite")
	}
	return r
}
