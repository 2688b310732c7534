// Package history keeps a bounded, persisted list of past optimizations.
package history

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dhanuzh/betterprompt/internal/storage"
)

// MaxEntries is the number of entries kept; older ones are dropped.
const MaxEntries = 50

// Entry is one recorded optimization.
type Entry struct {
	ID          string    `json:"id"`
	Original    string    `json:"original"`
	Optimized   string    `json:"optimized"`
	Template    string    `json:"template"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Strength    string    `json:"strength"`
	Provider    string    `json:"provider"`
	Timestamp   time.Time `json:"timestamp"`
	Rating      int       `json:"rating,omitempty"` // 1-5, 0 when unrated
	Tags        []string  `json:"tags"`
}

// Metadata describes how an optimization was produced.
type Metadata struct {
	Template    string
	Model       string
	Temperature float64
	Strength    string
	Provider    string
	Tags        []string
}

// Manager owns the history list. Entries are kept newest first.
type Manager struct {
	store storage.Store
	now   func() time.Time

	mu      sync.RWMutex
	entries []Entry
}

// NewManager loads the history from store.
func NewManager(store storage.Store) (*Manager, error) {
	m := &Manager{store: store, now: time.Now}
	if _, err := store.Get(storage.KeyHistory, &m.entries); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(m.entries) > MaxEntries {
		m.entries = m.entries[:MaxEntries]
	}
	return m, nil
}

// Add records an optimization. An empty optimized text is not recorded and
// Add returns nil.
func (m *Manager) Add(original, optimized string, meta Metadata) (*Entry, error) {
	if strings.TrimSpace(optimized) == "" {
		return nil, nil
	}
	e := Entry{
		ID:          newID(),
		Original:    strings.TrimSpace(original),
		Optimized:   strings.TrimSpace(optimized),
		Template:    orDefault(meta.Template, "default"),
		Model:       meta.Model,
		Temperature: meta.Temperature,
		Strength:    orDefault(meta.Strength, "medium"),
		Provider:    orDefault(meta.Provider, "gemini"),
		Timestamp:   m.now().UTC(),
		Tags:        dedupe(meta.Tags),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{e}, m.entries...)
	if len(m.entries) > MaxEntries {
		m.entries = m.entries[:MaxEntries]
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return &e, nil
}

// All returns a copy of every entry, newest first.
func (m *Manager) All() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneEntries(m.entries)
}

// Latest returns the newest entry.
func (m *Manager) Latest() (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return cloneEntry(m.entries[0]), true
}

// Get returns the entry with id.
func (m *Manager) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return cloneEntry(m.entries[i]), true
	}
	return Entry{}, false
}

// Delete removes the entry with id and reports whether it existed.
func (m *Manager) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false, nil
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return true, m.save()
}

// Clear removes every entry.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return m.save()
}

// Filter narrows a Search. Zero fields do not filter.
type Filter struct {
	Template string
	Provider string
	Since    time.Time
	Until    time.Time
	Rating   int
}

// Search returns entries whose original or optimized text contains any of
// the whitespace-separated keywords in query, ignoring case, and that match
// every set field of f.
func (m *Manager) Search(query string, f Filter) []Entry {
	keywords := strings.Fields(strings.ToLower(query))

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if len(keywords) > 0 && !matchesAny(e, keywords) {
			continue
		}
		if f.Template != "" && e.Template != f.Template {
			continue
		}
		if f.Provider != "" && e.Provider != f.Provider {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
			continue
		}
		if f.Rating != 0 && e.Rating != f.Rating {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out
}

func matchesAny(e Entry, keywords []string) bool {
	original := strings.ToLower(e.Original)
	optimized := strings.ToLower(e.Optimized)
	for _, k := range keywords {
		if strings.Contains(original, k) || strings.Contains(optimized, k) {
			return true
		}
	}
	return false
}

// Rate sets the rating of an entry. Ratings outside 1-5 and unknown ids are
// ignored and reported as false.
func (m *Manager) Rate(id string, rating int) (bool, error) {
	if rating < 1 || rating > 5 {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false, nil
	}
	m.entries[i].Rating = rating
	return true, m.save()
}

// Tag replaces the tags of an entry with the deduplicated tags.
func (m *Manager) Tag(id string, tags []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false, nil
	}
	m.entries[i].Tags = dedupe(tags)
	return true, m.save()
}

// Statistics summarizes the history.
type Statistics struct {
	Total          int            `json:"total"`
	Templates      map[string]int `json:"templates"`
	Providers      map[string]int `json:"providers"`
	AverageRating  float64        `json:"averageRating"`
	RecentActivity int            `json:"recentActivity"`
}

// Statistics counts entries per template and provider, averages the ratings
// of rated entries to one decimal, and counts entries from the last 7 days.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Statistics{
		Total:     len(m.entries),
		Templates: make(map[string]int),
		Providers: make(map[string]int),
	}
	weekAgo := m.now().AddDate(0, 0, -7)
	rated, sum := 0, 0
	for _, e := range m.entries {
		st.Templates[e.Template]++
		st.Providers[e.Provider]++
		if e.Rating > 0 {
			rated++
			sum += e.Rating
		}
		if !e.Timestamp.Before(weekAgo) {
			st.RecentActivity++
		}
	}
	if rated > 0 {
		st.AverageRating = math.Round(float64(sum)/float64(rated)*10) / 10
	}
	return st
}

// index must be called with m.mu held.
func (m *Manager) index(id string) int {
	for i, e := range m.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// save must be called with m.mu held.
func (m *Manager) save() error {
	entries := m.entries
	if entries == nil {
		entries = []Entry{}
	}
	if err := m.store.Set(storage.KeyHistory, entries); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.New().String()[:8]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func cloneEntry(e Entry) Entry {
	e.Tags = append([]string(nil), e.Tags...)
	return e
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = cloneEntry(e)
	}
	return out
}
