// Package credential keeps the API key of each provider and the active
// provider selection.
package credential

import (
	"fmt"
	"sync"

	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

// Store maps providers to API keys. Writes are last-write-wins.
type Store struct {
	mu     sync.RWMutex
	keys   map[provider.ID]string
	active provider.ID
}

// NewStore returns an empty store with active as the selected provider.
// An unknown active provider falls back to gemini.
func NewStore(active provider.ID) *Store {
	if !active.Valid() {
		active = provider.Gemini
	}
	return &Store{keys: make(map[provider.ID]string), active: active}
}

// SetAPIKey stores key for id after checking its shape.
func (s *Store) SetAPIKey(id provider.ID, key string) error {
	if !id.Valid() {
		return fmt.Errorf("unknown provider %q", id)
	}
	if !validate.APIKey(key, id) {
		return &validate.ValidationError{Reasons: []string{fmt.Sprintf("invalid API key format for %s", id)}}
	}
	s.mu.Lock()
	s.keys[id] = key
	s.mu.Unlock()
	return nil
}

// Restore loads previously saved keys. Unknown providers and empty keys are
// skipped. Keys that fail the shape check are skipped too and returned in
// provider.IDs order.
func (s *Store) Restore(keys map[string]string) (rejected []provider.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range provider.IDs() {
		key := keys[string(id)]
		if key == "" {
			continue
		}
		if !validate.APIKey(key, id) {
			rejected = append(rejected, id)
			continue
		}
		s.keys[id] = key
	}
	return rejected
}

// APIKey returns the key for id. ok is false when none is set.
func (s *Store) APIKey(id provider.ID) (key string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok = s.keys[id]
	return key, ok
}

// CurrentAPIKey returns the key of the active provider.
func (s *Store) CurrentAPIKey() (string, bool) {
	return s.APIKey(s.Provider())
}

// RemoveAPIKey forgets the key for id.
func (s *Store) RemoveAPIKey(id provider.ID) {
	s.mu.Lock()
	delete(s.keys, id)
	s.mu.Unlock()
}

// SetProvider selects id as the active provider. Unknown ids are ignored;
// the return value reports whether the selection changed to id.
func (s *Store) SetProvider(id provider.ID) bool {
	if !id.Valid() {
		return false
	}
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return true
}

// SetProviderByName is SetProvider for user input such as "Google".
func (s *Store) SetProviderByName(name string) bool {
	id, err := provider.ParseID(name)
	if err != nil {
		return false
	}
	return s.SetProvider(id)
}

// Provider returns the active provider.
func (s *Store) Provider() provider.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Configured lists the providers that have a key, in provider.IDs order.
func (s *Store) Configured() []provider.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []provider.ID
	for _, id := range provider.IDs() {
		if _, ok := s.keys[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns a copy of all keys keyed by provider name, the shape the
// host persists.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.keys))
	for id, key := range s.keys {
		out[string(id)] = key
	}
	return out
}

// Mask hides all but the first and last four characters of key.
func Mask(key string) string {
	if len(key) <= 12 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
