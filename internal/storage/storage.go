// Package storage persists JSON values under string keys.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Keys used by the command line host.
const (
	KeyCurrentProvider       = "currentProvider"
	KeyAPIKeys               = "apiKeys"
	KeyCustomModels          = "customModels"
	KeyActiveTemplate        = "activeTemplate"
	KeyCustomPrompt          = "customPrompt"
	KeyHistory               = "optHistory"
	KeyMultiRoundSettings    = "multiRoundSettings"
	KeyErrorHandlingSettings = "errorHandlingSettings"
)

// Store is a key/value store of JSON-serializable values.
type Store interface {
	// Get decodes the value under key into dst. found is false when the
	// key does not exist, in which case dst is left untouched.
	Get(key string, dst any) (found bool, err error)
	Set(key string, value any) error
	Remove(key string) error
	Clear() error
	Keys() ([]string, error)
	Close() error
}

// Drivers understood by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the store for driver at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// MemoryStore keeps values in memory. Values are stored encoded so that
// callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

func (m *MemoryStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.values[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.values = make(map[string]json.RawMessage)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.values), nil
}

func (m *MemoryStore) Close() error { return nil }

func decode(key string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
