package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/storage"
)

// Vault backends.
const (
	VaultStorage = "storage"
	VaultKeyring = "keyring"
)

// keyringService is the service name of keyring entries. The account name
// is the provider ID.
const keyringService = "betterprompt"

// Vault persists the keys saved by the user between runs.
type Vault interface {
	Load() (map[string]string, error)
	Save(keys map[string]string) error
}

// OpenVault returns the vault for backend. "" means storage.
func OpenVault(backend string, store storage.Store) (Vault, error) {
	switch backend {
	case "", VaultStorage:
		return &StorageVault{store: store}, nil
	case VaultKeyring:
		return KeyringVault{}, nil
	default:
		return nil, fmt.Errorf("unknown key store %q, valid: %s, %s", backend, VaultStorage, VaultKeyring)
	}
}

// StorageVault keeps keys in plain text under storage.KeyAPIKeys.
type StorageVault struct {
	store storage.Store
}

func (v *StorageVault) Load() (map[string]string, error) {
	keys := make(map[string]string)
	if _, err := v.store.Get(storage.KeyAPIKeys, &keys); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = make(map[string]string)
	}
	return keys, nil
}

func (v *StorageVault) Save(keys map[string]string) error {
	return v.store.Set(storage.KeyAPIKeys, keys)
}

// KeyringVault keeps one entry per provider in the OS keyring.
type KeyringVault struct{}

func (KeyringVault) Load() (map[string]string, error) {
	keys := make(map[string]string)
	for _, id := range provider.IDs() {
		key, err := keyring.Get(keyringService, string(id))
		if errors.Is(err, keyring.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("keyring: failed to read %s key: %w", id, err)
		}
		keys[string(id)] = key
	}
	return keys, nil
}

// Save writes the keys present in keys and deletes the entries of every
// other provider.
func (KeyringVault) Save(keys map[string]string) error {
	for _, id := range provider.IDs() {
		key := keys[string(id)]
		if key == "" {
			if err := keyring.Delete(keyringService, string(id)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("keyring: failed to delete %s key: %w", id, err)
			}
			continue
		}
		if err := keyring.Set(keyringService, string(id), key); err != nil {
			return fmt.Errorf("keyring: failed to save %s key: %w", id, err)
		}
	}
	return nil
}
