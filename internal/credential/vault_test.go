package credential

import (
	"reflect"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/Dhanuzh/betterprompt/internal/storage"
)

func TestVaults(t *testing.T) {
	keyring.MockInit()

	for _, backend := range []string{VaultStorage, VaultKeyring} {
		t.Run(backend, func(t *testing.T) {
			v, err := OpenVault(backend, storage.NewMemoryStore())
			if err != nil {
				t.Fatal(err)
			}

			keys, err := v.Load()
			if err != nil {
				t.Fatal(err)
			}
			if len(keys) != 0 {
				t.Fatalf("fresh vault = %v, want empty", keys)
			}

			want := map[string]string{"openai": openAIKey, "anthropic": "sk-ant-abc"}
			if err := v.Save(want); err != nil {
				t.Fatal(err)
			}
			if keys, _ = v.Load(); !reflect.DeepEqual(keys, want) {
				t.Errorf("Load() = %v, want %v", keys, want)
			}

			delete(want, "anthropic")
			if err := v.Save(want); err != nil {
				t.Fatal(err)
			}
			if keys, _ = v.Load(); !reflect.DeepEqual(keys, want) {
				t.Errorf("after removal Load() = %v, want %v", keys, want)
			}
		})
	}
}

func TestOpenVaultUnknown(t *testing.T) {
	if _, err := OpenVault("vault9000", storage.NewMemoryStore()); err == nil {
		t.Error("unknown backend should fail")
	}
}
