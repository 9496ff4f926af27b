// pkg/session/store.go
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorruptCredential is returned by a CredentialStore whose persisted blob
// cannot be parsed. Callers treat it as "no session" and clear the entry.
var ErrCorruptCredential = errors.New("corrupt persisted credential")

// CredentialStore holds at most one Identity. It is the single persisted
// source of truth for the session; only the Authority mutates it.
type CredentialStore interface {
	Load() (*Identity, error)
	Save(id *Identity) error
	Clear() error
}

// MemoryStore is an in-process CredentialStore, used by tests and by tools
// that must not persist credentials.
type MemoryStore struct {
	mu sync.Mutex
	id *Identity
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		return nil, nil
	}
	cp := *m.id
	return &cp, nil
}

func (m *MemoryStore) Save(id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *id
	m.id = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = nil
	return nil
}

// storeVersion is bumped whenever the on-disk envelope changes shape. A
// version we do not recognize is treated as corrupt, not as a crash.
const storeVersion = 1

type storedCredential struct {
	Version  int       `json:"version"`
	Identity *Identity `json:"identity"`
}

// FileStore persists the credential under a stable path (the operator CLI's
// stand-in for browser local storage). Writes go through a temp file rename;
// the file is owner-readable only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// DefaultCredentialPath places the credential file under the user config dir.
func DefaultCredentialPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "storegate", "credentials.json"), nil
}

func (f *FileStore) Load() (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env storedCredential
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, ErrCorruptCredential
	}
	if env.Version != storeVersion || env.Identity == nil || env.Identity.Credential == "" {
		return nil, ErrCorruptCredential
	}
	return env.Identity, nil
}

func (f *FileStore) Save(id *Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(storedCredential{Version: storeVersion, Identity: id})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
