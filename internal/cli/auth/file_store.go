package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crmdash/crmdash/internal/cli/userconfig"
)

const credentialsFileName = "credentials.json"

// FileStore keeps the token in a 0600 JSON file, one slot per endpoint.
// Used on hosts without a keychain.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  string
}

var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a file-backed store under the user config directory
func NewFileStore(endpoint string) (*FileStore, error) {
	dir, err := userconfig.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFileStoreAt(filepath.Join(dir, credentialsFileName), endpoint), nil
}

// NewFileStoreAt creates a file-backed store at an explicit path
func NewFileStoreAt(path, endpoint string) *FileStore {
	return &FileStore{path: path, key: slotKey(endpoint)}
}

func (f *FileStore) Put(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.read()
	if err != nil {
		return err
	}
	slots[f.key] = token
	return f.write(slots)
}

func (f *FileStore) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.read()
	if err != nil {
		return "", err
	}
	token, ok := slots[f.key]
	if !ok || token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := slots[f.key]; !ok {
		return nil
	}
	delete(slots, f.key)
	return f.write(slots)
}

func (f *FileStore) read() (map[string]string, error) {
	slots := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return slots, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	// A file holding "null" decodes to a nil map
	if slots == nil {
		slots = make(map[string]string)
	}
	return slots, nil
}

func (f *FileStore) write(slots map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}
