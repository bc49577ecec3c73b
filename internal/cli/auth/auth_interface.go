package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyToken is returned when an empty credential is written to a store
var ErrEmptyToken = errors.New("refusing to store an empty token")

// TokenStore is a single-slot credential store. It holds at most one token.
// Clear on an empty store is a no-op.
type TokenStore interface {
	Put(token string) error
	Get() (string, error)
	Clear() error
}

// Store backend names accepted by NewStore
const (
	StoreKeyring = "keyring"
	StoreFile    = "file"
	StoreMemory  = "memory"
)

// NewStore returns the store backend with the given name for an endpoint
func NewStore(kind, endpoint string) (TokenStore, error) {
	switch strings.ToLower(kind) {
	case "", StoreKeyring:
		return NewKeyringStore(endpoint), nil
	case StoreFile:
		return NewFileStore(endpoint)
	case StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q (expected keyring, file or memory)", kind)
	}
}

// MemoryStore keeps the token in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ TokenStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Put(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoCredential
	}
	return m.token, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
