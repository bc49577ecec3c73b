package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "crmdash-cli"

	// TokenKey is the name of the single credential slot.
	TokenKey = "access_token"
)

// ErrNoCredential is returned by Get when the slot is empty.
var ErrNoCredential = errors.New("not authenticated. Please run 'crmdash login' first")

// slotKey returns the name of the credential slot for one endpoint
func slotKey(endpoint string) string {
	if endpoint == "" {
		return TokenKey
	}
	return fmt.Sprintf("%s-%s", TokenKey, strings.TrimRight(endpoint, "/"))
}

// KeyringStore persists the access token in the OS keychain/credential manager
type KeyringStore struct {
	key string
}

var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a keyring-backed store for the given endpoint URL
func NewKeyringStore(endpoint string) *KeyringStore {
	return &KeyringStore{key: slotKey(endpoint)}
}

// Put replaces the stored token
func (k *KeyringStore) Put(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := keyring.Set(service, k.key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Get retrieves the stored token
func (k *KeyringStore) Get() (string, error) {
	token, err := keyring.Get(service, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Clear removes the stored token
func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(service, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
