// Package credential reads and writes secrets in the OS keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/taskmaster/agenda/internal/infrastructure/config"
)

// ErrNotFound is returned when the keyring holds no item for the key.
var ErrNotFound = keyring.ErrKeyNotFound

// Store is a keyring bound to one service name.
type Store struct {
	ring keyring.Keyring
}

// Open returns a configured keyring. An empty backend lets the platform pick.
func Open(cfg config.KeyringConfig) (*Store, error) {
	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if cfg.Backend != "" {
		backends = []keyring.BackendType{keyring.BackendType(cfg.Backend)}
	}

	fileDir := cfg.FileDir
	if fileDir == "" {
		fileDir = "~/.config/agenda/credentials"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              cfg.Service,
		AllowedBackends:          backends,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "agenda " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// ResolveDatabasePassword fills cfg.Password from the keyring when the
// keyring is enabled and no password was configured explicitly.
func ResolveDatabasePassword(cfg *config.DatabaseConfig) error {
	if !cfg.Keyring.Enabled || cfg.Password != "" || cfg.Driver == "sqlite" {
		return nil
	}

	store, err := Open(cfg.Keyring)
	if err != nil {
		return err
	}

	password, err := store.Get(cfg.Keyring.Key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg.Password = password
	return nil
}
