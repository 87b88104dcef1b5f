// Package secrets keeps API credentials out of the database.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "tpagent"

// Well-known secret names.
const (
	JiraAPIToken = "jira_api_token"
	GrokAPIKey   = "grok_api_key"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Store reads and writes named secrets.
type Store struct {
	ring keyring.Keyring
}

// Open opens the keyring selected by backend. The file backend encrypts
// items under dir with password.
func Open(backend, dir, password string) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		if password == "" {
			return nil, errors.New("KEYRING_PASSWORD is required for the file keyring")
		}
		ring, err := keyring.Open(keyring.Config{
			ServiceName:      serviceName,
			AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
			FileDir:          dir,
			FilePasswordFunc: keyring.FixedStringPrompt(password),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring: %w", err)
		}
		return &Store{ring: ring}, nil
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", backend)
	}
}

// NewMemory returns a store that keeps secrets in process memory.
func NewMemory() *Store {
	return &Store{ring: keyring.NewArrayKeyring(nil)}
}

// Get returns the secret stored under name, or "" if there is none.
func (s *Store) Get(name string) (string, error) {
	item, err := s.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores value under name. An empty value removes the secret.
func (s *Store) Set(name, value string) error {
	if name == "" {
		return errors.New("secret name is required")
	}
	if value == "" {
		return s.Remove(name)
	}
	err := s.ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(value),
		Label: serviceName + " " + name,
	})
	if err != nil {
		return fmt.Errorf("failed to store secret %s: %w", name, err)
	}
	return nil
}

// Remove deletes the secret stored under name. Missing secrets are ignored.
func (s *Store) Remove(name string) error {
	err := s.ring.Remove(name)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to remove secret %s: %w", name, err)
}

// Has reports whether a non-empty secret is stored under name.
func (s *Store) Has(name string) bool {
	v, err := s.Get(name)
	return err == nil && v != ""
}
