// Package credential stores API keys in the operating system keyring so they
// need not live in configuration files.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "relnotes"

// Well-known item keys.
const (
	AzureOpenAIKey  = "azure-openai-key"
	AtlassianAPIKey = "atlassian-api-key"
)

// ErrNotFound is returned when the keyring holds no item for a key.
var ErrNotFound = errors.New("credential: not found")

// Store reads and writes credentials in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file under
// dir when no native backend is available.
func Open(dir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("relnotes-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("credential: open keyring: %w", err)
	}

	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store { return &Store{ring: ring} }

// Get returns the credential stored under key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	if err != nil {
		return "", fmt.Errorf("credential: get %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: serviceName + " " + key}); err != nil {
		return fmt.Errorf("credential: set %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("credential: delete %q: %w", key, err)
	}

	return nil
}

// Fill replaces every empty *dst with the keyring value for its key. Missing
// items are left empty; other keyring errors are returned.
func (s *Store) Fill(targets map[string]*string) error {
	for key, dst := range targets {
		if *dst != "" {
			continue
		}

		v, err := s.Get(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return err
		}

		*dst = v
	}

	return nil
}
