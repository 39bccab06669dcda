package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by a Store when the key has no value.
var ErrNotFound = errors.New("secret not found")

// Store is a secure key/value store for secrets.
type Store interface {
	Load(key string) (string, error)
	Save(key, value string) error
	Delete(key string) error
}

// KeyringStore keeps secrets in the platform credential store (Secret
// Service, macOS Keychain, Windows Credential Manager).
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Load(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return value, nil
}

func (s *KeyringStore) Save(key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// FileStore keeps each secret in its own 0600 file under dir. It serves
// hosts without a credential service.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *FileStore) Load(key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Save writes through a temp file so readers never see a partial secret.
func (s *FileStore) Save(key, value string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create secret directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".secret-*")
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set secret file mode: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to store secret file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete secret file: %w", err)
	}
	return nil
}
