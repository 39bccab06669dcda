// Package token manages the bearer token that guards the automation API.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// Key is the store key holding the API token.
	Key = "api-token"
	// Service names the entry in the platform credential store.
	Service = "clipkeep"

	tokenBytes = 32
)

// Manager issues and verifies the API token. It reads through the store on
// every call so a token regenerated by another process is honoured at once.
type Manager struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Token returns the current token, generating and saving one on first use.
func (m *Manager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.Load(Key)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	m.logger.Info("Generating API token")
	return m.replace()
}

// Regenerate replaces the token. The previous one stops working immediately.
func (m *Manager) Regenerate() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Regenerating API token")
	return m.replace()
}

// Verify reports whether candidate is the current token, in constant time.
func (m *Manager) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	current, err := m.store.Load(Key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("Failed to load API token", zap.Error(err))
		}
		return false
	}
	return SecureCompare(candidate, current)
}

func (m *Manager) replace() (string, error) {
	next, err := Generate()
	if err != nil {
		return "", err
	}
	if err := m.store.Save(Key, next); err != nil {
		return "", fmt.Errorf("failed to save API token: %w", err)
	}
	return next, nil
}

// Generate returns a random hex token.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SecureCompare compares s1 and s2 without leaking how long a matching
// prefix is.
func SecureCompare(s1, s2 string) bool {
	return subtle.ConstantTimeCompare([]byte(s1), []byte(s2)) == 1
}
