package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// PendingSelection is an operator consent waiting for a customer choice.
// The credential stays server side; the form only carries the state token.
type PendingSelection struct {
	Request    AuthRequest
	Credential string
	CreatedAt  time.Time
}

// StateStore is an in-memory store of pending selections with TTL cleanup.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]PendingSelection
	ttl     time.Duration
}

// NewStateStore creates a StateStore with a 10-minute TTL.
func NewStateStore() *StateStore {
	return &StateStore{
		entries: make(map[string]PendingSelection),
		ttl:     10 * time.Minute,
	}
}

// Create stores a pending selection and returns its state token.
func (s *StateStore) Create(req AuthRequest, credential string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanup()

	token, err := generateStateToken()
	if err != nil {
		return "", err
	}
	s.entries[token] = PendingSelection{
		Request:    req,
		Credential: credential,
		CreatedAt:  time.Now(),
	}
	return token, nil
}

// Peek returns the entry without consuming it, so a rejected form can be
// shown again.
func (s *StateStore) Peek(state string) (*PendingSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok || time.Since(entry.CreatedAt) > s.ttl {
		return nil, false
	}
	return &entry, true
}

// Take consumes a state token and returns the associated entry.
func (s *StateStore) Take(state string) (*PendingSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return nil, false
	}
	delete(s.entries, state)

	if time.Since(entry.CreatedAt) > s.ttl {
		return nil, false
	}
	return &entry, true
}

// cleanup removes expired entries. Must be called with mu held.
func (s *StateStore) cleanup() {
	now := time.Now()
	for k, v := range s.entries {
		if now.Sub(v.CreatedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}

func generateStateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
