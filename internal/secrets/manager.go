package secrets

import (
	"encoding/json"
	"fmt"
)

// Manager seals JSON values with an AgeEncryptor. The OAuth layer uses it
// for grant props so upstream credentials are never stored in the clear.
type Manager struct {
	encryptor *AgeEncryptor
}

// NewManager creates a secrets Manager.
func NewManager(enc *AgeEncryptor) *Manager {
	return &Manager{encryptor: enc}
}

// Seal serializes v and encrypts it.
func (m *Manager) Seal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal sealed value: %w", err)
	}
	encrypted, err := m.encryptor.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt sealed value: %w", err)
	}
	return encrypted, nil
}

// Open decrypts data and decodes it into v.
func (m *Manager) Open(data []byte, v any) error {
	plaintext, err := m.encryptor.Decrypt(data)
	if err != nil {
		return fmt.Errorf("decrypt sealed value: %w", err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal sealed value: %w", err)
	}
	return nil
}
