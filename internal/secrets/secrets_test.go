package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAgeEncryptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "age.key")
	enc, err := NewAgeEncryptor(path)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	plaintext := []byte("api-key-123")
	ct, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Fatal("ciphertext contains plaintext")
	}

	// A second encryptor over the same file must decrypt.
	enc2, err := NewAgeEncryptor(path)
	if err != nil {
		t.Fatalf("reload encryptor: %v", err)
	}
	got, err := enc2.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("key perms = %v, want 0600", info.Mode().Perm())
	}
}

func TestEphemeralKeysDiffer(t *testing.T) {
	a, err := NewEphemeralEncryptor()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEphemeralEncryptor()
	if err != nil {
		t.Fatal(err)
	}
	ct, err := a.Encrypt([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(ct); err == nil {
		t.Fatal("expected decrypt with another identity to fail")
	}
}

func TestManagerSealOpen(t *testing.T) {
	enc, err := NewEphemeralEncryptor()
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(enc)

	type props struct {
		Credential      string `json:"credential"`
		CustomerContext string `json:"customer_context"`
	}
	sealed, err := m.Seal(props{Credential: "tok-B", CustomerContext: "cust-123"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	var got props
	if err := m.Open(sealed, &got); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Credential != "tok-B" || got.CustomerContext != "cust-123" {
		t.Fatalf("got %+v", got)
	}

	if err := m.Open([]byte("garbage"), &got); err == nil {
		t.Fatal("expected error opening garbage")
	}
}
