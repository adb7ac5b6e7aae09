package crypto

import (
	"fmt"
	"strings"
	"testing"

	"shopmirror/internal/platform/keys"
)

// staticKeys is a Provider with fixed key material, no database behind it.
type staticKeys struct {
	active   int
	material map[int][]byte
}

func newStaticKeys() *staticKeys {
	return &staticKeys{
		active: 1,
		material: map[int][]byte{
			1: []byte("0123456789abcdef0123456789abcdef"),
			2: []byte("fedcba9876543210fedcba9876543210"),
		},
	}
}

func (s *staticKeys) ActiveSecret(string) (string, error) { return "", nil }

func (s *staticKeys) ActiveDataKey(string) (keys.DataKey, error) {
	return keys.DataKey{Version: s.active, Key: s.material[s.active]}, nil
}

func (s *staticKeys) DataKeyVersion(_ string, version int) (keys.DataKey, error) {
	key, ok := s.material[version]
	if !ok {
		return keys.DataKey{}, fmt.Errorf("no key version %d", version)
	}
	return keys.DataKey{Version: version, Key: key}, nil
}

func (s *staticKeys) Invalidate(string) {}

func TestFieldCipher_RoundTrip(t *testing.T) {
	cipher := NewFieldCipher(newStaticKeys())

	envelope, err := cipher.Encrypt("tenant_1", "jon@example.com")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(envelope, "v1:") {
		t.Errorf("envelope should carry the key version, got %q", envelope)
	}

	plaintext, err := cipher.Decrypt("tenant_1", envelope)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext != "jon@example.com" {
		t.Errorf("Decrypt() = %q", plaintext)
	}
}

func TestFieldCipher_RandomizedCiphertext(t *testing.T) {
	cipher := NewFieldCipher(newStaticKeys())

	first, err := cipher.Encrypt("tenant_1", "jon@example.com")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := cipher.Encrypt("tenant_1", "jon@example.com")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Fresh nonce per call: identical plaintext must not produce identical
	// ciphertext, which is why lookups never target encrypted columns.
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestFieldCipher_LazyRotation(t *testing.T) {
	provider := newStaticKeys()
	cipher := NewFieldCipher(provider)

	old, err := cipher.Encrypt("tenant_1", "555-0100")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Rotate: new writes use v2, old envelopes stay readable.
	provider.active = 2

	fresh, err := cipher.Encrypt("tenant_1", "555-0100")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(fresh, "v2:") {
		t.Errorf("post-rotation envelope should use v2, got %q", fresh)
	}

	plaintext, err := cipher.Decrypt("tenant_1", old)
	if err != nil {
		t.Fatalf("Decrypt() of pre-rotation envelope error = %v", err)
	}
	if plaintext != "555-0100" {
		t.Errorf("Decrypt() = %q", plaintext)
	}
}

func TestFieldCipher_EmptyAndTampered(t *testing.T) {
	cipher := NewFieldCipher(newStaticKeys())

	envelope, err := cipher.Encrypt("tenant_1", "")
	if err != nil || envelope != "" {
		t.Errorf("empty plaintext should encrypt to empty envelope, got %q, %v", envelope, err)
	}

	valid, err := cipher.Encrypt("tenant_1", "Jon")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	mid := len(valid) / 2
	flip := byte('A')
	if valid[mid] == flip {
		flip = 'B'
	}
	tampered := valid[:mid] + string(flip) + valid[mid+1:]
	if _, err := cipher.Decrypt("tenant_1", tampered); err == nil {
		t.Error("tampered ciphertext should fail authentication")
	}

	if _, err := cipher.Decrypt("tenant_1", "not-an-envelope"); err == nil {
		t.Error("malformed envelope should fail")
	}
}
