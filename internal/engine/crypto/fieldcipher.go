package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/keys"
)

// FieldCipher encrypts individual PII fields with the tenant's active data
// key. AES-GCM with a fresh nonce per call: encrypting the same plaintext
// twice yields different ciphertext, so equality lookups must never target an
// encrypted column.
//
// Envelope format is "v<keyVersion>:base64(nonce||ciphertext)". The version
// prefix lets Decrypt select the historical key after a rotation, so old rows
// stay readable without re-encryption.
type FieldCipher struct {
	keys keys.Provider
}

func NewFieldCipher(provider keys.Provider) *FieldCipher {
	return &FieldCipher{keys: provider}
}

func (c *FieldCipher) Encrypt(tenantID, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key, err := c.keys.ActiveDataKey(tenantID)
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "encrypt", Err: err}
	}

	aead, err := newAEAD(key.Key)
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "encrypt", Err: err}
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", &apperrors.EncryptionError{Op: "encrypt", Err: err}
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf("v%d:%s", key.Version, base64.StdEncoding.EncodeToString(sealed)), nil
}

func (c *FieldCipher) Decrypt(tenantID, envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	var version int
	idx := strings.IndexByte(envelope, ':')
	if idx < 2 || envelope[0] != 'v' {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: fmt.Errorf("malformed envelope")}
	}
	if _, err := fmt.Sscanf(envelope[:idx], "v%d", &version); err != nil {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: fmt.Errorf("malformed key version")}
	}

	key, err := c.keys.DataKeyVersion(tenantID, version)
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: err}
	}

	sealed, err := base64.StdEncoding.DecodeString(envelope[idx+1:])
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: err}
	}

	aead, err := newAEAD(key.Key)
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: err}
	}
	if len(sealed) < aead.NonceSize() {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: fmt.Errorf("ciphertext too short")}
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &apperrors.EncryptionError{Op: "decrypt", Err: err}
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
