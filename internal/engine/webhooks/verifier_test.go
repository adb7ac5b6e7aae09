package webhooks

import (
	"errors"
	"testing"

	apperrors "shopmirror/internal/pkg/errors"
)

func TestVerifySignature(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: printf 'payload' | openssl dgst -sha256 -hmac "secret" -binary | base64
	valid := "uC/LeRrOxXhZuYm0MKgmSIzi5Hn9+SMmvQoug3WkK6Q="

	if err := VerifySignature(payload, valid, secret); err != nil {
		t.Errorf("VerifySignature() with valid signature returned %v", err)
	}

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
	}{
		{"wrong signature", payload, "bm90IHRoZSByaWdodCBzaWduYXR1cmU=", secret},
		{"missing signature", payload, "", secret},
		{"missing secret", payload, valid, ""},
		{"tampered body", []byte("payload2"), valid, secret},
		{"truncated signature", payload, valid[:10], secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.body, tt.signature, tt.secret)
			if err == nil {
				t.Fatal("expected authentication error, got nil")
			}
			var authErr *apperrors.AuthenticationError
			if !errors.As(err, &authErr) {
				t.Errorf("expected AuthenticationError, got %T", err)
			}
		})
	}
}
