package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	apperrors "shopmirror/internal/pkg/errors"
)

// VerifySignature authenticates a delivery against the tenant's webhook
// secret. The signature header carries base64(HMAC-SHA256(body)).
//
// body must be the exact bytes received on the wire, captured before any JSON
// parsing. Verifying a re-serialized body silently breaks the signature.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return &apperrors.AuthenticationError{Reason: "no webhook secret configured"}
	}
	if signature == "" {
		return &apperrors.AuthenticationError{Reason: "missing signature header"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant time; it also rejects length mismatches.
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &apperrors.AuthenticationError{Reason: "signature mismatch"}
	}
	return nil
}
