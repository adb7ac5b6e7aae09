package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "shopmirror/internal/api/context"
	"shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/auth"
)

// AuthMiddleware guards the operator diagnostics API. Webhook ingestion never
// passes through here; deliveries authenticate with the tenant's HMAC secret.
type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
