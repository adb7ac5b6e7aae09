package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "shopmirror/internal/api/context"
	"shopmirror/internal/api/handlers"
	"shopmirror/internal/api/middleware"
	"shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/auth"
)

type Dependencies struct {
	WebhookHandler    *handlers.WebhookHandler
	WebhookLogHandler *handlers.WebhookLogHandler
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Inbound deliveries from the commerce platform. HMAC-authenticated, no
	// session auth and no rate limit.
	router.POST("/webhooks/commerce", wrap(deps.WebhookHandler.Receive))

	// Operator diagnostics
	authMid := deps.AuthMiddleware
	router.GET("/api/v1/webhook-logs",
		chain(deps.WebhookLogHandler.List, authMid.Handle, deps.RateLimiter.Handle, requireRole("operator", "admin")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
