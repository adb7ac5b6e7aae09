package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shopmirror/internal/engine/pipeline"
	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/config"
)

type WebhookHandler struct {
	processor *pipeline.Processor
	cfg       config.WebhooksConfig
}

func NewWebhookHandler(processor *pipeline.Processor, cfg config.WebhooksConfig) *WebhookHandler {
	return &WebhookHandler{processor: processor, cfg: cfg}
}

type webhookResponse struct {
	Success   bool `json:"success"`
	Processed bool `json:"processed"`
}

// Receive ingests one webhook delivery. The raw body is captured before any
// JSON parsing so the signature verifies against the exact wire bytes, and
// oversized bodies are rejected before anything touches a database.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperrors.WriteError(w, http.StatusRequestEntityTooLarge, apperrors.ErrCodePayloadTooLarge, "Request body exceeds maximum size", nil)
			return
		}
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Unable to read request body", nil)
		return
	}

	shopDomain := r.Header.Get(h.cfg.ShopDomainHeader)
	topic := r.Header.Get(h.cfg.TopicHeader)
	signature := r.Header.Get(h.cfg.SignatureHeader)

	if topic == "" {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Missing webhook topic header", nil)
		return
	}

	result, err := h.processor.Process(r.Context(), pipeline.Delivery{
		ShopDomain: shopDomain,
		Topic:      topic,
		Signature:  signature,
		Body:       body,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	// NoOp topics report processed too; the sender must not retry them.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhookResponse{Success: true, Processed: result.Log.Processed})
}

func writePipelineError(w http.ResponseWriter, err error) {
	var (
		authErr       *apperrors.AuthenticationError
		validationErr *apperrors.ValidationError
		notFoundErr   *apperrors.NotFoundError
		inactiveErr   *apperrors.InactiveTenantError
	)

	switch {
	case errors.As(err, &validationErr):
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, validationErr.Error(), nil)
	case errors.As(err, &authErr):
		apperrors.WriteError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Webhook signature verification failed", nil)
	case errors.As(err, &notFoundErr):
		apperrors.WriteError(w, http.StatusNotFound, apperrors.ErrCodeNotFound, "Unknown shop", nil)
	case errors.As(err, &inactiveErr):
		apperrors.WriteError(w, http.StatusGone, apperrors.ErrCodeTenantInactive, "Shop is no longer active", nil)
	default:
		// Persistence and encryption failures: the sender retries, which is
		// safe because reconciliation is idempotent.
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Failed to process webhook", nil)
	}
}
