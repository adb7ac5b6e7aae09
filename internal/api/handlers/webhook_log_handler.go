package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// WebhookLogHandler serves the delivery audit trail to operators, mainly for
// duplicate-delivery diagnostics.
type WebhookLogHandler struct {
	repo *repositories.WebhookLogRepository
}

func NewWebhookLogHandler(repo *repositories.WebhookLogRepository) *WebhookLogHandler {
	return &WebhookLogHandler{repo: repo}
}

func (h *WebhookLogHandler) List(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	externalID := r.URL.Query().Get("external_id")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid limit", nil)
			return
		}
		if parsed > 200 {
			parsed = 200
		}
		limit = parsed
	}

	var (
		logs []*models.WebhookLog
		err  error
	)
	switch {
	case externalID != "":
		logs, err = h.repo.ListByExternalID(externalID, limit)
	case shop != "":
		logs, err = h.repo.ListByShopDomain(shop, limit)
	default:
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Either shop or external_id is required", nil)
		return
	}
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Failed to load webhook logs", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
