package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// Trail records one webhook_logs row per delivery attempt: Begin inserts the
// row before processing starts, Finish updates it with the outcome. Both are
// synchronous so a delivery is never processed without its audit row.
type Trail struct {
	repo *repositories.WebhookLogRepository
}

func NewTrail(repo *repositories.WebhookLogRepository) *Trail {
	return &Trail{repo: repo}
}

func (t *Trail) Begin(shopDomain, topic string) (*models.WebhookLog, error) {
	entry := &models.WebhookLog{
		ID:         "wl_" + uuid.New().String(),
		ShopDomain: shopDomain,
		Topic:      topic,
		ReceivedAt: time.Now().Unix(),
	}
	if err := t.repo.Insert(entry); err != nil {
		return nil, &apperrors.PersistenceError{Op: "audit insert", Err: err}
	}
	return entry, nil
}

func (t *Trail) Finish(entry *models.WebhookLog, tenantID, externalID, errMsg string, elapsed time.Duration) {
	now := time.Now().Unix()
	entry.TenantID = tenantID
	entry.ExternalID = externalID
	entry.Processed = errMsg == ""
	entry.Error = errMsg
	entry.DurationMs = elapsed.Milliseconds()
	entry.ProcessedAt = &now

	if err := t.repo.Finish(entry.ID, tenantID, externalID, entry.Processed, errMsg, entry.DurationMs, now); err != nil {
		log.Error().Err(err).Str("log_id", entry.ID).Msg("failed to finalize audit entry")
	}

	evt := log.Info()
	if !entry.Processed {
		evt = log.Warn().Str("error", errMsg)
	}
	evt.Str("shop_domain", entry.ShopDomain).
		Str("topic", entry.Topic).
		Str("external_id", externalID).
		Bool("processed", entry.Processed).
		Int64("duration_ms", entry.DurationMs).
		Msg("webhook delivery")
}
