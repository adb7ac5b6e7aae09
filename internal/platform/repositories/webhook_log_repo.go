package repositories

import (
	"database/sql"

	"shopmirror/internal/platform/models"
)

type WebhookLogRepository struct {
	db *sql.DB
}

func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

func (r *WebhookLogRepository) Insert(l *models.WebhookLog) error {
	var tenantID interface{}
	if l.TenantID != "" {
		tenantID = l.TenantID
	}
	_, err := r.db.Exec(`
		INSERT INTO webhook_logs (id, tenant_id, shop_domain, topic, external_id, processed, error, duration_ms, received_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, tenantID, l.ShopDomain, l.Topic, l.ExternalID, l.Processed, l.Error, l.DurationMs, l.ReceivedAt, l.ProcessedAt)
	return err
}

func (r *WebhookLogRepository) Finish(id, tenantID, externalID string, processed bool, errMsg string, durationMs, processedAt int64) error {
	var tid interface{}
	if tenantID != "" {
		tid = tenantID
	}
	_, err := r.db.Exec(`
		UPDATE webhook_logs
		SET tenant_id = ?, external_id = ?, processed = ?, error = ?, duration_ms = ?, processed_at = ?
		WHERE id = ?
	`, tid, externalID, processed, errMsg, durationMs, processedAt, id)
	return err
}

func (r *WebhookLogRepository) ListByShopDomain(domain string, limit int) ([]*models.WebhookLog, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, shop_domain, topic, external_id, processed, error, duration_ms, received_at, processed_at
		FROM webhook_logs WHERE shop_domain = ?
		ORDER BY received_at DESC LIMIT ?
	`, domain, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogs(rows)
}

func (r *WebhookLogRepository) ListByExternalID(externalID string, limit int) ([]*models.WebhookLog, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, shop_domain, topic, external_id, processed, error, duration_ms, received_at, processed_at
		FROM webhook_logs WHERE external_id = ?
		ORDER BY received_at DESC LIMIT ?
	`, externalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) ([]*models.WebhookLog, error) {
	var logs []*models.WebhookLog
	for rows.Next() {
		l := &models.WebhookLog{}
		var tenantID, errMsg sql.NullString
		var processedAt sql.NullInt64

		if err := rows.Scan(&l.ID, &tenantID, &l.ShopDomain, &l.Topic, &l.ExternalID,
			&l.Processed, &errMsg, &l.DurationMs, &l.ReceivedAt, &processedAt); err != nil {
			return nil, err
		}

		if tenantID.Valid {
			l.TenantID = tenantID.String
		}
		if errMsg.Valid {
			l.Error = errMsg.String
		}
		if processedAt.Valid {
			val := processedAt.Int64
			l.ProcessedAt = &val
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
