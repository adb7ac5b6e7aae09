package models

// Tenant is a connected store in the global database. The pipeline treats it
// as read-only except for deactivation on an app/uninstalled delivery.
type Tenant struct {
	ID            string `json:"id"`
	ShopDomain    string `json:"shop_domain"`
	Active        bool   `json:"active"`
	WebhookSecret string `json:"-"`
	KeyVersion    int    `json:"key_version"`
	DBFilePath    string `json:"db_file_path"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// WebhookLog is one row per delivery attempt, append-only. It is the audit
// trail for duplicate-delivery diagnostics, not the deduplication mechanism.
type WebhookLog struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id,omitempty"`
	ShopDomain  string `json:"shop_domain"`
	Topic       string `json:"topic"`
	ExternalID  string `json:"external_id,omitempty"`
	Processed   bool   `json:"processed"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	ReceivedAt  int64  `json:"received_at"`
	ProcessedAt *int64 `json:"processed_at,omitempty"`
}
