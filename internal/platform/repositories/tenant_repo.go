package repositories

import (
	"database/sql"
	"time"

	"shopmirror/internal/platform/models"
)

type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(t *models.Tenant) error {
	_, err := r.db.Exec(`
		INSERT INTO tenants (id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ShopDomain, t.Active, t.WebhookSecret, t.KeyVersion, t.DBFilePath, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TenantRepository) GetByShopDomain(domain string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.QueryRow(`
		SELECT id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at
		FROM tenants WHERE shop_domain = ?
	`, domain).Scan(&tenant.ID, &tenant.ShopDomain, &tenant.Active, &tenant.WebhookSecret,
		&tenant.KeyVersion, &tenant.DBFilePath, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

func (r *TenantRepository) GetByID(id string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.QueryRow(`
		SELECT id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at
		FROM tenants WHERE id = ?
	`, id).Scan(&tenant.ID, &tenant.ShopDomain, &tenant.Active, &tenant.WebhookSecret,
		&tenant.KeyVersion, &tenant.DBFilePath, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

func (r *TenantRepository) Deactivate(id string) error {
	_, err := r.db.Exec(`UPDATE tenants SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	return err
}

func (r *TenantRepository) ListActive() ([]*models.Tenant, error) {
	rows, err := r.db.Query(`
		SELECT id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at
		FROM tenants WHERE active = 1 ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.ShopDomain, &tenant.Active, &tenant.WebhookSecret,
			&tenant.KeyVersion, &tenant.DBFilePath, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
