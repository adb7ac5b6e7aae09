package tenants

import (
	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/pkg/validator"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// Resolver maps the shop-domain header to an active tenant record. The stored
// webhook secret is authoritative, which is why resolution happens before
// signature verification.
type Resolver struct {
	repo *repositories.TenantRepository
}

func NewResolver(repo *repositories.TenantRepository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) Resolve(shopDomain string) (*models.Tenant, error) {
	if err := validator.ValidateShopDomain(shopDomain); err != nil {
		return nil, &apperrors.ValidationError{Field: "shop_domain", Reason: err.Error()}
	}

	tenant, err := r.repo.GetByShopDomain(shopDomain)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "tenant lookup", Err: err}
	}
	if tenant == nil {
		return nil, &apperrors.NotFoundError{Resource: "tenant", ID: shopDomain}
	}
	if !tenant.Active {
		return nil, &apperrors.InactiveTenantError{ShopDomain: shopDomain}
	}
	return tenant, nil
}

// Deactivate handles app/uninstalled: the only tenant mutation this pipeline
// performs.
func (r *Resolver) Deactivate(tenantID string) error {
	if err := r.repo.Deactivate(tenantID); err != nil {
		return &apperrors.PersistenceError{Op: "tenant deactivation", Err: err}
	}
	return nil
}
