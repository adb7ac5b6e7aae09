package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// Sweeper is the deferred reconciliation path: it walks every active tenant
// and recomputes customer aggregates from the order rows, repairing any drift
// the inline pipeline could not see. Inline processing only recomputes the
// customer a delivery touches; this sweep covers the rest.
type Sweeper struct {
	tenants *repositories.TenantRepository
	pool    *database.TenantDBPool
}

func NewSweeper(tenants *repositories.TenantRepository, pool *database.TenantDBPool) *Sweeper {
	return &Sweeper{tenants: tenants, pool: pool}
}

func (s *Sweeper) SweepAll(ctx context.Context) error {
	tenants, err := s.tenants.ListActive()
	if err != nil {
		return &apperrors.PersistenceError{Op: "tenant list", Err: err}
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweepTenant(ctx, tenant); err != nil {
			log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("aggregate sweep failed")
			continue
		}
	}
	return nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenant *models.Tenant) error {
	db, err := s.pool.Get(tenant.ID, tenant.DBFilePath)
	if err != nil {
		return err
	}

	customers := repositories.NewCustomerRepository(db)
	orders := repositories.NewOrderRepository(db)

	ids, err := customers.ListExternalIDs()
	if err != nil {
		return err
	}

	repaired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// One short transaction per customer keeps the write lock brief.
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		count, total, lastOrderAt, err := orders.CustomerTotalsTx(tx, id)
		if err != nil {
			tx.Rollback()
			return err
		}
		current, err := customers.GetTx(tx, id)
		if err != nil || current == nil {
			tx.Rollback()
			continue
		}

		if current.OrdersCount == count && current.TotalSpent.Equal(total) {
			tx.Rollback()
			continue
		}

		if err := customers.UpdateAggregatesTx(tx, id, count, total, lastOrderAt, time.Now().Unix()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		repaired++
	}

	if repaired > 0 {
		log.Info().Str("tenant_id", tenant.ID).Int("repaired", repaired).Msg("aggregate drift repaired")
	}
	return nil
}
