package reconcile

import (
	"context"
	"database/sql"
	"time"

	"shopmirror/internal/engine/crypto"
	"shopmirror/internal/engine/webhooks"
	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// Service reconciles normalized events into the tenant database. Every event
// is applied inside a single immediate transaction, so a delivery either
// lands completely or not at all, and two deliveries touching the same entity
// serialize on the database write lock.
type Service struct {
	cipher *crypto.FieldCipher
}

func NewService(cipher *crypto.FieldCipher) *Service {
	return &Service{cipher: cipher}
}

func (s *Service) Apply(ctx context.Context, tenantID string, db *sql.DB, event webhooks.Event) error {
	switch e := event.(type) {
	case *webhooks.OrderEvent:
		return s.applyOrder(ctx, tenantID, db, e)
	case *webhooks.CustomerEvent:
		return s.applyCustomer(ctx, tenantID, db, e)
	case *webhooks.ProductEvent:
		return s.applyProduct(ctx, db, e)
	default:
		return nil
	}
}

func (s *Service) applyOrder(ctx context.Context, tenantID string, db *sql.DB, e *webhooks.OrderEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &apperrors.PersistenceError{Op: "begin order tx", Err: err}
	}
	defer tx.Rollback()

	orders := repositories.NewOrderRepository(db)
	customers := repositories.NewCustomerRepository(db)

	// The customer row has to exist before the order references it.
	if e.CustomerExternalID != "" {
		if err := s.ensureCustomer(tx, tenantID, customers, e); err != nil {
			return err
		}
	}

	existing, err := orders.GetTx(tx, e.ID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "order lookup", Err: err}
	}

	now := time.Now().Unix()
	if existing == nil {
		order := &models.Order{
			ExternalID:         e.ID,
			CustomerExternalID: e.CustomerExternalID,
			Subtotal:           e.Subtotal,
			TotalTax:           e.TotalTax,
			TotalDiscounts:     e.TotalDiscounts,
			TotalShipping:      e.TotalShipping,
			Total:              e.Total,
			Currency:           e.Currency,
			FinancialStatus:    e.FinancialStatus,
			FulfillmentStatus:  e.FulfillmentStatus,
			LineItems:          e.LineItems,
			SourceCreatedAt:    e.SourceCreatedAt,
			SourceUpdatedAt:    e.SourceUpdatedAt,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if order.EncEmail, err = s.cipher.Encrypt(tenantID, e.Email); err != nil {
			return err
		}
		if order.EncBillingAddress, err = s.cipher.Encrypt(tenantID, e.BillingAddress); err != nil {
			return err
		}
		if order.EncShippingAddress, err = s.cipher.Encrypt(tenantID, e.ShippingAddress); err != nil {
			return err
		}
		if err := orders.InsertTx(tx, order); err != nil {
			return &apperrors.PersistenceError{Op: "order insert", Err: err}
		}
	} else {
		// Only mutable fields change on redelivery; identity, encrypted
		// snapshots and line items stay as first recorded.
		existing.Subtotal = e.Subtotal
		existing.TotalTax = e.TotalTax
		existing.TotalDiscounts = e.TotalDiscounts
		existing.TotalShipping = e.TotalShipping
		existing.Total = e.Total
		existing.FinancialStatus = e.FinancialStatus
		existing.FulfillmentStatus = e.FulfillmentStatus
		existing.SourceUpdatedAt = e.SourceUpdatedAt
		existing.UpdatedAt = now
		if err := orders.UpdateMutableTx(tx, existing); err != nil {
			return &apperrors.PersistenceError{Op: "order update", Err: err}
		}
	}

	// A later delivery may omit the embedded customer object; the stored row
	// still knows whose aggregates the changed total affects.
	customerID := e.CustomerExternalID
	if customerID == "" && existing != nil {
		customerID = existing.CustomerExternalID
	}
	if customerID != "" {
		if err := syncCustomerAggregates(tx, customers, orders, customerID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperrors.PersistenceError{Op: "commit order tx", Err: err}
	}
	return nil
}

func (s *Service) applyCustomer(ctx context.Context, tenantID string, db *sql.DB, e *webhooks.CustomerEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &apperrors.PersistenceError{Op: "begin customer tx", Err: err}
	}
	defer tx.Rollback()

	customers := repositories.NewCustomerRepository(db)
	orders := repositories.NewOrderRepository(db)

	existing, err := customers.GetTx(tx, e.ID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "customer lookup", Err: err}
	}

	now := time.Now().Unix()
	if existing == nil {
		customer := &models.Customer{
			ExternalID: e.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.mergeCustomerFields(tenantID, customer, &e.Fields); err != nil {
			return err
		}
		if err := customers.InsertTx(tx, customer); err != nil {
			return &apperrors.PersistenceError{Op: "customer insert", Err: err}
		}
	} else {
		if err := s.mergeCustomerFields(tenantID, existing, &e.Fields); err != nil {
			return err
		}
		existing.UpdatedAt = now
		if err := customers.UpdateTx(tx, existing); err != nil {
			return &apperrors.PersistenceError{Op: "customer update", Err: err}
		}
	}

	// Aggregates always come from the order rows, even on a customer-only
	// event: the orders may have arrived first.
	if err := syncCustomerAggregates(tx, customers, orders, e.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &apperrors.PersistenceError{Op: "commit customer tx", Err: err}
	}
	return nil
}

func (s *Service) applyProduct(ctx context.Context, db *sql.DB, e *webhooks.ProductEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &apperrors.PersistenceError{Op: "begin product tx", Err: err}
	}
	defer tx.Rollback()

	products := repositories.NewProductRepository(db)

	existing, err := products.GetTx(tx, e.ID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "product lookup", Err: err}
	}

	price, compareAt := DerivePricing(e.Variants)
	now := time.Now().Unix()

	if existing == nil {
		product := &models.Product{
			ExternalID:     e.ID,
			Title:          e.Title,
			Vendor:         e.Vendor,
			Status:         e.Status,
			Variants:       e.VariantsJSON,
			Price:          price,
			CompareAtPrice: compareAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := products.InsertTx(tx, product); err != nil {
			return &apperrors.PersistenceError{Op: "product insert", Err: err}
		}
	} else {
		existing.Title = e.Title
		existing.Vendor = e.Vendor
		existing.Status = e.Status
		existing.Variants = e.VariantsJSON
		existing.Price = price
		existing.CompareAtPrice = compareAt
		existing.UpdatedAt = now
		if err := products.UpdateTx(tx, existing); err != nil {
			return &apperrors.PersistenceError{Op: "product update", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperrors.PersistenceError{Op: "commit product tx", Err: err}
	}
	return nil
}

// ensureCustomer creates the minimal customer row for an order that arrived
// before its customer webhook, or merges the embedded customer fields into an
// existing row.
func (s *Service) ensureCustomer(tx *sql.Tx, tenantID string, customers *repositories.CustomerRepository, e *webhooks.OrderEvent) error {
	existing, err := customers.GetTx(tx, e.CustomerExternalID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "customer lookup", Err: err}
	}

	fields := e.Customer
	if fields == nil {
		fields = &webhooks.CustomerFields{}
	}

	now := time.Now().Unix()
	if existing == nil {
		customer := &models.Customer{
			ExternalID: e.CustomerExternalID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.mergeCustomerFields(tenantID, customer, fields); err != nil {
			return err
		}
		if err := customers.InsertTx(tx, customer); err != nil {
			return &apperrors.PersistenceError{Op: "customer insert", Err: err}
		}
		return nil
	}

	if err := s.mergeCustomerFields(tenantID, existing, fields); err != nil {
		return err
	}
	existing.UpdatedAt = now
	if err := customers.UpdateTx(tx, existing); err != nil {
		return &apperrors.PersistenceError{Op: "customer update", Err: err}
	}
	return nil
}

// mergeCustomerFields applies incoming non-empty fields without erasing what
// is already known. PII is encrypted here, just before it can reach a row.
func (s *Service) mergeCustomerFields(tenantID string, c *models.Customer, f *webhooks.CustomerFields) error {
	var err error
	if f.FirstName != "" {
		if c.EncFirstName, err = s.cipher.Encrypt(tenantID, f.FirstName); err != nil {
			return err
		}
	}
	if f.LastName != "" {
		if c.EncLastName, err = s.cipher.Encrypt(tenantID, f.LastName); err != nil {
			return err
		}
	}
	if f.Email != "" {
		if c.EncEmail, err = s.cipher.Encrypt(tenantID, f.Email); err != nil {
			return err
		}
	}
	if f.Phone != "" {
		if c.EncPhone, err = s.cipher.Encrypt(tenantID, f.Phone); err != nil {
			return err
		}
	}
	if f.AcceptsMarketing != nil {
		c.AcceptsMarketing = *f.AcceptsMarketing
	}
	return nil
}

// syncCustomerAggregates recomputes orders_count and total_spent from the
// customer's current order rows. Never increment: the platform redelivers,
// and an increment applied twice double-counts.
func syncCustomerAggregates(tx *sql.Tx, customers *repositories.CustomerRepository, orders *repositories.OrderRepository, customerExternalID string) error {
	count, total, lastOrderAt, err := orders.CustomerTotalsTx(tx, customerExternalID)
	if err != nil {
		return &apperrors.PersistenceError{Op: "aggregate recompute", Err: err}
	}
	if err := customers.UpdateAggregatesTx(tx, customerExternalID, count, total, lastOrderAt, time.Now().Unix()); err != nil {
		return &apperrors.PersistenceError{Op: "aggregate update", Err: err}
	}
	return nil
}
