package repositories

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"shopmirror/internal/platform/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetTx(tx *sql.Tx, externalID string) (*models.Order, error) {
	row := tx.QueryRow(`
		SELECT external_id, customer_external_id, subtotal, total_tax, total_discounts,
		       total_shipping, total, currency, financial_status, fulfillment_status,
		       line_items, enc_billing_address, enc_shipping_address, enc_email,
		       source_created_at, source_updated_at, created_at, updated_at
		FROM orders WHERE external_id = ?
	`, externalID)
	return scanOrder(row)
}

func (r *OrderRepository) InsertTx(tx *sql.Tx, o *models.Order) error {
	var customerID interface{}
	if o.CustomerExternalID != "" {
		customerID = o.CustomerExternalID
	}
	_, err := tx.Exec(`
		INSERT INTO orders (external_id, customer_external_id, subtotal, total_tax, total_discounts,
			total_shipping, total, currency, financial_status, fulfillment_status,
			line_items, enc_billing_address, enc_shipping_address, enc_email,
			source_created_at, source_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ExternalID, customerID, o.Subtotal.String(), o.TotalTax.String(), o.TotalDiscounts.String(),
		o.TotalShipping.String(), o.Total.String(), o.Currency, o.FinancialStatus, o.FulfillmentStatus,
		o.LineItems, o.EncBillingAddress, o.EncShippingAddress, o.EncEmail,
		o.SourceCreatedAt, o.SourceUpdatedAt, o.CreatedAt, o.UpdatedAt)
	return err
}

// UpdateMutableTx touches only the fields a later delivery may change. Order
// identity and the line-item snapshot stay as first recorded.
func (r *OrderRepository) UpdateMutableTx(tx *sql.Tx, o *models.Order) error {
	_, err := tx.Exec(`
		UPDATE orders
		SET subtotal = ?, total_tax = ?, total_discounts = ?, total_shipping = ?, total = ?,
		    financial_status = ?, fulfillment_status = ?, source_updated_at = ?, updated_at = ?
		WHERE external_id = ?
	`, o.Subtotal.String(), o.TotalTax.String(), o.TotalDiscounts.String(), o.TotalShipping.String(),
		o.Total.String(), o.FinancialStatus, o.FulfillmentStatus, o.SourceUpdatedAt, o.UpdatedAt, o.ExternalID)
	return err
}

// CustomerTotalsTx reads every order row for a customer and derives the
// aggregates from scratch. Summing happens here, in decimal, rather than in
// SQL: totals are stored as exact decimal strings.
func (r *OrderRepository) CustomerTotalsTx(tx *sql.Tx, customerExternalID string) (int, decimal.Decimal, *int64, error) {
	rows, err := tx.Query(`
		SELECT total, source_created_at FROM orders WHERE customer_external_id = ?
	`, customerExternalID)
	if err != nil {
		return 0, decimal.Zero, nil, err
	}
	defer rows.Close()

	count := 0
	sum := decimal.Zero
	var lastOrderAt *int64
	for rows.Next() {
		var totalStr string
		var createdAt int64
		if err := rows.Scan(&totalStr, &createdAt); err != nil {
			return 0, decimal.Zero, nil, err
		}
		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return 0, decimal.Zero, nil, err
		}
		sum = sum.Add(total)
		count++
		if lastOrderAt == nil || createdAt > *lastOrderAt {
			val := createdAt
			lastOrderAt = &val
		}
	}
	return count, sum, lastOrderAt, rows.Err()
}

func scanOrder(s interface {
	Scan(dest ...interface{}) error
}) (*models.Order, error) {
	var o models.Order
	var customerID, fulfillment sql.NullString
	var subtotal, totalTax, totalDiscounts, totalShipping, total string

	err := s.Scan(
		&o.ExternalID,
		&customerID,
		&subtotal,
		&totalTax,
		&totalDiscounts,
		&totalShipping,
		&total,
		&o.Currency,
		&o.FinancialStatus,
		&fulfillment,
		&o.LineItems,
		&o.EncBillingAddress,
		&o.EncShippingAddress,
		&o.EncEmail,
		&o.SourceCreatedAt,
		&o.SourceUpdatedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if customerID.Valid {
		o.CustomerExternalID = customerID.String
	}
	if fulfillment.Valid {
		o.FulfillmentStatus = fulfillment.String
	}
	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.Subtotal, subtotal},
		{&o.TotalTax, totalTax},
		{&o.TotalDiscounts, totalDiscounts},
		{&o.TotalShipping, totalShipping},
		{&o.Total, total},
	} {
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return nil, err
		}
		*field.dst = d
	}
	return &o, nil
}
