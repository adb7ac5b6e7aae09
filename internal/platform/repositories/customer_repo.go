package repositories

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"shopmirror/internal/platform/models"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) GetTx(tx *sql.Tx, externalID string) (*models.Customer, error) {
	row := tx.QueryRow(`
		SELECT external_id, enc_first_name, enc_last_name, enc_email, enc_phone,
		       orders_count, total_spent, last_order_at, accepts_marketing, created_at, updated_at
		FROM customers WHERE external_id = ?
	`, externalID)
	return scanCustomer(row)
}

func (r *CustomerRepository) InsertTx(tx *sql.Tx, c *models.Customer) error {
	_, err := tx.Exec(`
		INSERT INTO customers (external_id, enc_first_name, enc_last_name, enc_email, enc_phone,
			orders_count, total_spent, last_order_at, accepts_marketing, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ExternalID, c.EncFirstName, c.EncLastName, c.EncEmail, c.EncPhone,
		c.OrdersCount, c.TotalSpent.String(), c.LastOrderAt, c.AcceptsMarketing, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CustomerRepository) UpdateTx(tx *sql.Tx, c *models.Customer) error {
	_, err := tx.Exec(`
		UPDATE customers
		SET enc_first_name = ?, enc_last_name = ?, enc_email = ?, enc_phone = ?,
		    orders_count = ?, total_spent = ?, last_order_at = ?, accepts_marketing = ?, updated_at = ?
		WHERE external_id = ?
	`, c.EncFirstName, c.EncLastName, c.EncEmail, c.EncPhone,
		c.OrdersCount, c.TotalSpent.String(), c.LastOrderAt, c.AcceptsMarketing, c.UpdatedAt, c.ExternalID)
	return err
}

func (r *CustomerRepository) UpdateAggregatesTx(tx *sql.Tx, externalID string, ordersCount int, totalSpent decimal.Decimal, lastOrderAt *int64, updatedAt int64) error {
	_, err := tx.Exec(`
		UPDATE customers SET orders_count = ?, total_spent = ?, last_order_at = ?, updated_at = ?
		WHERE external_id = ?
	`, ordersCount, totalSpent.String(), lastOrderAt, updatedAt, externalID)
	return err
}

// ListExternalIDs is used by the reconciliation sweep, outside any delivery
// transaction.
func (r *CustomerRepository) ListExternalIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT external_id FROM customers ORDER BY external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCustomer(s interface {
	Scan(dest ...interface{}) error
}) (*models.Customer, error) {
	var c models.Customer
	var totalSpent string
	var lastOrderAt sql.NullInt64

	err := s.Scan(
		&c.ExternalID,
		&c.EncFirstName,
		&c.EncLastName,
		&c.EncEmail,
		&c.EncPhone,
		&c.OrdersCount,
		&totalSpent,
		&lastOrderAt,
		&c.AcceptsMarketing,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	c.TotalSpent, err = decimal.NewFromString(totalSpent)
	if err != nil {
		return nil, err
	}
	if lastOrderAt.Valid {
		val := lastOrderAt.Int64
		c.LastOrderAt = &val
	}
	return &c, nil
}
