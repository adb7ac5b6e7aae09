package repositories

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"shopmirror/internal/platform/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetTx(tx *sql.Tx, externalID string) (*models.Product, error) {
	row := tx.QueryRow(`
		SELECT external_id, title, vendor, status, variants, price, compare_at_price, created_at, updated_at
		FROM products WHERE external_id = ?
	`, externalID)

	var p models.Product
	var price string
	var compareAt sql.NullString

	err := row.Scan(&p.ExternalID, &p.Title, &p.Vendor, &p.Status, &p.Variants,
		&price, &compareAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	if compareAt.Valid {
		d, err := decimal.NewFromString(compareAt.String)
		if err != nil {
			return nil, err
		}
		p.CompareAtPrice = &d
	}
	return &p, nil
}

func (r *ProductRepository) InsertTx(tx *sql.Tx, p *models.Product) error {
	_, err := tx.Exec(`
		INSERT INTO products (external_id, title, vendor, status, variants, price, compare_at_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ExternalID, p.Title, p.Vendor, p.Status, p.Variants, p.Price.String(), compareAtValue(p), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProductRepository) UpdateTx(tx *sql.Tx, p *models.Product) error {
	_, err := tx.Exec(`
		UPDATE products
		SET title = ?, vendor = ?, status = ?, variants = ?, price = ?, compare_at_price = ?, updated_at = ?
		WHERE external_id = ?
	`, p.Title, p.Vendor, p.Status, p.Variants, p.Price.String(), compareAtValue(p), p.UpdatedAt, p.ExternalID)
	return err
}

func compareAtValue(p *models.Product) interface{} {
	if p.CompareAtPrice == nil {
		return nil
	}
	return p.CompareAtPrice.String()
}
