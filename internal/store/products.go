package store

import (
	"database/sql"
	"errors"
)

// GetProductByName retrieves a product row by its unique name. Returns
// nil, nil when no such product exists.
func (s *Store) GetProductByName(name string) (*Product, error) {
	var p Product
	err := s.db.QueryRow(`
		SELECT product_id, product_name, sales FROM product WHERE product_name = ?
	`, name).Scan(&p.ProductID, &p.ProductName, &p.Sales)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProduct registers a product for sale.
func InsertProduct(tx *sql.Tx, p *Product) error {
	_, err := tx.Exec(`
		INSERT INTO product (product_id, product_name, sales) VALUES (?, ?, ?)
	`, p.ProductID, p.ProductName, p.Sales)
	return err
}

// BumpProductSales adds qty to a product's sales counter.
func BumpProductSales(tx *sql.Tx, productID, qty int64) error {
	_, err := tx.Exec(`UPDATE product SET sales = sales + ? WHERE product_id = ?`, qty, productID)
	return err
}
