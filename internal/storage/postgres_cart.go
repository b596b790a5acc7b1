package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/model"
)

// PostgresCartStore implements CartLineRepository. Rows are keyed by
// (user_id, product_id) so a repeated upsert replaces the quantity.
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at
	`, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) DeleteLine(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) DeleteAllLines(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) ListLines(ctx context.Context, userID string) ([]model.CartLine, error) {
	// INNER JOIN drops rows whose product was deleted, matching the
	// reload-on-login contract.
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.quantity,
		       p.id, p.name, p.price, p.original_price, p.image, p.unit,
		       p.category, p.description, p.in_stock, p.rating
		FROM cart_items ci
		INNER JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var line model.CartLine
		var original decimal.NullDecimal
		var image sql.NullString
		err := rows.Scan(&line.Quantity,
			&line.Product.ID, &line.Product.Name, &line.Product.Price,
			&original, &image, &line.Product.Unit, &line.Product.Category,
			&line.Product.Description, &line.Product.InStock, &line.Product.Rating)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		if original.Valid {
			line.Product.OriginalPrice = &original.Decimal
		}
		line.Product.Image = image.String
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lines, nil
}
