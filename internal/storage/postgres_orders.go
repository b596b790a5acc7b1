package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/model"
)

type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

func (s *PostgresOrderStore) InsertOrder(ctx context.Context, order model.Order) (string, error) {
	id := order.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, address_id, subtotal, delivery_fee, total,
		                    phone, status, estimated_delivery, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, id, order.UserID, order.AddressID, order.Subtotal, order.DeliveryFee,
		order.Total, order.Phone, order.Status, order.EstimatedDelivery)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// InsertOrderItems writes all items of one order in a single statement batch.
// Either the whole batch lands or none of it does.
func (s *PostgresOrderStore) InsertOrderItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order items: %w", err)
	}

	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, id, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order items: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, address_id, subtotal, delivery_fee, total,
		       phone, status, estimated_delivery, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		err := rows.Scan(&o.ID, &o.UserID, &o.AddressID, &o.Subtotal,
			&o.DeliveryFee, &o.Total, &o.Phone, &o.Status,
			&o.EstimatedDelivery, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := s.listOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// listOrderItems joins the frozen item rows with the live product row for
// display. LEFT JOIN: an item whose product was deleted still comes back,
// with Product nil.
func (s *PostgresOrderStore) listOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price,
		       p.id, p.name, p.price, p.original_price, p.image, p.unit,
		       p.category, p.description, p.in_stock, p.rating
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		var pID, pName, pUnit, pCategory, pDescription, pImage sql.NullString
		var pPrice, pOriginal decimal.NullDecimal
		var pInStock sql.NullBool
		var pRating sql.NullFloat64
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.Quantity, &item.UnitPrice,
			&pID, &pName, &pPrice, &pOriginal, &pImage, &pUnit,
			&pCategory, &pDescription, &pInStock, &pRating)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if pID.Valid {
			product := model.Product{
				ID:          pID.String,
				Name:        pName.String,
				Price:       pPrice.Decimal,
				Image:       pImage.String,
				Unit:        pUnit.String,
				Category:    pCategory.String,
				Description: pDescription.String,
				InStock:     pInStock.Bool,
				Rating:      pRating.Float64,
			}
			if pOriginal.Valid {
				product.OriginalPrice = &pOriginal.Decimal
			}
			item.Product = &product
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
