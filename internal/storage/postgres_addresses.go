package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/model"
)

type PostgresAddressStore struct {
	db *sql.DB
}

func NewPostgresAddressStore(db *sql.DB) *PostgresAddressStore {
	return &PostgresAddressStore{db: db}
}

func (s *PostgresAddressStore) ListAddresses(ctx context.Context, userID string) ([]model.Address, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, street, city, postal_code, phone, label, is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []model.Address
	for rows.Next() {
		var a model.Address
		var label sql.NullString
		err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.PostalCode,
			&a.Phone, &label, &a.IsDefault, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		a.Label = label.String
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return addresses, nil
}

func (s *PostgresAddressStore) InsertAddress(ctx context.Context, addr model.Address) (string, error) {
	id := addr.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, street, city, postal_code, phone, label, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, id, addr.UserID, addr.Street, addr.City, addr.PostalCode, addr.Phone,
		nullString(addr.Label), addr.IsDefault)
	if err != nil {
		return "", fmt.Errorf("insert address: %w", err)
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
