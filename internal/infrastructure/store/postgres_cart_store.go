package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

// PostgresCartStore implements CartRecordStore on the carts table
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) Get(ctx context.Context, userID string) (*CartRecord, error) {
	var rec CartRecord
	var items []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, cart_items, created_at, updated_at FROM carts WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &items, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartRecordNotFound
		}
		return nil, fmt.Errorf("failed to get cart record: %w", err)
	}
	rec.Items = items
	return &rec, nil
}

func (s *PostgresCartStore) Insert(ctx context.Context, rec *CartRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, cart_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, rec.UserID, []byte(rec.Items), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrCartRecordExists
		}
		return fmt.Errorf("failed to insert cart record: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) Update(ctx context.Context, rec *CartRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE carts SET cart_items = $2, updated_at = $3 WHERE user_id = $1
	`, rec.UserID, []byte(rec.Items), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update cart record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update cart record: %w", err)
	}
	if n == 0 {
		return ErrCartRecordNotFound
	}
	return nil
}

func (s *PostgresCartStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete cart record: %w", err)
	}
	return nil
}
