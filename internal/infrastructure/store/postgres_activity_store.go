package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/itservices-cart/internal/readmodel"
)

// PostgresActivityStore implements ActivityStoreInterface on read_cart_activity
type PostgresActivityStore struct {
	db *sql.DB
}

func NewPostgresActivityStore(db *sql.DB) *PostgresActivityStore {
	return &PostgresActivityStore{db: db}
}

const activityColumns = `user_id, cart_id, item_count, subtotal, total, last_event, last_service_id, event_count, cleared_count, updated_at`

func scanActivity(row interface{ Scan(...any) error }) (readmodel.CartActivityReadModel, error) {
	var m readmodel.CartActivityReadModel
	err := row.Scan(&m.UserID, &m.CartID, &m.ItemCount, &m.Subtotal, &m.Total,
		&m.LastEvent, &m.LastServiceID, &m.EventCount, &m.ClearedCount, &m.UpdatedAt)
	return m, err
}

func (s *PostgresActivityStore) Get(ctx context.Context, userID string) (*readmodel.CartActivityReadModel, bool, error) {
	m, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM read_cart_activity WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cart activity: %w", err)
	}
	return &m, true, nil
}

func (s *PostgresActivityStore) Set(ctx context.Context, m *readmodel.CartActivityReadModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_cart_activity (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			item_count = EXCLUDED.item_count,
			subtotal = EXCLUDED.subtotal,
			total = EXCLUDED.total,
			last_event = EXCLUDED.last_event,
			last_service_id = EXCLUDED.last_service_id,
			event_count = EXCLUDED.event_count,
			cleared_count = EXCLUDED.cleared_count,
			updated_at = EXCLUDED.updated_at
	`, m.UserID, m.CartID, m.ItemCount, m.Subtotal, m.Total,
		m.LastEvent, m.LastServiceID, m.EventCount, m.ClearedCount, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set cart activity: %w", err)
	}
	return nil
}

func (s *PostgresActivityStore) List(ctx context.Context) ([]readmodel.CartActivityReadModel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM read_cart_activity ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart activity: %w", err)
	}
	defer rows.Close()

	var items []readmodel.CartActivityReadModel
	for rows.Next() {
		m, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
