package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCartRecordNotFound = errors.New("cart record not found")
	ErrCartRecordExists   = errors.New("cart record already exists")
)

// CartRecord is the remote copy of a user's cart. Items holds the
// JSON-encoded line items exactly as the cart wrote them.
type CartRecord struct {
	UserID    string          `json:"user_id"`
	Items     json.RawMessage `json:"cart_items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartRecordStore is a per-user keyed cart record store.
type CartRecordStore interface {
	// Get returns ErrCartRecordNotFound when the user has no record
	Get(ctx context.Context, userID string) (*CartRecord, error)

	// Insert returns ErrCartRecordExists when a record is already stored
	Insert(ctx context.Context, rec *CartRecord) error

	// Update returns ErrCartRecordNotFound when there is nothing to update
	Update(ctx context.Context, rec *CartRecord) error

	// Delete is a no-op for unknown users
	Delete(ctx context.Context, userID string) error
}
