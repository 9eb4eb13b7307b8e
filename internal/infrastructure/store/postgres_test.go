package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/example/itservices-cart/internal/readmodel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The Postgres tests run against TEST_DATABASE_URL and are skipped
// without it. Every test uses fresh ids so runs do not interfere.

func connectTestPostgres(t *testing.T) *PostgresCartStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(ctx, db))
	return NewPostgresCartStore(db)
}

func TestPostgresCartStore(t *testing.T) {
	testCartRecordStore(t, connectTestPostgres(t))
}

func TestPostgresEventStore(t *testing.T) {
	carts := connectTestPostgres(t)
	publisher := &recordingPublisher{}
	es := NewPostgresEventStore(carts.db, publisher)
	ctx := context.Background()
	cartID := "cart-" + uuid.NewString()

	first, err := es.Append(ctx, cartID, "Cart", "ItemAddedToCart", map[string]string{"service_id": "svc-1"})
	require.NoError(t, err)
	second, err := es.Append(ctx, cartID, "Cart", "CartCleared", map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Len(t, publisher.keys, 2)

	events, err := es.GetEvents(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ItemAddedToCart", events[0].EventType)
	assert.JSONEq(t, `{"service_id":"svc-1"}`, string(events[0].Data))
}

func TestPostgresActivityStore(t *testing.T) {
	carts := connectTestPostgres(t)
	s := NewPostgresActivityStore(carts.db)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	_, found, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, found)

	m := &readmodel.CartActivityReadModel{
		UserID:     userID,
		CartID:     "cart-" + userID,
		ItemCount:  2,
		Subtotal:   decimal.RequireFromString("1150"),
		Total:      decimal.RequireFromString("1380"),
		LastEvent:  "ItemAddedToCart",
		EventCount: 1,
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.Set(ctx, m))

	m.EventCount = 2
	m.ClearedCount = 1
	require.NoError(t, s.Set(ctx, m))

	got, found, err := s.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.EventCount)
	assert.Equal(t, 1, got.ClearedCount)
	assert.True(t, m.Total.Equal(got.Total))
	assert.True(t, m.UpdatedAt.Equal(got.UpdatedAt))
}
