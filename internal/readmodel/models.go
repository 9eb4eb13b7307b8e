package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartActivityReadModel summarises a user's cart activity for the CRM side
type CartActivityReadModel struct {
	UserID        string          `json:"user_id"`
	CartID        string          `json:"cart_id"`
	ItemCount     int             `json:"item_count"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	LastEvent     string          `json:"last_event"`
	LastServiceID string          `json:"last_service_id,omitempty"`
	EventCount    int             `json:"event_count"`
	ClearedCount  int             `json:"cleared_count"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Abandoned reports whether a non-empty cart has been idle for longer than d
func (m CartActivityReadModel) Abandoned(now time.Time, d time.Duration) bool {
	return m.ItemCount > 0 && now.Sub(m.UpdatedAt) > d
}
