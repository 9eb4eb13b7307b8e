package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Cart"

const (
	EventItemAdded   = "ItemAddedToCart"
	EventItemUpdated = "CartItemUpdated"
	EventItemRemoved = "ItemRemovedFromCart"
	EventCartCleared = "CartCleared"
	EventCartSynced  = "CartSynced"
)

// GetCartID returns the journal aggregate id for a user's cart.
func GetCartID(userID string) string {
	return "cart-" + userID
}

// CartChanged is the journal payload written after a successful remote sync.
type CartChanged struct {
	CartID    string          `json:"cart_id"`
	UserID    string          `json:"user_id"`
	ServiceID string          `json:"service_id,omitempty"`
	Items     json.RawMessage `json:"items,omitempty"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	ChangedAt time.Time       `json:"changed_at"`
}
