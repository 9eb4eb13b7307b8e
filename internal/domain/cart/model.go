package cart

import (
	"errors"

	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// StorageNamespace prefixes every locally persisted snapshot key.
const StorageNamespace = "it-services-cart"

// VATRate is the fixed French VAT applied to the subtotal.
var VATRate = decimal.RequireFromString("0.20")

var (
	ErrInvalidService  = errors.New("service_id is required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotFound    = errors.New("item not found in cart")
)

type Option = pricing.Option
type Configuration = pricing.Configuration

// LineItem is one configured service in the cart.
type LineItem struct {
	ServiceID     string          `json:"service_id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Quantity      int             `json:"quantity"`
	Options       []Option        `json:"options,omitempty"`
	Configuration *Configuration  `json:"configuration,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

func (i LineItem) pricingInput() pricing.LineInput {
	return pricing.LineInput{
		Slug:          i.Slug,
		BasePrice:     i.BasePrice,
		Quantity:      i.Quantity,
		Options:       i.Options,
		Configuration: i.Configuration,
	}
}

// Clone returns a copy of the line that shares no options or
// configuration with i.
func (i LineItem) Clone() LineItem {
	i.Options = pricing.CloneOptions(i.Options)
	if i.Configuration != nil {
		cfg := i.Configuration.Clone()
		i.Configuration = &cfg
	}
	return i
}

// Validate checks the fields the store refuses to accept.
func (i LineItem) Validate() error {
	if i.ServiceID == "" {
		return ErrInvalidService
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.Configuration != nil {
		return i.Configuration.Validate()
	}
	return nil
}

// Patch carries the fields of an update; nil fields are left untouched.
type Patch struct {
	Slug          *string          `json:"slug,omitempty"`
	Name          *string          `json:"name,omitempty"`
	BasePrice     *decimal.Decimal `json:"base_price,omitempty"`
	Quantity      *int             `json:"quantity,omitempty"`
	Options       *[]Option        `json:"options,omitempty"`
	Configuration *Configuration   `json:"configuration,omitempty"`
}

// Validate checks the patched fields only.
func (p Patch) Validate() error {
	if p.Quantity != nil && *p.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.Configuration != nil {
		return p.Configuration.Validate()
	}
	return nil
}

// Snapshot is the full derived cart state.
type Snapshot struct {
	Items    []LineItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// IsEmpty reports whether the cart has no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// ItemCount sums the quantities of all lines.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// Find returns the line for a service id.
func (s Snapshot) Find(serviceID string) (LineItem, bool) {
	for _, item := range s.Items {
		if item.ServiceID == serviceID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Clone deep-copies the lines so the caller may keep or change the
// snapshot without touching the cart it came from.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = make([]LineItem, len(s.Items))
	for i, item := range s.Items {
		out.Items[i] = item.Clone()
	}
	return out
}
