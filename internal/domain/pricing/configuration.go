package pricing

import (
	"errors"
	"reflect"

	"github.com/shopspring/decimal"
)

// Billing kinds
const (
	BillingFlat    = "flat"
	BillingPerSeat = "per-seat"
)

// Service levels
const (
	LevelStandard = "standard"
	LevelPremium  = "premium"
)

var (
	ErrUnknownBilling      = errors.New("unknown billing kind")
	ErrUnknownServiceLevel = errors.New("unknown service level")
	ErrNegativeSeats       = errors.New("seats must not be negative")
)

// Billing selects how a service is billed. Seats is only read for the
// per-seat kind.
type Billing struct {
	Kind  string `json:"kind"`
	Seats int    `json:"seats,omitempty"`
}

// Configuration holds the service-specific knobs chosen by the customer.
type Configuration struct {
	Billing      Billing  `json:"billing"`
	ServiceLevel string   `json:"service_level,omitempty"`
	Urgent       bool     `json:"urgent,omitempty"`
	Extras       []string `json:"extras,omitempty"`
}

// PerSeat returns a per-seat configuration.
func PerSeat(seats int) Configuration {
	return Configuration{Billing: Billing{Kind: BillingPerSeat, Seats: seats}, ServiceLevel: LevelStandard}
}

// Validate rejects configurations that cannot be priced.
func (c Configuration) Validate() error {
	switch c.Billing.Kind {
	case "", BillingFlat:
	case BillingPerSeat:
		if c.Billing.Seats < 0 {
			return ErrNegativeSeats
		}
	default:
		return ErrUnknownBilling
	}
	switch c.ServiceLevel {
	case "", LevelStandard, LevelPremium:
	default:
		return ErrUnknownServiceLevel
	}
	return nil
}

func (c Configuration) seats() (int, bool) {
	if c.Billing.Kind != BillingPerSeat || c.Billing.Seats <= 0 {
		return 0, false
	}
	return c.Billing.Seats, true
}

// Clone returns a copy of c that shares no extras with it.
func (c Configuration) Clone() Configuration {
	if c.Extras != nil {
		c.Extras = append([]string(nil), c.Extras...)
	}
	return c
}

// Equal reports whether two configurations price identically and carry the same extras.
func (c Configuration) Equal(o Configuration) bool {
	if c.Billing != o.Billing || c.ServiceLevel != o.ServiceLevel || c.Urgent != o.Urgent {
		return false
	}
	if len(c.Extras) != len(o.Extras) {
		return false
	}
	for i := range c.Extras {
		if c.Extras[i] != o.Extras[i] {
			return false
		}
	}
	return true
}

// Option is an add-on selected on a line. Value is a string, a number or a bool.
type Option struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Value any              `json:"value"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// CloneOptions copies an option list together with the option prices.
func CloneOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	out := make([]Option, len(opts))
	for i, o := range opts {
		if o.Price != nil {
			price := *o.Price
			o.Price = &price
		}
		out[i] = o
	}
	return out
}

// OptionsEqual compares two option lists by id, value and price.
func OptionsEqual(a, b []Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || !reflect.DeepEqual(a[i].Value, b[i].Value) {
			return false
		}
		switch {
		case a[i].Price == nil && b[i].Price == nil:
		case a[i].Price == nil || b[i].Price == nil:
			return false
		case !a[i].Price.Equal(*b[i].Price):
			return false
		}
	}
	return true
}
