package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Seat rule models
const (
	ModelPerSeat       = "per-seat"
	ModelIncludedSeats = "included-seats"
)

// SeatRule prices one unit of a service from its seat count.
type SeatRule interface {
	Model() string
	UnitPrice(basePrice decimal.Decimal, seats int) decimal.Decimal
	Describe() string
}

// PerSeatRule bills a fixed base plus every seat: Base + seats*PerSeat.
// The line's own base price is ignored.
type PerSeatRule struct {
	Base    decimal.Decimal
	PerSeat decimal.Decimal
}

func (r PerSeatRule) Model() string { return ModelPerSeat }

func (r PerSeatRule) UnitPrice(_ decimal.Decimal, seats int) decimal.Decimal {
	return r.Base.Add(r.PerSeat.Mul(decimal.NewFromInt(int64(seats))))
}

func (r PerSeatRule) Describe() string {
	return fmt.Sprintf("%s + %s x seats", r.Base, r.PerSeat)
}

// IncludedSeatsRule keeps the line's base price for the first Included
// seats and bills each extra seat.
type IncludedSeatsRule struct {
	Included     int
	PerExtraSeat decimal.Decimal
}

func (r IncludedSeatsRule) Model() string { return ModelIncludedSeats }

func (r IncludedSeatsRule) UnitPrice(basePrice decimal.Decimal, seats int) decimal.Decimal {
	extra := seats - r.Included
	if extra <= 0 {
		return basePrice
	}
	return basePrice.Add(r.PerExtraSeat.Mul(decimal.NewFromInt(int64(extra))))
}

func (r IncludedSeatsRule) Describe() string {
	return fmt.Sprintf("base price + %s per seat beyond %d", r.PerExtraSeat, r.Included)
}

// Table maps a service slug to its seat rule.
type Table map[string]SeatRule

// DefaultTable is the catalog's seat pricing.
var DefaultTable = Table{
	"maintenance-informatique": PerSeatRule{
		Base:    decimal.NewFromInt(350),
		PerSeat: decimal.NewFromInt(15),
	},
	"securisation-reseau": IncludedSeatsRule{
		Included:     1,
		PerExtraSeat: decimal.NewFromInt(150),
	},
}

// RuleInfo is the listing form of a table entry.
type RuleInfo struct {
	Slug        string `json:"slug"`
	Model       string `json:"model"`
	Description string `json:"description"`
}

// Rules lists the table sorted by slug.
func (t Table) Rules() []RuleInfo {
	rules := make([]RuleInfo, 0, len(t))
	for slug, r := range t {
		rules = append(rules, RuleInfo{Slug: slug, Model: r.Model(), Description: r.Describe()})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Slug < rules[j].Slug })
	return rules
}
