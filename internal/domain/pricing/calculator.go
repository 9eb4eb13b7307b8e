package pricing

import "github.com/shopspring/decimal"

var (
	UrgencyMultiplier = decimal.RequireFromString("1.30")
	PremiumMultiplier = decimal.RequireFromString("1.25")
)

// LineInput is everything the calculator reads from a cart line.
type LineInput struct {
	Slug          string
	BasePrice     decimal.Decimal
	Quantity      int
	Options       []Option
	Configuration *Configuration
}

// Breakdown shows each step of a line price.
type Breakdown struct {
	Base             decimal.Decimal `json:"base"`
	SeatRule         string          `json:"seat_rule,omitempty"`
	SeatAdjusted     decimal.Decimal `json:"seat_adjusted"`
	UrgencySurcharge decimal.Decimal `json:"urgency_surcharge"`
	PremiumSurcharge decimal.Decimal `json:"premium_surcharge"`
	Options          decimal.Decimal `json:"options"`
	Total            decimal.Decimal `json:"total"`
}

// ComputeLineTotal prices a line with the default table.
func ComputeLineTotal(in LineInput) decimal.Decimal {
	return DefaultTable.Quote(in).Total
}

// Compute prices a line with this table.
func (t Table) Compute(in LineInput) decimal.Decimal {
	return t.Quote(in).Total
}

// Quote prices a line and keeps the intermediate amounts.
//
// Seat pricing replaces the base amount, then urgency and premium
// multipliers compound on it. Option prices are added last, scaled by
// quantity but never surcharged. Quantity is not validated here.
func (t Table) Quote(in LineInput) Breakdown {
	qty := decimal.NewFromInt(int64(in.Quantity))

	var b Breakdown
	b.Base = in.BasePrice.Mul(qty)
	total := b.Base

	var cfg Configuration
	if in.Configuration != nil {
		cfg = *in.Configuration
	}

	if seats, ok := cfg.seats(); ok {
		if rule, found := t[in.Slug]; found {
			total = rule.UnitPrice(in.BasePrice, seats).Mul(qty)
			b.SeatRule = rule.Model()
		}
	}
	b.SeatAdjusted = total

	if cfg.Urgent {
		surcharged := total.Mul(UrgencyMultiplier)
		b.UrgencySurcharge = surcharged.Sub(total)
		total = surcharged
	}
	if cfg.ServiceLevel == LevelPremium {
		surcharged := total.Mul(PremiumMultiplier)
		b.PremiumSurcharge = surcharged.Sub(total)
		total = surcharged
	}

	for _, opt := range in.Options {
		if opt.Price == nil {
			continue
		}
		b.Options = b.Options.Add(opt.Price.Mul(qty))
	}
	b.Total = total.Add(b.Options)
	return b
}
