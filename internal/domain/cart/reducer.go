package cart

import (
	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// Reducer applies cart mutations to a snapshot. It never changes its
// input and always returns a snapshot whose totals match its items.
type Reducer struct {
	table pricing.Table
}

func NewReducer(table pricing.Table) Reducer {
	if table == nil {
		table = pricing.DefaultTable
	}
	return Reducer{table: table}
}

// Price returns the item with TotalPrice recomputed.
func (r Reducer) Price(item LineItem) LineItem {
	item.TotalPrice = r.table.Compute(item.pricingInput())
	return item
}

// Add merges a candidate into the cart. An existing line with the same
// service id keeps its position, sums the quantities and takes every
// other field from the candidate.
func (r Reducer) Add(s Snapshot, candidate LineItem) (Snapshot, bool) {
	candidate = candidate.Clone()
	items := make([]LineItem, len(s.Items), len(s.Items)+1)
	copy(items, s.Items)

	for i, existing := range items {
		if existing.ServiceID == candidate.ServiceID {
			candidate.Quantity += existing.Quantity
			items[i] = r.Price(candidate)
			return r.Recompute(items), true
		}
	}

	items = append(items, r.Price(candidate))
	return r.Recompute(items), false
}

// Update merges a patch into the matching line. The line total is
// recomputed only when a pricing input changed.
func (r Reducer) Update(s Snapshot, serviceID string, patch Patch) (Snapshot, error) {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)

	for i, item := range items {
		if item.ServiceID != serviceID {
			continue
		}

		updated, repriced := applyPatch(item, patch)
		if repriced {
			updated = r.Price(updated)
		}
		items[i] = updated
		return r.Recompute(items), nil
	}

	return r.Recompute(items), ErrItemNotFound
}

// Remove drops the matching line. Removing an unknown id leaves the
// cart unchanged.
func (r Reducer) Remove(s Snapshot, serviceID string) (Snapshot, bool) {
	items := make([]LineItem, 0, len(s.Items))
	removed := false
	for _, item := range s.Items {
		if item.ServiceID == serviceID {
			removed = true
			continue
		}
		items = append(items, item)
	}
	return r.Recompute(items), removed
}

// Clear returns an empty cart with zero totals.
func (r Reducer) Clear() Snapshot {
	return r.Recompute(nil)
}

// Reprice recomputes every line total, then the snapshot totals. Used
// when adopting a snapshot that came from storage.
func (r Reducer) Reprice(items []LineItem) Snapshot {
	priced := make([]LineItem, len(items))
	for i, item := range items {
		priced[i] = r.Price(item)
	}
	return r.Recompute(priced)
}

// Recompute derives subtotal, tax and total from the line totals.
func (r Reducer) Recompute(items []LineItem) Snapshot {
	if items == nil {
		items = []LineItem{}
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	tax := subtotal.Mul(VATRate)
	return Snapshot{
		Items:    items,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func applyPatch(item LineItem, p Patch) (LineItem, bool) {
	repriced := false

	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Slug != nil && *p.Slug != item.Slug {
		item.Slug = *p.Slug
		repriced = true
	}
	if p.BasePrice != nil && !p.BasePrice.Equal(item.BasePrice) {
		item.BasePrice = *p.BasePrice
		repriced = true
	}
	if p.Quantity != nil && *p.Quantity != item.Quantity {
		item.Quantity = *p.Quantity
		repriced = true
	}
	if p.Options != nil && !pricing.OptionsEqual(*p.Options, item.Options) {
		item.Options = pricing.CloneOptions(*p.Options)
		repriced = true
	}
	if p.Configuration != nil && (item.Configuration == nil || !p.Configuration.Equal(*item.Configuration)) {
		cfg := p.Configuration.Clone()
		item.Configuration = &cfg
		repriced = true
	}

	return item, repriced
}
