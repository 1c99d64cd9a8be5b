// Package analytics reduces receivement and exit lists into the series the
// dashboard charts consume. Every function is a pure fold over its input: no
// input record is modified and no state survives between calls.
package analytics

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// DefaultTopN is used by RankProducts when topN is not positive.
const DefaultTopN = 10

// Quantity returns the record's quantity, zero when missing or negative.
func Quantity(t domain.Transaction) int64 {
	if t.Quantity == nil || *t.Quantity < 0 {
		return 0
	}
	return int64(*t.Quantity)
}

// Value returns the record's total price. When the backend omitted it, it is
// derived from unit price and quantity; with neither available it is zero.
func Value(t domain.Transaction) decimal.Decimal {
	if t.TotalPrice != nil {
		return *t.TotalPrice
	}
	if t.UnitPrice != nil {
		return t.UnitPrice.Mul(decimal.NewFromInt(Quantity(t)))
	}
	return decimal.Zero
}

func matches(t domain.Transaction, dir domain.Direction) bool {
	switch dir {
	case domain.DirectionBoth:
		return t.Direction == domain.DirectionIn || t.Direction == domain.DirectionOut
	default:
		return t.Direction == dir
	}
}

// BucketByWeek groups transactions of the given direction by ISO week and
// returns the buckets in ascending (year, week) order. A positive limit keeps
// only the most recent limit weeks. Records whose date cannot be parsed are
// left out and counted in skipped.
func BucketByWeek(txns []domain.Transaction, dir domain.Direction, limit int) (buckets []domain.WeeklyBucket, skipped int) {
	index := make(map[WeekKey]int)
	buckets = []domain.WeeklyBucket{}

	for _, t := range txns {
		if !matches(t, dir) {
			continue
		}
		date, ok := ParseDate(t.Date)
		if !ok {
			skipped++
			continue
		}

		key := WeekOf(date)
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, domain.WeeklyBucket{
				Year:       key.Year,
				Week:       key.Week,
				EntryValue: decimal.Zero,
				ExitValue:  decimal.Zero,
			})
		}

		b := &buckets[i]
		if t.Direction == domain.DirectionIn {
			b.EntryQuantity += Quantity(t)
			b.EntryValue = b.EntryValue.Add(Value(t))
		} else {
			b.ExitQuantity += Quantity(t)
			b.ExitValue = b.ExitValue.Add(Value(t))
		}
	}

	slices.SortFunc(buckets, func(a, b domain.WeeklyBucket) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Week, b.Week)
	})

	if limit > 0 && len(buckets) > limit {
		buckets = buckets[len(buckets)-limit:]
	}

	return buckets, skipped
}

// RankProducts sums quantity and value per product and returns the topN
// products by quantity, ties broken by value (descending) then product ID.
// Records without a product ID cannot be keyed and are ignored.
func RankProducts(txns []domain.Transaction, topN int) []domain.ProductAggregate {
	if topN <= 0 {
		topN = DefaultTopN
	}

	index := make(map[string]int)
	products := []domain.ProductAggregate{}

	for _, t := range txns {
		if t.ProductID == "" {
			continue
		}

		i, seen := index[t.ProductID]
		if !seen {
			i = len(products)
			index[t.ProductID] = i
			products = append(products, domain.ProductAggregate{
				ProductID:  t.ProductID,
				UnitPrice:  decimal.Zero,
				TotalValue: decimal.Zero,
			})
		}

		p := &products[i]
		if t.ProductName != "" {
			p.Name = t.ProductName
		}
		if t.UnitPrice != nil {
			p.UnitPrice = *t.UnitPrice
		}
		p.TotalQuantity += Quantity(t)
		p.TotalValue = p.TotalValue.Add(Value(t))
	}

	slices.SortFunc(products, func(a, b domain.ProductAggregate) int {
		if c := cmp.Compare(b.TotalQuantity, a.TotalQuantity); c != 0 {
			return c
		}
		if c := b.TotalValue.Cmp(a.TotalValue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	if len(products) > topN {
		products = products[:topN]
	}

	return products
}

// CountByInventoryCode counts records per inventory code. Records without a
// code are not counted.
func CountByInventoryCode(txns []domain.Transaction) map[string]int {
	counts := make(map[string]int)
	for _, t := range txns {
		if t.InventoryCode == "" {
			continue
		}
		counts[t.InventoryCode]++
	}
	return counts
}

// WithoutStatus returns the records whose status is not listed. The input
// slice is left untouched.
func WithoutStatus(txns []domain.Transaction, statuses ...domain.TransactionStatus) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if slices.Contains(statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out
}
