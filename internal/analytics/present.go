package analytics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

// Monetary values leave the package as strings rounded here and only here.
const moneyPlaces = 2

type WeeklyPoint struct {
	Label         string `json:"label"`
	Year          int    `json:"year"`
	Week          int    `json:"week"`
	EntryQuantity int64  `json:"entry_quantity"`
	EntryValue    string `json:"entry_value"`
	ExitQuantity  int64  `json:"exit_quantity"`
	ExitValue     string `json:"exit_value"`
}

type WeeklySeries struct {
	Points  []WeeklyPoint `json:"points"`
	Skipped int           `json:"skipped"`
}

func PresentWeekly(buckets []domain.WeeklyBucket, skipped int) WeeklySeries {
	points := make([]WeeklyPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, WeeklyPoint{
			Label:         fmt.Sprintf("%d-W%02d", b.Year, b.Week),
			Year:          b.Year,
			Week:          b.Week,
			EntryQuantity: b.EntryQuantity,
			EntryValue:    b.EntryValue.StringFixed(moneyPlaces),
			ExitQuantity:  b.ExitQuantity,
			ExitValue:     b.ExitValue.StringFixed(moneyPlaces),
		})
	}
	return WeeklySeries{Points: points, Skipped: skipped}
}

type ProductRow struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Amount    string `json:"amount"`
}

func PresentProducts(products []domain.ProductAggregate) []ProductRow {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, ProductRow{
			ProductID: p.ProductID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice.StringFixed(moneyPlaces),
			Quantity:  p.TotalQuantity,
			Amount:    p.TotalValue.StringFixed(moneyPlaces),
		})
	}
	return rows
}

type InventorySlice struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

// PresentInventoryCodes turns the count map into pie slices. The map has no
// order, so slices are sorted by count then code for a stable chart legend.
func PresentInventoryCodes(counts map[string]int) []InventorySlice {
	out := make([]InventorySlice, 0, len(counts))
	for code, n := range counts {
		out = append(out, InventorySlice{
			Code:  code,
			Count: n,
			Label: fmt.Sprintf("%s - %d entradas", code, n),
		})
	}
	slices.SortFunc(out, func(a, b InventorySlice) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}
