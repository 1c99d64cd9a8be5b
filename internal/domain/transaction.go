package domain

import (
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// ParseDirection accepts in/out/both plus the console's receivement/exit aliases.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "in", "entry", "receivement", "receivements":
		return DirectionIn, true
	case "out", "exit", "exits":
		return DirectionOut, true
	case "", "both", "all":
		return DirectionBoth, true
	}
	return "", false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionCanceled  TransactionStatus = "CANCELED"
	TransactionReturned  TransactionStatus = "RETURNED"
)

// Transaction is a receivement (In) or an exit (Out) as fetched from the
// inventory backend. Numeric fields are pointers because the backend may
// omit them; the aggregator treats a missing value as zero contribution.
type Transaction struct {
	ID            string            `json:"id"`
	ProductID     string            `json:"productId"`
	ProductName   string            `json:"productName"`
	InventoryCode string            `json:"inventoryCode"`
	Quantity      *int              `json:"quantity"`
	UnitPrice     *decimal.Decimal  `json:"unitPrice"`
	TotalPrice    *decimal.Decimal  `json:"totalPrice"`
	Date          string            `json:"date"`
	Direction     Direction         `json:"direction"`
	Status        TransactionStatus `json:"status"`
}

// WeeklyBucket accumulates one ISO (year, week).
type WeeklyBucket struct {
	Year          int             `json:"year"`
	Week          int             `json:"week"`
	EntryQuantity int64           `json:"entry_quantity"`
	EntryValue    decimal.Decimal `json:"entry_value"`
	ExitQuantity  int64           `json:"exit_quantity"`
	ExitValue     decimal.Decimal `json:"exit_value"`
}

// ProductAggregate accumulates one product.
type ProductAggregate struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}
