package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Condition describes the physical state of stock.
type Condition string

// Item conditions.
const (
	ConditionBrandNew Condition = "Brand New"
	ConditionGood     Condition = "Good"
	ConditionFair     Condition = "Fair"
	ConditionDefected Condition = "Defected"
)

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	switch c {
	case ConditionBrandNew, ConditionGood, ConditionFair, ConditionDefected:
		return true
	}
	return false
}

// StockStatus is the availability label of an inventory row. It is only ever
// produced by ledger.DeriveStatus.
type StockStatus string

// Stock statuses.
const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)

// Valid reports whether s is one of the known statuses.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// InventoryItem is a stock row. Quantity is the on-hand count; TotalItems is
// the count at creation and is only used for valuation.
type InventoryItem struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Category     string          `db:"category" json:"category"`
	Location     string          `db:"location" json:"location"`
	Description  string          `db:"description" json:"description,omitempty"`
	Condition    Condition       `db:"condition" json:"condition"`
	Quantity     int             `db:"quantity" json:"quantity"`
	TotalItems   int             `db:"total_items" json:"total_items"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	ReorderPoint int             `db:"reorder_point" json:"reorder_point"`
	Status       StockStatus     `db:"status" json:"status"`
	ImageURL     string          `db:"image_url" json:"image_url,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Value returns the valuation of the row (unit price times original stock).
func (i InventoryItem) Value() decimal.Decimal {
	total := i.TotalItems
	if total == 0 {
		total = i.Quantity
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(total)))
}
