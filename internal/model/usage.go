package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageType distinguishes stock consumed internally from stock handed out.
type UsageType string

// Usage types.
const (
	UsageUsed  UsageType = "used"
	UsageGiven UsageType = "given"
)

// Valid reports whether t is a known usage type.
func (t UsageType) Valid() bool {
	return t == UsageUsed || t == UsageGiven
}

// UsedGivenItem is a permanent removal of stock. Deleting the record is the
// only way to put the quantity back.
type UsedGivenItem struct {
	ID                  string          `db:"id" json:"id"`
	ItemID              *string         `db:"item_id" json:"item_id"`
	ItemName            string          `db:"item_name" json:"item_name"`
	UnitPrice           decimal.Decimal `db:"unit_price" json:"unit_price"`
	ImageURL            string          `db:"image_url" json:"image_url,omitempty"`
	Description         string          `db:"description" json:"description,omitempty"`
	Type                UsageType       `db:"type" json:"type"`
	Quantity            int             `db:"quantity" json:"quantity"`
	RecipientName       string          `db:"recipient_name" json:"recipient_name,omitempty"`
	RecipientDepartment string          `db:"recipient_department" json:"recipient_department,omitempty"`
	Reason              string          `db:"reason" json:"reason,omitempty"`
	Date                time.Time       `db:"date" json:"date"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}
