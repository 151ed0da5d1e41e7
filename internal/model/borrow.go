package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BorrowStatus is the persisted state of a borrow record.
type BorrowStatus string

// Borrow statuses. Overdue is never stored; see ledger.DisplayStatus.
const (
	BorrowActive   BorrowStatus = "Active"
	BorrowReturned BorrowStatus = "Returned"
	BorrowOverdue  BorrowStatus = "Overdue"
)

// BorrowExtension is how far an extend pushes the expected return date.
const BorrowExtension = 7 * 24 * time.Hour

// BorrowedItem records stock temporarily handed out to a borrower.
//
// ItemName, UnitPrice and ImageURL are snapshots taken when the record was
// created and are never rewritten from the inventory row.
type BorrowedItem struct {
	ID                 string          `db:"id" json:"id"`
	ItemID             *string         `db:"item_id" json:"item_id"`
	ItemName           string          `db:"item_name" json:"item_name"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	ImageURL           string          `db:"image_url" json:"image_url,omitempty"`
	Description        string          `db:"description" json:"description,omitempty"`
	BorrowerName       string          `db:"borrower_name" json:"borrower_name"`
	BorrowerDepartment string          `db:"borrower_department" json:"borrower_department,omitempty"`
	Quantity           int             `db:"quantity" json:"quantity"`
	BorrowDate         time.Time       `db:"borrow_date" json:"borrow_date"`
	ReturnDate         time.Time       `db:"return_date" json:"return_date"`
	ActualReturnDate   *time.Time      `db:"actual_return_date" json:"actual_return_date,omitempty"`
	Status             BorrowStatus    `db:"status" json:"status"`
	SignatureURL       string          `db:"signature_url" json:"signature_url,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`

	// Computed, not stored.
	DisplayStatus BorrowStatus `db:"-" json:"display_status,omitempty"`
}

// TotalValue is the snapshot price times the borrowed quantity.
func (b BorrowedItem) TotalValue() decimal.Decimal {
	return b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity)))
}
