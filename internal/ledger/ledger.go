// Package ledger holds the quantity rules shared by every stock mutation.
package ledger

import (
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// LowStockThreshold is the on-hand count below which a row is Low Stock.
const LowStockThreshold = 30

// DeriveStatus is the only conversion from a quantity to a stock status.
func DeriveStatus(quantity int) model.StockStatus {
	switch {
	case quantity <= 0:
		return model.StatusOutOfStock
	case quantity < LowStockThreshold:
		return model.StatusLowStock
	default:
		return model.StatusInStock
	}
}

// NeedsReorder reports whether a row has reached its restock advisory level.
// It is independent of the stock status and only feeds the dashboard.
func NeedsReorder(quantity, reorderPoint int) bool {
	return quantity <= reorderPoint
}

// ApplyDelta returns the quantity and status after adding delta. A negative
// delta larger than the on-hand quantity is rejected, never clamped.
func ApplyDelta(itemID string, quantity, delta int) (int, model.StockStatus, error) {
	next := quantity + delta
	if delta < 0 && next < 0 {
		return quantity, DeriveStatus(quantity), &model.InsufficientStockError{
			ItemID:    itemID,
			Available: quantity,
			Requested: -delta,
		}
	}
	return next, DeriveStatus(next), nil
}

// ClampDelta is the manual add/subtract rule: the result never drops below zero.
func ClampDelta(quantity, delta int) (int, model.StockStatus) {
	next := max(quantity+delta, 0)
	return next, DeriveStatus(next)
}

// DisplayStatus labels an active borrow past its expected return day as Overdue.
func DisplayStatus(status model.BorrowStatus, returnDate, now time.Time) model.BorrowStatus {
	if status == model.BorrowActive && IsOverdue(returnDate, now) {
		return model.BorrowOverdue
	}
	return status
}

// IsOverdue compares calendar days, so a borrow due today is not overdue.
func IsOverdue(returnDate, now time.Time) bool {
	due := startOfDay(returnDate.In(now.Location()))
	return due.Before(startOfDay(now))
}

// ReturnsBeforeBorrow reports whether a return date falls on an earlier
// calendar day than the borrow date. Times of day are ignored.
func ReturnsBeforeBorrow(returnDate, borrowDate time.Time) bool {
	due := startOfDay(returnDate.In(borrowDate.Location()))
	return due.Before(startOfDay(borrowDate))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
