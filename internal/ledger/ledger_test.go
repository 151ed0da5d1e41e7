package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/model"
)

func TestDeriveStatusBoundaries(t *testing.T) {
	tests := []struct {
		quantity int
		want     model.StockStatus
	}{
		{0, model.StatusOutOfStock},
		{1, model.StatusLowStock},
		{29, model.StatusLowStock},
		{30, model.StatusInStock},
		{500, model.StatusInStock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveStatus(tt.quantity), "quantity %d", tt.quantity)
	}
}

func TestApplyDelta(t *testing.T) {
	qty, status, err := ApplyDelta("a", 50, -10)
	require.NoError(t, err)
	assert.Equal(t, 40, qty)
	assert.Equal(t, model.StatusInStock, status)

	qty, status, err = ApplyDelta("a", 40, 10)
	require.NoError(t, err)
	assert.Equal(t, 50, qty)
	assert.Equal(t, model.StatusInStock, status)

	qty, _, err = ApplyDelta("a", 3, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestApplyDeltaRejectsOverdraw(t *testing.T) {
	qty, status, err := ApplyDelta("a", 5, -6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))
	assert.Equal(t, 5, qty, "quantity must be left unchanged")
	assert.Equal(t, model.StatusLowStock, status)

	var stockErr *model.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)
}

func TestClampDelta(t *testing.T) {
	qty, status := ClampDelta(5, -10)
	assert.Equal(t, 0, qty)
	assert.Equal(t, model.StatusOutOfStock, status)

	qty, status = ClampDelta(25, 5)
	assert.Equal(t, 30, qty)
	assert.Equal(t, model.StatusInStock, status)
}

func TestNeedsReorder(t *testing.T) {
	assert.True(t, NeedsReorder(20, 20))
	assert.True(t, NeedsReorder(0, 0))
	assert.False(t, NeedsReorder(21, 20))
}

func TestDisplayStatus(t *testing.T) {
	now := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)

	yesterday := now.AddDate(0, 0, -1)
	assert.Equal(t, model.BorrowOverdue, DisplayStatus(model.BorrowActive, yesterday, now))

	earlyToday := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, model.BorrowActive, DisplayStatus(model.BorrowActive, earlyToday, now))

	assert.Equal(t, model.BorrowReturned, DisplayStatus(model.BorrowReturned, yesterday, now))
}

func TestReturnsBeforeBorrow(t *testing.T) {
	borrowed := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	assert.False(t, ReturnsBeforeBorrow(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), borrowed))
	assert.False(t, ReturnsBeforeBorrow(borrowed.AddDate(0, 0, 3), borrowed))
	assert.True(t, ReturnsBeforeBorrow(time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC), borrowed))
}
