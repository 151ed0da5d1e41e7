package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/ledger"
	"github.com/erazemk/zaloga/internal/model"
)

func newItem(t *testing.T, database *sqlx.DB, name string, qty int) *model.InventoryItem {
	t.Helper()
	item, err := CreateItem(context.Background(), database, &model.InventoryItem{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  "Cement",
		Location:  "Warehouse A",
		Condition: model.ConditionGood,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func TestCreateItemDerivesStatusAndTotal(t *testing.T) {
	database := db.NewTestDB(t)

	item := newItem(t, database, "Portland cement", 25)

	assert.Equal(t, 25, item.Quantity)
	assert.Equal(t, 25, item.TotalItems)
	assert.Equal(t, model.StatusLowStock, item.Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(item.UnitPrice))
	assert.False(t, item.CreatedAt.IsZero())
}

func TestGetItemMissing(t *testing.T) {
	database := db.NewTestDB(t)

	item, err := GetItem(context.Background(), database, "nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestListItemsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	newItem(t, database, "Rebar 10mm", 100)
	newItem(t, database, "Gravel", 0)
	broken := newItem(t, database, "Cracked tiles", 40)
	broken.Condition = model.ConditionDefected
	require.NoError(t, UpdateItem(ctx, database, broken))

	all, err := ListItems(ctx, database, ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Cracked tiles", all[0].Name)

	found, err := ListItems(ctx, database, ItemFilter{Search: "rebar"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Rebar 10mm", found[0].Name)

	out, err := ListItems(ctx, database, ItemFilter{Status: model.StatusOutOfStock})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Gravel", out[0].Name)

	defected, err := ListDefected(ctx, database)
	require.NoError(t, err)
	require.Len(t, defected, 1)
	assert.Equal(t, broken.ID, defected[0].ID)
}

func TestDeductStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Sand", 50)

	require.NoError(t, DeductStock(ctx, database, item.ID, 25))

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)
	assert.Equal(t, model.StatusLowStock, got.Status)
	assert.Equal(t, 50, got.TotalItems)
}

func TestDeductStockInsufficientLeavesRowAlone(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Sand", 5)

	err := DeductStock(ctx, database, item.ID, 6)
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	var stockErr *model.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestDeductStockMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	err := DeductStock(context.Background(), database, "missing", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeductStockRejectsNonPositive(t *testing.T) {
	database := db.NewTestDB(t)
	item := newItem(t, database, "Sand", 5)

	err := DeductStock(context.Background(), database, item.ID, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRestoreStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Bricks", 0)

	ok, err := RestoreStock(ctx, database, item.ID, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := GetItem(ctx, database, item.ID)
	assert.Equal(t, 30, got.Quantity)
	assert.Equal(t, model.StatusInStock, got.Status)

	ok, err = RestoreStock(ctx, database, "gone", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdjustQuantityClampsAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Nails", 10)

	got, err := AdjustQuantity(ctx, database, item.ID, -25)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, model.StatusOutOfStock, got.Status)

	got, err = AdjustQuantity(ctx, database, item.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Quantity)
	assert.Equal(t, model.StatusInStock, got.Status)

	_, err = AdjustQuantity(ctx, database, "missing", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetQuantityDetectsStaleSnapshot(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Plywood", 40)

	require.NoError(t, DeductStock(ctx, database, item.ID, 5))

	err := SetQuantity(ctx, database, item.ID, 40, 45)
	require.ErrorIs(t, err, model.ErrConflict)

	require.NoError(t, SetQuantity(ctx, database, item.ID, 35, 20))
	got, _ := GetItem(ctx, database, item.ID)
	assert.Equal(t, 20, got.Quantity)
	assert.Equal(t, model.StatusLowStock, got.Status)
}

func TestDeleteItemOrphansDependents(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Shovel", 10)

	b := newBorrow(t, database, item, 2)

	require.NoError(t, DeleteItem(ctx, database, item.ID))

	got, err := GetBorrowed(ctx, database, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ItemID)
	assert.Equal(t, "Shovel", got.ItemName)

	assert.ErrorIs(t, DeleteItem(ctx, database, item.ID), model.ErrNotFound)
}

func TestImageInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := newItem(t, database, "Wheelbarrow", 4)
	require.NoError(t, SetItemImage(ctx, database, item.ID, "/storage/item-a.jpg"))

	used, err := ImageInUse(ctx, database, "/storage/item-a.jpg")
	require.NoError(t, err)
	assert.False(t, used)

	b := newBorrow(t, database, item, 1)
	b.ImageURL = "/storage/item-a.jpg"
	require.NoError(t, UpdateBorrowed(ctx, database, b))

	used, err = ImageInUse(ctx, database, "/storage/item-a.jpg")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestChangeQuantityRetriesAfterConcurrentWrite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Rebar", 40)

	var seen []int
	got, err := changeQuantity(ctx, database, item.ID, func(current int) (int, model.StockStatus, error) {
		seen = append(seen, current)
		if len(seen) == 1 {
			// Another writer takes 15 between our read and our write.
			_, err := database.ExecContext(ctx,
				`UPDATE inventory_items SET quantity = quantity - 15 WHERE id = ?`, item.ID)
			require.NoError(t, err)
		}
		return ledger.ApplyDelta(item.ID, current, -20)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 25}, seen)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, model.StatusLowStock, got.Status)

	stored, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)
	assert.Equal(t, model.StatusLowStock, stored.Status)
}

func TestChangeQuantityMissingRow(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := changeQuantity(context.Background(), database, "missing", func(current int) (int, model.StockStatus, error) {
		t.Fatal("rule must not run for a missing row")
		return 0, "", nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnitPriceKeepsFullPrecision(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	item := newItem(t, database, "Epoxy", 3)

	item.UnitPrice = decimal.RequireFromString("0.123456789012345678")
	require.NoError(t, UpdateItem(ctx, database, item))

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.123456789012345678", got.UnitPrice.String())
}

func TestListItemsSearchMatchesWildcardsLiterally(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	newItem(t, database, "Primer 100% acrylic", 5)
	newItem(t, database, "Primer 1000 acrylic", 5)
	newItem(t, database, "Tile_spacer", 5)
	newItem(t, database, "Tile spacer", 5)

	found, err := ListItems(ctx, database, ItemFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Primer 100% acrylic", found[0].Name)

	found, err = ListItems(ctx, database, ItemFilter{Search: "tile_"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Tile_spacer", found[0].Name)
}
