package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/ledger"
	"github.com/erazemk/zaloga/internal/model"
)

const itemColumns = `id, name, category, location, description, condition, quantity, total_items,
	unit_price, reorder_point, status, image_url, created_at, updated_at`

// ItemFilter narrows ListItems. Empty fields match everything.
type ItemFilter struct {
	Search    string
	Category  string
	Status    model.StockStatus
	Condition model.Condition
}

// CreateItem inserts a new inventory row. TotalItems is fixed to the initial
// quantity and the status is derived from it.
func CreateItem(ctx context.Context, q sqlx.ExtContext, item *model.InventoryItem) (*model.InventoryItem, error) {
	now := time.Now().UTC()
	item.TotalItems = item.Quantity
	item.Status = ledger.DeriveStatus(item.Quantity)
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO inventory_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Category, item.Location, item.Description, item.Condition,
		item.Quantity, item.TotalItems, item.UnitPrice, item.ReorderPoint, item.Status,
		item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating inventory item: %w", err)
	}

	return GetItem(ctx, q, item.ID)
}

// GetItem returns an inventory row by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q sqlx.QueryerContext, id string) (*model.InventoryItem, error) {
	item := &model.InventoryItem{}
	err := sqlx.GetContext(ctx, q, item,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory item: %w", err)
	}
	return item, nil
}

// ListItems returns inventory rows ordered by name.
func ListItems(ctx context.Context, q sqlx.QueryerContext, f ItemFilter) ([]model.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE 1=1`
	var args []any

	if f.Search != "" {
		like := containsPattern(f.Search)
		query += ` AND (name LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\' OR location LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Condition != "" {
		query += ` AND condition = ?`
		args = append(args, f.Condition)
	}

	query += ` ORDER BY name COLLATE NOCASE, id`

	var items []model.InventoryItem
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing inventory items: %w", err)
	}
	return items, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term anywhere, used with
// ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// ListDefected returns rows whose condition is Defected.
func ListDefected(ctx context.Context, q sqlx.QueryerContext) ([]model.InventoryItem, error) {
	return ListItems(ctx, q, ItemFilter{Condition: model.ConditionDefected})
}

// UpdateItem updates an item's metadata. Quantity and TotalItems are not
// touched; quantity changes go through SetQuantity or the stock functions.
func UpdateItem(ctx context.Context, q sqlx.ExtContext, item *model.InventoryItem) error {
	res, err := q.ExecContext(ctx,
		`UPDATE inventory_items
		 SET name = ?, category = ?, location = ?, description = ?, condition = ?,
		     unit_price = ?, reorder_point = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Category, item.Location, item.Description, item.Condition,
		item.UnitPrice, item.ReorderPoint, item.ImageURL, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating inventory item: %w", err)
	}
	return requireRow(res, "inventory item", item.ID)
}

// SetQuantity overwrites the on-hand quantity, but only if it still equals
// expected. A mismatch means the caller edited a stale snapshot.
func SetQuantity(ctx context.Context, q sqlx.ExtContext, id string, expected, quantity int) error {
	if quantity < 0 {
		return model.Invalid("quantity", "must not be negative")
	}

	res, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ?, updated_at = ? WHERE id = ? AND quantity = ?`,
		quantity, time.Now().UTC(), id, expected,
	)
	if err != nil {
		return fmt.Errorf("setting quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		item, err := GetItem(ctx, q, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
		}
		return fmt.Errorf("inventory item %s changed from %d to %d: %w", id, expected, item.Quantity, model.ErrConflict)
	}
	return refreshStatus(ctx, q, id)
}

// DeductStock subtracts quantity if enough stock is on hand. It never
// clamps: a short row yields *model.InsufficientStockError and is left
// unmodified.
func DeductStock(ctx context.Context, q sqlx.ExtContext, id string, quantity int) error {
	if quantity <= 0 {
		return model.Invalid("quantity", "must be positive")
	}

	item, err := changeQuantity(ctx, q, id, func(current int) (int, model.StockStatus, error) {
		return ledger.ApplyDelta(id, current, -quantity)
	})
	if err != nil {
		return fmt.Errorf("deducting stock: %w", err)
	}
	if item == nil {
		return fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// RestoreStock adds quantity back to a row. It reports false without error
// when the row no longer exists.
func RestoreStock(ctx context.Context, q sqlx.ExtContext, id string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, model.Invalid("quantity", "must be positive")
	}

	item, err := changeQuantity(ctx, q, id, func(current int) (int, model.StockStatus, error) {
		return ledger.ApplyDelta(id, current, quantity)
	})
	if err != nil {
		return false, fmt.Errorf("restoring stock: %w", err)
	}
	return item != nil, nil
}

// AdjustQuantity applies a manual add/subtract. Subtraction clamps at zero.
func AdjustQuantity(ctx context.Context, q sqlx.ExtContext, id string, delta int) (*model.InventoryItem, error) {
	if delta == 0 {
		return nil, model.Invalid("delta", "must be non-zero")
	}

	item, err := changeQuantity(ctx, q, id, func(current int) (int, model.StockStatus, error) {
		next, status := ledger.ClampDelta(current, delta)
		return next, status, nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjusting quantity: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// changeQuantity reads a row, asks rule for its next quantity and writes it
// back only if the quantity is still the one rule saw. On a lost race the
// rule runs again against the fresh row. A missing row returns (nil, nil).
func changeQuantity(ctx context.Context, q sqlx.ExtContext, id string,
	rule func(current int) (int, model.StockStatus, error),
) (*model.InventoryItem, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := GetItem(ctx, q, id)
		if err != nil || item == nil {
			return nil, err
		}
		next, status, err := rule(item.Quantity)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		res, err := q.ExecContext(ctx,
			`UPDATE inventory_items SET quantity = ?, status = ?, updated_at = ?
			 WHERE id = ? AND quantity = ?`,
			next, status, now, id, item.Quantity,
		)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking affected rows: %w", err)
		}
		if n == 1 {
			item.Quantity = next
			item.Status = status
			item.UpdatedAt = now
			return item, nil
		}
	}
}

// SetItemImage replaces the image URL of a row.
func SetItemImage(ctx context.Context, q sqlx.ExtContext, id, url string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET image_url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return requireRow(res, "inventory item", id)
}

// DeleteItem removes an inventory row. Borrow and usage records that point at
// it keep their snapshots and lose the link.
func DeleteItem(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting inventory item: %w", err)
	}
	return requireRow(res, "inventory item", id)
}

// refreshStatus rewrites status from the current quantity.
func refreshStatus(ctx context.Context, q sqlx.ExtContext, id string) error {
	var quantity int
	if err := sqlx.GetContext(ctx, q, &quantity,
		`SELECT quantity FROM inventory_items WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("reading quantity: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET status = ? WHERE id = ?`,
		ledger.DeriveStatus(quantity), id,
	); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// requireRow turns a zero-row result into ErrNotFound.
func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, model.ErrNotFound)
	}
	return nil
}

// ImageInUse reports whether a borrow or usage snapshot still references url.
func ImageInUse(ctx context.Context, q sqlx.QueryerContext, url string) (bool, error) {
	var used bool
	err := sqlx.GetContext(ctx, q, &used,
		`SELECT EXISTS(SELECT 1 FROM borrowed_items WHERE image_url = ?)
		     OR EXISTS(SELECT 1 FROM used_given_items WHERE image_url = ?)`,
		url, url,
	)
	if err != nil {
		return false, fmt.Errorf("checking image references: %w", err)
	}
	return used, nil
}
