package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
)

const usageColumns = `id, item_id, item_name, unit_price, image_url, description, type, quantity,
	recipient_name, recipient_department, reason, date, created_at, updated_at`

// UsageFilter narrows ListUsage.
type UsageFilter struct {
	Search string
	Type   model.UsageType
	ItemID string
}

// CreateUsage inserts a used/given record.
func CreateUsage(ctx context.Context, q sqlx.ExtContext, u *model.UsedGivenItem) (*model.UsedGivenItem, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := q.ExecContext(ctx,
		`INSERT INTO used_given_items (`+usageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ItemID, u.ItemName, u.UnitPrice, u.ImageURL, u.Description, u.Type, u.Quantity,
		u.RecipientName, u.RecipientDepartment, u.Reason, u.Date.UTC(), u.CreatedAt, u.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("creating usage record: %w", err)
	}

	return GetUsage(ctx, q, u.ID)
}

// GetUsage returns a used/given record by ID, or nil if it does not exist.
func GetUsage(ctx context.Context, q sqlx.QueryerContext, id string) (*model.UsedGivenItem, error) {
	u := &model.UsedGivenItem{}
	err := sqlx.GetContext(ctx, q, u, `SELECT `+usageColumns+` FROM used_given_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting usage record: %w", err)
	}
	return u, nil
}

// ListUsage returns used/given records, newest first.
func ListUsage(ctx context.Context, q sqlx.QueryerContext, f UsageFilter) ([]model.UsedGivenItem, error) {
	query := `SELECT ` + usageColumns + ` FROM used_given_items WHERE 1=1`
	var args []any

	if f.Search != "" {
		like := containsPattern(f.Search)
		query += ` AND (item_name LIKE ? ESCAPE '\' OR recipient_name LIKE ? ESCAPE '\' OR reason LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, f.ItemID)
	}

	query += ` ORDER BY date DESC, created_at DESC, id`

	var items []model.UsedGivenItem
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	return items, nil
}

// DeleteUsage removes a used/given record.
func DeleteUsage(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM used_given_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting usage record: %w", err)
	}
	return requireRow(res, "usage record", id)
}
