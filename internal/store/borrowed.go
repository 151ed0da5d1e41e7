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

const borrowColumns = `id, item_id, item_name, unit_price, image_url, description, borrower_name,
	borrower_department, quantity, borrow_date, return_date, actual_return_date, status,
	signature_url, created_at, updated_at`

// BorrowFilter narrows ListBorrowed.
type BorrowFilter struct {
	Search string
	Status model.BorrowStatus // Active or Returned
	ItemID string
}

// CreateBorrowed inserts a borrow record. Stock must already have been
// deducted by the caller within the same transaction.
func CreateBorrowed(ctx context.Context, q sqlx.ExtContext, b *model.BorrowedItem) (*model.BorrowedItem, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.BorrowActive
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO borrowed_items (`+borrowColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ItemID, b.ItemName, b.UnitPrice, b.ImageURL, b.Description, b.BorrowerName,
		b.BorrowerDepartment, b.Quantity, b.BorrowDate.UTC(), b.ReturnDate.UTC(), b.ActualReturnDate, b.Status,
		b.SignatureURL, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("creating borrow record: %w", err)
	}

	return GetBorrowed(ctx, q, b.ID)
}

// GetBorrowed returns a borrow record by ID, or nil if it does not exist.
func GetBorrowed(ctx context.Context, q sqlx.QueryerContext, id string) (*model.BorrowedItem, error) {
	b := &model.BorrowedItem{}
	err := sqlx.GetContext(ctx, q, b, `SELECT `+borrowColumns+` FROM borrowed_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow record: %w", err)
	}
	return b, nil
}

// ListBorrowed returns borrow records, newest first.
func ListBorrowed(ctx context.Context, q sqlx.QueryerContext, f BorrowFilter) ([]model.BorrowedItem, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrowed_items WHERE 1=1`
	var args []any

	if f.Search != "" {
		like := containsPattern(f.Search)
		query += ` AND (item_name LIKE ? ESCAPE '\' OR borrower_name LIKE ? ESCAPE '\' OR borrower_department LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, f.ItemID)
	}

	query += ` ORDER BY created_at DESC, id`

	var items []model.BorrowedItem
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing borrow records: %w", err)
	}
	return items, nil
}

// MarkReturned flips an Active record to Returned. It reports false if the
// record was not Active, so a concurrent second return does nothing.
func MarkReturned(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE borrowed_items SET status = ?, actual_return_date = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		model.BorrowReturned, at.UTC(), time.Now().UTC(), id, model.BorrowActive,
	)
	if err != nil {
		return false, fmt.Errorf("marking borrow returned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	return n == 1, nil
}

// SetReturnDate moves the expected return date of an Active record.
func SetReturnDate(ctx context.Context, q sqlx.ExtContext, id string, returnDate time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE borrowed_items SET return_date = ?, updated_at = ? WHERE id = ? AND status = ?`,
		returnDate.UTC(), time.Now().UTC(), id, model.BorrowActive,
	)
	if err != nil {
		return fmt.Errorf("setting return date: %w", err)
	}
	return requireRow(res, "active borrow record", id)
}

// UpdateBorrowed rewrites the editable fields of a record. Item identity,
// item name and quantity are left alone.
func UpdateBorrowed(ctx context.Context, q sqlx.ExtContext, b *model.BorrowedItem) error {
	res, err := q.ExecContext(ctx,
		`UPDATE borrowed_items
		 SET description = ?, borrower_name = ?, borrower_department = ?, borrow_date = ?,
		     return_date = ?, unit_price = ?, signature_url = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		b.Description, b.BorrowerName, b.BorrowerDepartment, b.BorrowDate.UTC(),
		b.ReturnDate.UTC(), b.UnitPrice, b.SignatureURL, b.ImageURL, time.Now().UTC(), b.ID,
	)
	if err != nil {
		return fmt.Errorf("updating borrow record: %w", err)
	}
	return requireRow(res, "borrow record", b.ID)
}

// DeleteBorrowed removes a borrow record.
func DeleteBorrowed(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM borrowed_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting borrow record: %w", err)
	}
	return requireRow(res, "borrow record", id)
}
