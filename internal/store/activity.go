package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
)

const activityColumns = `id, user_id, user_email, action_type, action_description, table_name, record_id, created_at`

// InsertActivity appends an audit entry.
func InsertActivity(ctx context.Context, q sqlx.ExtContext, a *model.ActivityLog) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO activity_logs (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.UserEmail, a.ActionType, a.ActionDescription, a.TableName, a.RecordID,
		a.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// ListActivity returns the newest entries first. A limit of 0 returns all.
func ListActivity(ctx context.Context, q sqlx.QueryerContext, limit int) ([]model.ActivityLog, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_logs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var logs []model.ActivityLog
	if err := sqlx.SelectContext(ctx, q, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return logs, nil
}

// ListActivitySince returns entries created at or after since, oldest first.
func ListActivitySince(ctx context.Context, q sqlx.QueryerContext, since time.Time) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	if err := sqlx.SelectContext(ctx, q, &logs,
		`SELECT `+activityColumns+` FROM activity_logs WHERE created_at >= ? ORDER BY created_at, id`,
		since.UTC(),
	); err != nil {
		return nil, fmt.Errorf("listing activity since %s: %w", since.Format(time.RFC3339), err)
	}
	return logs, nil
}
