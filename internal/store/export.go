package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
)

// Export is a full dump of every application table.
type Export struct {
	ExportedAt     time.Time             `json:"exported_at"`
	InventoryItems []model.InventoryItem `json:"inventory_items"`
	BorrowedItems  []model.BorrowedItem  `json:"borrowed_items"`
	UsedGivenItems []model.UsedGivenItem `json:"used_given_items"`
	ActivityLogs   []model.ActivityLog   `json:"activity_logs"`
	Profiles       []model.Profile       `json:"profiles"`
	UserRoles      []model.UserRole      `json:"user_roles"`
}

// ExportAll reads every table. Pass a transaction for a consistent snapshot.
func ExportAll(ctx context.Context, q sqlx.QueryerContext) (*Export, error) {
	var (
		e   = &Export{ExportedAt: time.Now().UTC()}
		err error
	)

	if e.InventoryItems, err = ListItems(ctx, q, ItemFilter{}); err != nil {
		return nil, err
	}
	if e.BorrowedItems, err = ListBorrowed(ctx, q, BorrowFilter{}); err != nil {
		return nil, err
	}
	if e.UsedGivenItems, err = ListUsage(ctx, q, UsageFilter{}); err != nil {
		return nil, err
	}
	if e.ActivityLogs, err = ListActivity(ctx, q, 0); err != nil {
		return nil, err
	}
	if e.Profiles, err = ListProfiles(ctx, q); err != nil {
		return nil, err
	}
	if e.UserRoles, err = ListUserRoles(ctx, q); err != nil {
		return nil, err
	}
	return e, nil
}
