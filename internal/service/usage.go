package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// UsageInput records stock consumed internally or handed out.
type UsageInput struct {
	ItemID              string          `json:"item_id"`
	Type                model.UsageType `json:"type"`
	Quantity            int             `json:"quantity"`
	RecipientName       string          `json:"recipient_name"`
	RecipientDepartment string          `json:"recipient_department"`
	Reason              string          `json:"reason"`
	Description         string          `json:"description"`
	Date                time.Time       `json:"date"`
	ExpectedQuantity    *int            `json:"expected_quantity,omitempty"`
}

func (in *UsageInput) validate(now time.Time) error {
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	if in.Date.IsZero() {
		in.Date = now
	}

	switch {
	case in.ItemID == "":
		return model.Invalid("item_id", "is required")
	case !in.Type.Valid():
		return model.Invalid("type", `must be "used" or "given"`)
	case in.Quantity <= 0:
		return model.Invalid("quantity", "must be positive")
	case in.Type == model.UsageGiven && in.RecipientName == "":
		return model.Invalid("recipient_name", "is required for given items")
	}
	return nil
}

// ListUsage returns used and given records, newest first.
func (s *Service) ListUsage(ctx context.Context, sess model.Session, f store.UsageFilter) ([]model.UsedGivenItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	return store.ListUsage(ctx, s.db, f)
}

// CreateUsage removes stock permanently. Only deleting the record puts it
// back.
func (s *Service) CreateUsage(ctx context.Context, sess model.Session, in UsageInput) (*model.UsedGivenItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(s.today()); err != nil {
		return nil, err
	}

	var created *model.UsedGivenItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		item, err := store.GetItem(ctx, tx, in.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("inventory item %s: %w", in.ItemID, model.ErrNotFound)
		}
		if in.ExpectedQuantity != nil && *in.ExpectedQuantity != item.Quantity {
			return fmt.Errorf("inventory item %s changed from %d to %d: %w",
				item.ID, *in.ExpectedQuantity, item.Quantity, model.ErrConflict)
		}
		if err := store.DeductStock(ctx, tx, item.ID, in.Quantity); err != nil {
			return err
		}

		u := &model.UsedGivenItem{
			ID:          uuid.NewString(),
			ItemID:      &item.ID,
			ItemName:    item.Name,
			UnitPrice:   item.UnitPrice,
			ImageURL:    item.ImageURL,
			Description: in.Description,
			Type:        in.Type,
			Quantity:    in.Quantity,
			Reason:      in.Reason,
			Date:        in.Date,
		}
		if in.Type == model.UsageGiven {
			u.RecipientName = in.RecipientName
			u.RecipientDepartment = strings.TrimSpace(in.RecipientDepartment)
		}
		created, err = store.CreateUsage(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	action := model.ActionItemUsed
	description := fmt.Sprintf("Used %d x %s", created.Quantity, created.ItemName)
	if created.Type == model.UsageGiven {
		action = model.ActionItemGiven
		description = fmt.Sprintf("Gave %d x %s to %s", created.Quantity, created.ItemName, created.RecipientName)
	}
	s.activity.Log(sess, action, description, tableUsage, created.ID)
	s.versions.Bump(cache.UsedGiven, cache.Inventory, cache.Stats)
	slog.Info("usage recorded", "user", sess.Email, "type", created.Type,
		"item", created.ItemName, "quantity", created.Quantity)
	return created, nil
}

// DeleteUsage removes a record and restores its quantity to the linked item.
// The restore is best-effort: if it fails the record is still deleted and a
// QUANTITY_DRIFT entry is logged for reconciliation.
func (s *Service) DeleteUsage(ctx context.Context, sess model.Session, id string) error {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return err
	}

	var (
		record     *model.UsedGivenItem
		restored   bool
		restoreErr error
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		u, err := store.GetUsage(ctx, tx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("usage record %s: %w", id, model.ErrNotFound)
		}
		record = u

		if u.ItemID != nil {
			restored, restoreErr = store.RestoreStock(ctx, tx, *u.ItemID, u.Quantity)
		}
		return store.DeleteUsage(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.activity.Log(sess, model.ActionDelete,
		fmt.Sprintf("Deleted %s record of %d x %s", record.Type, record.Quantity, record.ItemName), tableUsage, id)

	switch {
	case restoreErr != nil:
		slog.Error("failed to restore quantity after usage delete",
			"usage_id", id, "item", record.ItemName, "quantity", record.Quantity, "error", restoreErr)
		s.activity.Log(sess, model.ActionQuantityDrift,
			fmt.Sprintf("Could not restore %d x %s after deleting %s record", record.Quantity, record.ItemName, record.Type),
			tableInventory, deref(record.ItemID))
	case restored:
		s.activity.Log(sess, model.ActionItemRestored,
			fmt.Sprintf("Restored %d x %s to inventory", record.Quantity, record.ItemName),
			tableInventory, *record.ItemID)
	}

	s.versions.Bump(cache.UsedGiven, cache.Inventory, cache.Stats)
	slog.Info("usage deleted", "user", sess.Email, "item", record.ItemName,
		"quantity", record.Quantity, "restored", restored)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
