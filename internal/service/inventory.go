package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// ItemFields are the editable attributes of an inventory row.
type ItemFields struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Location     string          `json:"location"`
	Description  string          `json:"description"`
	Condition    model.Condition `json:"condition"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReorderPoint int             `json:"reorder_point"`
}

func (f *ItemFields) validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	if f.Condition == "" {
		f.Condition = model.ConditionGood
	}

	switch {
	case f.Name == "":
		return model.Invalid("name", "is required")
	case f.Category == "":
		return model.Invalid("category", "is required")
	case f.Location == "":
		return model.Invalid("location", "is required")
	case !f.Condition.Valid():
		return model.Invalid("condition", fmt.Sprintf("unknown condition %q", f.Condition))
	case f.UnitPrice.IsNegative():
		return model.Invalid("unit_price", "must not be negative")
	case f.ReorderPoint < 0:
		return model.Invalid("reorder_point", "must not be negative")
	}
	return nil
}

// ItemInput creates an inventory row.
type ItemInput struct {
	ItemFields
	Quantity int `json:"quantity"`
}

// ItemUpdate edits an inventory row. Quantity may only change together with
// the quantity the caller last saw.
type ItemUpdate struct {
	ItemFields
	Quantity         *int `json:"quantity,omitempty"`
	ExpectedQuantity *int `json:"expected_quantity,omitempty"`
}

// GetItem returns an inventory row.
func (s *Service) GetItem(ctx context.Context, sess model.Session, id string) (*model.InventoryItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// ListItems returns inventory rows matching f.
func (s *Service) ListItems(ctx context.Context, sess model.Session, f store.ItemFilter) ([]model.InventoryItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	return store.ListItems(ctx, s.db, f)
}

// StockLevels counts rows per stock status.
func (s *Service) StockLevels(ctx context.Context, sess model.Session) (map[model.StockStatus]int, error) {
	items, err := s.ListItems(ctx, sess, store.ItemFilter{})
	if err != nil {
		return nil, err
	}
	levels := map[model.StockStatus]int{
		model.StatusInStock:    0,
		model.StatusLowStock:   0,
		model.StatusOutOfStock: 0,
	}
	for _, item := range items {
		levels[item.Status]++
	}
	return levels, nil
}

// CreateItem adds a new inventory row.
func (s *Service) CreateItem(ctx context.Context, sess model.Session, in ItemInput) (*model.InventoryItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, model.Invalid("quantity", "must not be negative")
	}

	item, err := store.CreateItem(ctx, s.db, &model.InventoryItem{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Category:     in.Category,
		Location:     in.Location,
		Description:  in.Description,
		Condition:    in.Condition,
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		ReorderPoint: in.ReorderPoint,
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(sess, model.ActionAdd,
		fmt.Sprintf("Added inventory item: %s (%d)", item.Name, item.Quantity), tableInventory, item.ID)
	s.versions.Bump(cache.Inventory, cache.Stats)
	slog.Info("inventory item created", "user", sess.Email, "item", item.Name, "quantity", item.Quantity)
	return item, nil
}

// UpdateItem edits an inventory row's metadata and, when requested, its
// quantity. A quantity edit against a stale snapshot fails with ErrConflict.
func (s *Service) UpdateItem(ctx context.Context, sess model.Session, id string, in ItemUpdate) (*model.InventoryItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, model.Invalid("quantity", "must not be negative")
		}
		if in.ExpectedQuantity == nil {
			return nil, model.Invalid("expected_quantity", "is required when changing quantity")
		}
	}

	var updated *model.InventoryItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		item, err := store.GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
		}

		item.Name = in.Name
		item.Category = in.Category
		item.Location = in.Location
		item.Description = in.Description
		item.Condition = in.Condition
		item.UnitPrice = in.UnitPrice
		item.ReorderPoint = in.ReorderPoint
		if err := store.UpdateItem(ctx, tx, item); err != nil {
			return err
		}

		if in.Quantity != nil && *in.Quantity != item.Quantity {
			if err := store.SetQuantity(ctx, tx, id, *in.ExpectedQuantity, *in.Quantity); err != nil {
				return err
			}
		}

		updated, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("Updated inventory item: %s", updated.Name), tableInventory, id)
	s.versions.Bump(cache.Inventory, cache.Stats)
	slog.Info("inventory item updated", "user", sess.Email, "item", updated.Name)
	return updated, nil
}

// AdjustItem adds delta to the on-hand quantity. Subtraction clamps at zero.
func (s *Service) AdjustItem(ctx context.Context, sess model.Session, id string, delta int) (*model.InventoryItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}

	var item *model.InventoryItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = store.AdjustQuantity(ctx, tx, id, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	verb := "Added"
	if delta < 0 {
		verb = "Subtracted"
	}
	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("%s %d to %s, now %d", verb, abs(delta), item.Name, item.Quantity), tableInventory, id)
	s.versions.Bump(cache.Inventory, cache.Stats)
	slog.Info("inventory quantity adjusted", "user", sess.Email, "item", item.Name, "delta", delta)
	return item, nil
}

// SetItemImage replaces a row's photo. The previous photo is deleted unless a
// borrow or usage snapshot still points at it.
func (s *Service) SetItemImage(ctx context.Context, sess model.Session, id string, r io.Reader) (*model.InventoryItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	existing, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
	}

	img, err := imaging.Process(r)
	if err != nil {
		return nil, err
	}
	url, err := s.upload(ctx, "item", img.Ext, img.Data)
	if err != nil {
		return nil, err
	}

	var previous string
	var item *model.InventoryItem
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := store.GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
		}
		previous = current.ImageURL
		if err := store.SetItemImage(ctx, tx, id, url); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		s.discard(ctx, url)
		return nil, err
	}

	s.discardUnreferenced(ctx, previous)

	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("Updated image of %s", item.Name), tableInventory, id)
	s.versions.Bump(cache.Inventory, cache.Stats)
	return item, nil
}

// DeleteItem removes an inventory row. Borrow and usage records keep their
// snapshots and lose the link.
func (s *Service) DeleteItem(ctx context.Context, sess model.Session, id string) error {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return err
	}

	var item *model.InventoryItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = store.GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("inventory item %s: %w", id, model.ErrNotFound)
		}
		return store.DeleteItem(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.discardUnreferenced(ctx, item.ImageURL)

	s.activity.Log(sess, model.ActionDelete,
		fmt.Sprintf("Deleted inventory item: %s", item.Name), tableInventory, id)
	s.versions.Bump(cache.Inventory, cache.Borrowed, cache.UsedGiven, cache.Stats)
	slog.Info("inventory item deleted", "user", sess.Email, "item", item.Name)
	return nil
}

// discardUnreferenced deletes an item photo unless a snapshot still uses it.
func (s *Service) discardUnreferenced(ctx context.Context, url string) {
	if url == "" {
		return
	}
	used, err := store.ImageInUse(ctx, s.db, url)
	if err != nil {
		slog.Warn("failed to check image references", "url", url, "error", err)
		return
	}
	if !used {
		s.discard(ctx, url)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
