package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// ListDefects returns inventory rows in Defected condition.
func (s *Service) ListDefects(ctx context.Context, sess model.Session) ([]model.InventoryItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	return store.ListDefected(ctx, s.db)
}

// DeleteDefect writes off a defected row. No quantity is restored anywhere.
func (s *Service) DeleteDefect(ctx context.Context, sess model.Session, id string) error {
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
		if item == nil || item.Condition != model.ConditionDefected {
			return fmt.Errorf("defected item %s: %w", id, model.ErrNotFound)
		}
		return store.DeleteItem(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.discardUnreferenced(ctx, item.ImageURL)

	s.activity.Log(sess, model.ActionDelete,
		fmt.Sprintf("Wrote off defected item: %s (%d)", item.Name, item.Quantity), tableInventory, id)
	s.versions.Bump(cache.Inventory, cache.Borrowed, cache.UsedGiven, cache.Stats)
	slog.Info("defected item deleted", "user", sess.Email, "item", item.Name, "quantity", item.Quantity)
	return nil
}
