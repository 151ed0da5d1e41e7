// Package service implements the inventory, borrow, usage and user
// operations. Every stock mutation runs in a single immediate transaction
// and goes through the conditional updates in the store package.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/dashboard"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/storage"
)

// Activity table names.
const (
	tableInventory = "inventory_items"
	tableBorrowed  = "borrowed_items"
	tableUsage     = "used_given_items"
	tableUsers     = "profiles"
)

// Recorder appends audit entries. Implementations must not block or fail
// the caller.
type Recorder interface {
	Log(sess model.Session, action, description, table, recordID string)
}

// Service holds the dependencies shared by all operations.
type Service struct {
	db       *sqlx.DB
	blobs    storage.Blobs
	activity Recorder
	versions *cache.Versions
	summary  *cache.Memo[dashboard.Summary]
	now      func() time.Time
}

// New creates a Service.
func New(db *sqlx.DB, blobs storage.Blobs, activity Recorder, versions *cache.Versions) *Service {
	return &Service{
		db:       db,
		blobs:    blobs,
		activity: activity,
		versions: versions,
		summary:  cache.NewMemo[dashboard.Summary](versions, cache.Stats),
		now:      time.Now,
	}
}

// Versions returns the cache versions the service bumps.
func (s *Service) Versions() *cache.Versions {
	return s.versions
}

// inTx runs fn in a write transaction. The DSN makes it BEGIN IMMEDIATE, so
// concurrent writers queue on the database lock instead of racing.
func (s *Service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func authorize(sess model.Session, minimum model.Role) error {
	if sess.UserID == "" {
		return fmt.Errorf("no session: %w", model.ErrForbidden)
	}
	if !sess.Can(minimum) {
		return fmt.Errorf("%s role required: %w", minimum, model.ErrForbidden)
	}
	return nil
}

// upload stores data and returns its URL.
func (s *Service) upload(ctx context.Context, prefix, ext string, data []byte) (string, error) {
	url, err := s.blobs.Put(ctx, prefix, ext, data)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", prefix, err)
	}
	return url, nil
}

// discard removes blobs best-effort.
func (s *Service) discard(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, url); err != nil {
			slog.Warn("failed to delete blob", "url", url, "error", err)
		}
	}
}

func (s *Service) today() time.Time {
	return s.now().UTC()
}
