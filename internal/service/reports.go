package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/dashboard"
	"github.com/erazemk/zaloga/internal/ledger"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/report"
	"github.com/erazemk/zaloga/internal/store"
)

// DefaultActivityLimit is used when no activity limit is requested.
const DefaultActivityLimit = 50

// ListActivity returns the newest activity entries.
func (s *Service) ListActivity(ctx context.Context, sess model.Session, limit int) ([]model.ActivityLog, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return store.ListActivity(ctx, s.db, limit)
}

// Dashboard returns the summary, recomputed only after a stats bump or when
// the cached one was generated on another day.
func (s *Service) Dashboard(ctx context.Context, sess model.Session) (dashboard.Summary, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return dashboard.Summary{}, err
	}

	compute := func() (dashboard.Summary, error) {
		now := s.now()
		items, err := store.ListItems(ctx, s.db, store.ItemFilter{})
		if err != nil {
			return dashboard.Summary{}, err
		}
		borrowed, err := store.ListBorrowed(ctx, s.db, store.BorrowFilter{})
		if err != nil {
			return dashboard.Summary{}, err
		}
		logs, err := store.ListActivitySince(ctx, s.db, dashboard.WeekStart(now))
		if err != nil {
			return dashboard.Summary{}, err
		}
		return dashboard.Compute(dashboard.Input{Items: items, Borrowed: borrowed, Activity: logs}, now), nil
	}

	summary, err := s.summary.Get(compute)
	if err != nil {
		return dashboard.Summary{}, fmt.Errorf("computing dashboard: %w", err)
	}
	if !sameDay(summary.GeneratedAt, s.now()) {
		s.versions.Bump(cache.Stats)
		if summary, err = s.summary.Get(compute); err != nil {
			return dashboard.Summary{}, fmt.Errorf("computing dashboard: %w", err)
		}
	}
	return summary, nil
}

// InventoryReport renders every inventory row as PDF.
func (s *Service) InventoryReport(ctx context.Context, sess model.Session) ([]byte, error) {
	items, err := s.ListItems(ctx, sess, store.ItemFilter{})
	if err != nil {
		return nil, err
	}
	return report.Inventory(items, s.now())
}

// DefectedReport renders the defected rows as PDF.
func (s *Service) DefectedReport(ctx context.Context, sess model.Session) ([]byte, error) {
	items, err := s.ListDefects(ctx, sess)
	if err != nil {
		return nil, err
	}
	return report.Defected(items, s.now())
}

// BorrowedReport renders every borrow record with its signature as PDF.
func (s *Service) BorrowedReport(ctx context.Context, sess model.Session) ([]byte, error) {
	records, err := s.ListBorrowed(ctx, sess, store.BorrowFilter{})
	if err != nil {
		return nil, err
	}
	return report.Borrowed(records, s.blobs.Read, s.now())
}

// Export dumps every table.
func (s *Service) Export(ctx context.Context, sess model.Session) (*store.Export, error) {
	if err := authorize(sess, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	out, err := store.ExportAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range out.BorrowedItems {
		b := &out.BorrowedItems[i]
		b.DisplayStatus = ledger.DisplayStatus(b.Status, b.ReturnDate, s.now())
	}
	slog.Info("records exported", "user", sess.Email,
		"inventory", len(out.InventoryItems), "borrowed", len(out.BorrowedItems), "used_given", len(out.UsedGivenItems))
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
