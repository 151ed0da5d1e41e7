// Package dashboard computes the summary statistics shown on the landing
// page. Everything here is a pure function of the rows passed in.
package dashboard

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/activity"
	"github.com/erazemk/zaloga/internal/ledger"
	"github.com/erazemk/zaloga/internal/model"
)

// RecentLimit is the length of the recent activity feed.
const RecentLimit = 5

// Input is the data a summary is computed from. Activity should hold the
// entries since WeekStart(now); older entries are ignored.
type Input struct {
	Items    []model.InventoryItem
	Borrowed []model.BorrowedItem
	Activity []model.ActivityLog
}

// Summary is the dashboard payload.
type Summary struct {
	TotalRecords     int             `json:"total_records"`
	TotalQuantity    int             `json:"total_quantity"`
	InStockQuantity  int             `json:"in_stock_quantity"`
	LowStockCount    int             `json:"low_stock_count"`
	DefectedQuantity int             `json:"defected_quantity"`
	ActiveBorrows    int             `json:"active_borrows"`
	OverdueBorrows   int             `json:"overdue_borrows"`
	TotalValue       decimal.Decimal `json:"total_value"`

	Percentages Percentages      `json:"percentages"`
	StockLevels map[string]int   `json:"stock_levels"`
	Categories  []CategoryTotal  `json:"categories"`
	Weekly      []UserActivity   `json:"weekly"`
	Recent      []RecentActivity `json:"recent"`
	WeekStart   time.Time        `json:"week_start"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Percentages split in-stock quantity, defected quantity and active borrows.
type Percentages struct {
	InStock  decimal.Decimal `json:"in_stock"`
	Defected decimal.Decimal `json:"defected"`
	Borrowed decimal.Decimal `json:"borrowed"`
}

// CategoryTotal is the on-hand quantity of one category.
type CategoryTotal struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// UserActivity counts one actor's actions this week.
type UserActivity struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Actions int    `json:"actions"`
	Adds    int    `json:"adds"`
	Updates int    `json:"updates"`
	Deletes int    `json:"deletes"`
}

// RecentActivity is one entry of the recent feed.
type RecentActivity struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Compute builds the summary as of now.
func Compute(in Input, now time.Time) Summary {
	s := Summary{
		TotalRecords: len(in.Items),
		TotalValue:   decimal.Zero,
		StockLevels: map[string]int{
			string(model.StatusInStock):    0,
			string(model.StatusLowStock):   0,
			string(model.StatusOutOfStock): 0,
		},
		WeekStart:   WeekStart(now),
		GeneratedAt: now,
	}

	categories := make(map[string]int)
	for _, item := range in.Items {
		s.TotalQuantity += item.Quantity
		s.TotalValue = s.TotalValue.Add(item.Value())
		s.StockLevels[string(item.Status)]++

		if item.Status == model.StatusInStock {
			s.InStockQuantity += item.Quantity
		}
		if ledger.NeedsReorder(item.Quantity, item.ReorderPoint) {
			s.LowStockCount++
		}
		if item.Condition == model.ConditionDefected {
			s.DefectedQuantity += item.Quantity
		}

		category := item.Category
		if category == "" {
			category = "Uncategorized"
		}
		categories[category] += item.Quantity
	}

	for _, b := range in.Borrowed {
		if b.Status != model.BorrowActive {
			continue
		}
		s.ActiveBorrows++
		if ledger.IsOverdue(b.ReturnDate, now) {
			s.OverdueBorrows++
		}
	}

	s.Percentages = percentages(s.InStockQuantity, s.DefectedQuantity, s.ActiveBorrows)
	s.Categories = sortedCategories(categories)
	s.Weekly = Weekly(in.Activity, s.WeekStart)
	s.Recent = Recent(in.Items, in.Borrowed, RecentLimit)
	return s
}

// WeekStart returns midnight of the Sunday on or before now, in now's zone.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
}

// Weekly groups activity since weekStart by actor email.
func Weekly(logs []model.ActivityLog, weekStart time.Time) []UserActivity {
	byEmail := make(map[string]*UserActivity)
	var order []string

	for _, l := range logs {
		if l.CreatedAt.Before(weekStart) {
			continue
		}
		email := l.UserEmail
		if email == "" {
			email = "Unknown"
		}
		u, ok := byEmail[email]
		if !ok {
			u = &UserActivity{Name: activity.DisplayName(email), Email: email}
			byEmail[email] = u
			order = append(order, email)
		}
		u.Actions++
		switch l.ActionType {
		case model.ActionAdd:
			u.Adds++
		case model.ActionUpdate:
			u.Updates++
		case model.ActionDelete:
			u.Deletes++
		}
	}

	out := make([]UserActivity, 0, len(order))
	for _, email := range order {
		out = append(out, *byEmail[email])
	}
	slices.SortStableFunc(out, func(a, b UserActivity) int {
		return cmp.Compare(b.Actions, a.Actions)
	})
	return out
}

// Recent merges the newest inventory additions with the newest borrow
// changes and returns the latest limit entries.
func Recent(items []model.InventoryItem, borrowed []model.BorrowedItem, limit int) []RecentActivity {
	var feed []RecentActivity

	for _, item := range items {
		feed = append(feed, RecentActivity{
			Type:        "inventory",
			Title:       "New inventory item added",
			Description: item.Name,
			Timestamp:   item.CreatedAt,
		})
	}
	for _, b := range borrowed {
		entry := RecentActivity{
			Type:        "borrowed",
			Title:       "Item borrowed",
			Description: b.ItemName,
			Timestamp:   b.UpdatedAt,
		}
		if b.Status == model.BorrowReturned {
			entry.Type = "returned"
			entry.Title = "Item returned"
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = b.CreatedAt
		}
		feed = append(feed, entry)
	}

	slices.SortStableFunc(feed, func(a, b RecentActivity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}

func percentages(inStock, defected, borrowed int) Percentages {
	total := inStock + defected + borrowed
	if total == 0 {
		return Percentages{InStock: decimal.Zero, Defected: decimal.Zero, Borrowed: decimal.Zero}
	}
	pct := func(n int) decimal.Decimal {
		return decimal.NewFromInt(int64(n)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(total))).
			Round(1)
	}
	return Percentages{InStock: pct(inStock), Defected: pct(defected), Borrowed: pct(borrowed)}
}

func sortedCategories(m map[string]int) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for c, q := range m {
		out = append(out, CategoryTotal{Category: c, Quantity: q})
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}
