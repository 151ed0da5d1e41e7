package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/ledger"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/storage"
	"github.com/erazemk/zaloga/internal/store"
)

// Blob key prefixes.
const (
	prefixSignature = "signature"
	prefixBorrowed  = "borrowed"
)

// BorrowInput creates a borrow record. Signature and Image are base64 data
// URLs; Image is optional and defaults to the item's photo.
type BorrowInput struct {
	ItemID             string    `json:"item_id"`
	Quantity           int       `json:"quantity"`
	BorrowerName       string    `json:"borrower_name"`
	BorrowerDepartment string    `json:"borrower_department"`
	Description        string    `json:"description"`
	BorrowDate         time.Time `json:"borrow_date"`
	ReturnDate         time.Time `json:"return_date"`
	Signature          string    `json:"signature"`
	Image              string    `json:"image,omitempty"`

	// ExpectedQuantity, if set, is the on-hand quantity the caller saw.
	// The borrow fails with ErrConflict when it no longer matches.
	ExpectedQuantity *int `json:"expected_quantity,omitempty"`
}

func (in *BorrowInput) validate(now time.Time) error {
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	if in.BorrowDate.IsZero() {
		in.BorrowDate = now
	}

	switch {
	case in.ItemID == "":
		return model.Invalid("item_id", "is required")
	case in.Quantity <= 0:
		return model.Invalid("quantity", "must be positive")
	case in.BorrowerName == "":
		return model.Invalid("borrower_name", "is required")
	case strings.TrimSpace(in.Signature) == "":
		return model.Invalid("signature", "is required")
	case in.ReturnDate.IsZero():
		return model.Invalid("return_date", "is required")
	case ledger.ReturnsBeforeBorrow(in.ReturnDate, in.BorrowDate):
		return model.Invalid("return_date", "must not be before the borrow date")
	}
	return nil
}

// BorrowUpdate edits a borrow record. ItemID and Quantity are accepted only
// to reject attempts to change them.
type BorrowUpdate struct {
	BorrowerName       string           `json:"borrower_name"`
	BorrowerDepartment string           `json:"borrower_department"`
	Description        string           `json:"description"`
	BorrowDate         time.Time        `json:"borrow_date"`
	ReturnDate         time.Time        `json:"return_date"`
	UnitPrice          *decimal.Decimal `json:"unit_price,omitempty"`
	Image              string           `json:"image,omitempty"`

	ItemID   *string `json:"item_id,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// GetBorrowed returns a borrow record with its display status.
func (s *Service) GetBorrowed(ctx context.Context, sess model.Session, id string) (*model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	b, err := store.GetBorrowed(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("borrow record %s: %w", id, model.ErrNotFound)
	}
	b.DisplayStatus = ledger.DisplayStatus(b.Status, b.ReturnDate, s.now())
	return b, nil
}

// ListBorrowed returns borrow records, newest first, with display statuses.
func (s *Service) ListBorrowed(ctx context.Context, sess model.Session, f store.BorrowFilter) ([]model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleViewer); err != nil {
		return nil, err
	}
	records, err := store.ListBorrowed(ctx, s.db, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range records {
		records[i].DisplayStatus = ledger.DisplayStatus(records[i].Status, records[i].ReturnDate, now)
	}
	return records, nil
}

// CreateBorrowed lends stock out. The deduction and the insert commit
// together; a short item fails with *model.InsufficientStockError and
// nothing is written.
func (s *Service) CreateBorrowed(ctx context.Context, sess model.Session, in BorrowInput) (*model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(s.today()); err != nil {
		return nil, err
	}

	// Fail fast before touching storage. The transaction below re-checks.
	item, err := store.GetItem(ctx, s.db, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("inventory item %s: %w", in.ItemID, model.ErrNotFound)
	}
	if item.Quantity < in.Quantity {
		return nil, &model.InsufficientStockError{ItemID: item.ID, Available: item.Quantity, Requested: in.Quantity}
	}

	sigData, _, err := imaging.DecodeDataURL(in.Signature)
	if err != nil {
		return nil, model.Invalid("signature", "must be a PNG data URL")
	}
	sig, err := imaging.Signature(sigData)
	if err != nil {
		return nil, err
	}

	var photo *imaging.Result
	if in.Image != "" {
		if photo, err = decodePhoto(in.Image); err != nil {
			return nil, err
		}
	}

	sigURL, err := s.upload(ctx, prefixSignature, sig.Ext, sig.Data)
	if err != nil {
		return nil, err
	}
	var photoURL string
	if photo != nil {
		if photoURL, err = s.upload(ctx, prefixBorrowed, photo.Ext, photo.Data); err != nil {
			s.discard(ctx, sigURL)
			return nil, err
		}
	}

	var created *model.BorrowedItem
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
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

		image := photoURL
		if image == "" {
			image = item.ImageURL
		}
		created, err = store.CreateBorrowed(ctx, tx, &model.BorrowedItem{
			ID:                 uuid.NewString(),
			ItemID:             &item.ID,
			ItemName:           item.Name,
			UnitPrice:          item.UnitPrice,
			ImageURL:           image,
			Description:        in.Description,
			BorrowerName:       in.BorrowerName,
			BorrowerDepartment: strings.TrimSpace(in.BorrowerDepartment),
			Quantity:           in.Quantity,
			BorrowDate:         in.BorrowDate,
			ReturnDate:         in.ReturnDate,
			SignatureURL:       sigURL,
		})
		return err
	})
	if err != nil {
		s.discard(ctx, sigURL, photoURL)
		return nil, err
	}
	created.DisplayStatus = ledger.DisplayStatus(created.Status, created.ReturnDate, s.now())

	s.activity.Log(sess, model.ActionAdd,
		fmt.Sprintf("Borrowed %d x %s to %s", created.Quantity, created.ItemName, created.BorrowerName),
		tableBorrowed, created.ID)
	s.versions.Bump(cache.Borrowed, cache.Inventory, cache.Stats)
	slog.Info("borrow created", "user", sess.Email, "item", created.ItemName,
		"quantity", created.Quantity, "borrower", created.BorrowerName)
	return created, nil
}

// ReturnBorrowed marks an Active record Returned and puts its quantity back.
// Returning an already returned record changes nothing.
func (s *Service) ReturnBorrowed(ctx context.Context, sess model.Session, id string) (*model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		record   *model.BorrowedItem
		returned bool
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		b, err := store.GetBorrowed(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("borrow record %s: %w", id, model.ErrNotFound)
		}

		returned, err = store.MarkReturned(ctx, tx, id, s.today())
		if err != nil {
			return err
		}
		if returned {
			if err := s.restoreBorrowed(ctx, tx, b); err != nil {
				return err
			}
		}

		record, err = store.GetBorrowed(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	record.DisplayStatus = record.Status

	if returned {
		s.activity.Log(sess, model.ActionUpdate,
			fmt.Sprintf("Returned %d x %s from %s", record.Quantity, record.ItemName, record.BorrowerName),
			tableBorrowed, id)
		s.versions.Bump(cache.Borrowed, cache.Inventory, cache.Stats)
		slog.Info("borrow returned", "user", sess.Email, "item", record.ItemName, "quantity", record.Quantity)
	}
	return record, nil
}

// ExtendBorrowed pushes an Active record's return date out by a week.
func (s *Service) ExtendBorrowed(ctx context.Context, sess model.Session, id string) (*model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}

	var record *model.BorrowedItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		b, err := store.GetBorrowed(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("borrow record %s: %w", id, model.ErrNotFound)
		}
		if b.Status != model.BorrowActive {
			return model.Invalid("status", "only active borrows can be extended")
		}
		if err := store.SetReturnDate(ctx, tx, id, b.ReturnDate.Add(model.BorrowExtension)); err != nil {
			return err
		}
		record, err = store.GetBorrowed(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	record.DisplayStatus = ledger.DisplayStatus(record.Status, record.ReturnDate, s.now())

	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("Extended %s for %s to %s", record.ItemName, record.BorrowerName, record.ReturnDate.Format(time.DateOnly)),
		tableBorrowed, id)
	s.versions.Bump(cache.Borrowed, cache.Stats)
	return record, nil
}

// UpdateBorrowed edits borrower details, dates, price and photo. The linked
// item and the quantity cannot change after creation.
func (s *Service) UpdateBorrowed(ctx context.Context, sess model.Session, id string, in BorrowUpdate) (*model.BorrowedItem, error) {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	switch {
	case in.BorrowerName == "":
		return nil, model.Invalid("borrower_name", "is required")
	case in.ReturnDate.IsZero():
		return nil, model.Invalid("return_date", "is required")
	case in.UnitPrice != nil && in.UnitPrice.IsNegative():
		return nil, model.Invalid("unit_price", "must not be negative")
	}

	var photo *imaging.Result
	if in.Image != "" {
		var err error
		if photo, err = decodePhoto(in.Image); err != nil {
			return nil, err
		}
	}
	var photoURL string
	if photo != nil {
		var err error
		if photoURL, err = s.upload(ctx, prefixBorrowed, photo.Ext, photo.Data); err != nil {
			return nil, err
		}
	}

	var previousImage string
	var record *model.BorrowedItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		b, err := store.GetBorrowed(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("borrow record %s: %w", id, model.ErrNotFound)
		}
		if in.Quantity != nil && *in.Quantity != b.Quantity {
			return model.Invalid("quantity", "cannot be changed after creation")
		}
		if in.ItemID != nil && (b.ItemID == nil || *in.ItemID != *b.ItemID) {
			return model.Invalid("item_id", "cannot be changed after creation")
		}

		borrowDate := in.BorrowDate
		if borrowDate.IsZero() {
			borrowDate = b.BorrowDate
		}
		if ledger.ReturnsBeforeBorrow(in.ReturnDate, borrowDate) {
			return model.Invalid("return_date", "must not be before the borrow date")
		}

		b.BorrowerName = in.BorrowerName
		b.BorrowerDepartment = strings.TrimSpace(in.BorrowerDepartment)
		b.Description = in.Description
		b.BorrowDate = borrowDate
		b.ReturnDate = in.ReturnDate
		if in.UnitPrice != nil {
			b.UnitPrice = *in.UnitPrice
		}
		if photoURL != "" {
			previousImage = b.ImageURL
			b.ImageURL = photoURL
		}
		if err := store.UpdateBorrowed(ctx, tx, b); err != nil {
			return err
		}
		record, err = store.GetBorrowed(ctx, tx, id)
		return err
	})
	if err != nil {
		s.discard(ctx, photoURL)
		return nil, err
	}
	if ownedBlob(previousImage, prefixBorrowed) {
		s.discard(ctx, previousImage)
	}
	record.DisplayStatus = ledger.DisplayStatus(record.Status, record.ReturnDate, s.now())

	s.activity.Log(sess, model.ActionUpdate,
		fmt.Sprintf("Updated borrow of %s by %s", record.ItemName, record.BorrowerName), tableBorrowed, id)
	s.versions.Bump(cache.Borrowed, cache.Stats)
	return record, nil
}

// DeleteBorrowed removes a record. An Active record gives its quantity back
// first; a Returned one already has.
func (s *Service) DeleteBorrowed(ctx context.Context, sess model.Session, id string) error {
	if err := authorize(sess, model.RoleAdmin); err != nil {
		return err
	}

	var record *model.BorrowedItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		b, err := store.GetBorrowed(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("borrow record %s: %w", id, model.ErrNotFound)
		}
		record = b
		if b.Status == model.BorrowActive {
			if err := s.restoreBorrowed(ctx, tx, b); err != nil {
				return err
			}
		}
		return store.DeleteBorrowed(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.discard(ctx, record.SignatureURL)
	if ownedBlob(record.ImageURL, prefixBorrowed) {
		s.discard(ctx, record.ImageURL)
	}

	s.activity.Log(sess, model.ActionDelete,
		fmt.Sprintf("Deleted borrow of %s by %s", record.ItemName, record.BorrowerName), tableBorrowed, id)
	s.versions.Bump(cache.Borrowed, cache.Inventory, cache.Stats)
	slog.Info("borrow deleted", "user", sess.Email, "item", record.ItemName, "status", record.Status)
	return nil
}

// restoreBorrowed adds a borrow's quantity back to its item, if the item
// still exists.
func (s *Service) restoreBorrowed(ctx context.Context, tx *sqlx.Tx, b *model.BorrowedItem) error {
	if b.ItemID == nil {
		return nil
	}
	restored, err := store.RestoreStock(ctx, tx, *b.ItemID, b.Quantity)
	if err != nil {
		return err
	}
	if !restored {
		slog.Warn("borrowed item no longer in inventory, nothing restored", "borrow_id", b.ID, "item", b.ItemName)
	}
	return nil
}

func decodePhoto(dataURL string) (*imaging.Result, error) {
	data, _, err := imaging.DecodeDataURL(dataURL)
	if err != nil {
		return nil, model.Invalid("image", "must be an image data URL")
	}
	return imaging.Process(bytes.NewReader(data))
}

// ownedBlob reports whether url is a blob this record type uploaded itself,
// as opposed to a snapshot of the item's photo.
func ownedBlob(url, prefix string) bool {
	return strings.HasPrefix(storage.KeyFromURL(url), prefix+"-")
}
