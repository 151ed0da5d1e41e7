package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/storage"
	"github.com/erazemk/zaloga/internal/store"
)

var (
	superadmin = model.Session{UserID: "u-super", Email: "root@example.com", Role: model.RoleSuperadmin}
	admin      = model.Session{UserID: "u-admin", Email: "ana@example.com", Role: model.RoleAdmin}
	viewer     = model.Session{UserID: "u-viewer", Email: "vid@example.com", Role: model.RoleViewer}
)

type logged struct {
	Action      string
	Description string
	Table       string
	RecordID    string
}

type recorder struct {
	mu      sync.Mutex
	entries []logged
}

func (r *recorder) Log(_ model.Session, action, description, table, recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logged{action, description, table, recordID})
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	svc        *Service
	db         *sqlx.DB
	log        *recorder
	storageDir string
	versions   *cache.Versions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	dir := t.TempDir()
	blobs, err := storage.NewDisk(dir, "")
	require.NoError(t, err)

	f := &fixture{db: database, log: &recorder{}, storageDir: dir, versions: &cache.Versions{}}
	f.svc = New(database, blobs, f.log, f.versions)
	return f
}

func (f *fixture) item(t *testing.T, name string, qty int) *model.InventoryItem {
	t.Helper()
	item, err := f.svc.CreateItem(context.Background(), admin, ItemInput{
		ItemFields: ItemFields{
			Name:      name,
			Category:  "Cement",
			Location:  "Warehouse A",
			Condition: model.ConditionGood,
			UnitPrice: decimal.RequireFromString("12.50"),
		},
		Quantity: qty,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	item, err := store.GetItem(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item.Quantity
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.storageDir)
	require.NoError(t, err)
	return len(entries)
}

// signatureURL returns a small non-blank PNG as a data URL.
func signatureURL(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 60, 20))
	for x := 5; x < 55; x++ {
		img.Set(x, 10, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
