package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/model"
)

var generated = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "P0.00"},
		{"12.5", "P12.50"},
		{"1234.567", "P1,234.57"},
		{"1000000", "P1,000,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestScaleWidths(t *testing.T) {
	assert.Equal(t, []float64{10, 20}, ScaleWidths([]float64{10, 20}, 100))

	got := ScaleWidths([]float64{100, 100}, 100)
	assert.InDelta(t, 50, got[0], 1e-9)
	assert.InDelta(t, 50, got[1], 1e-9)
}

func TestPageBreaks(t *testing.T) {
	// Three rows fit on the first page, four on each following page.
	breaks := PageBreaks(9, 10, 10, 40, 0)
	assert.Equal(t, []bool{false, false, false, true, false, false, false, true, false}, breaks)

	assert.Empty(t, PageBreaks(0, 10, 10, 40, 0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Cement", Truncate("Cement", 14))
	assert.Equal(t, "Portland c..", Truncate("Portland cement type I", 12))
	assert.Equal(t, "Čšžć..", Truncate("Čšžćđ řeka", 6))
}

func TestSortByName(t *testing.T) {
	in := []string{"sand", "Cement", "brick", "cement"}
	got := sortByName(in, func(s string) string { return s })
	assert.Equal(t, []string{"brick", "Cement", "cement", "sand"}, got)
	assert.Equal(t, "sand", in[0], "input must not be reordered")
}

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for x := 5; x < 35; x++ {
		img.Set(x, 10, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var pageCount = regexp.MustCompile(`/Count\s+(\d+)`)

func pages(t *testing.T, pdf []byte) string {
	t.Helper()
	m := pageCount.FindSubmatch(pdf)
	require.NotNil(t, m, "no page count in output")
	return string(m[1])
}

func TestInventory(t *testing.T) {
	items := []model.InventoryItem{
		{Name: "Sand", Category: "Aggregates", Quantity: 10, TotalItems: 12, UnitPrice: decimal.NewFromInt(3)},
		{Name: "Cement", Quantity: 4, UnitPrice: decimal.RequireFromString("250.75")},
	}

	out, err := Inventory(items, generated)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, "1", pages(t, out))
}

func TestDefected(t *testing.T) {
	out, err := Defected(nil, generated)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestBorrowedSignatures(t *testing.T) {
	sig := signaturePNG(t)
	records := []model.BorrowedItem{
		{ID: "1", ItemName: "Drill", BorrowerName: "Ana", Quantity: 1, Status: model.BorrowActive, SignatureURL: "/storage/ok.png"},
		{ID: "2", ItemName: "Ladder", BorrowerName: "Bor", Quantity: 2, Status: model.BorrowReturned, SignatureURL: "/storage/missing.png"},
		{ID: "3", ItemName: "Saw", BorrowerName: "Cene", Quantity: 1, Status: model.BorrowActive, SignatureURL: "/storage/broken.png"},
		{ID: "4", ItemName: "Hammer", BorrowerName: "Dana", Quantity: 1, Status: model.BorrowActive},
	}

	var loaded []string
	load := func(url string) ([]byte, error) {
		loaded = append(loaded, url)
		switch url {
		case "/storage/ok.png":
			return sig, nil
		case "/storage/broken.png":
			return []byte("not a png"), nil
		}
		return nil, errors.New("missing")
	}

	out, err := Borrowed(records, load, generated)
	require.NoError(t, err, "undecodable signatures fall back to N/A")
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.ElementsMatch(t, []string{"/storage/ok.png", "/storage/missing.png", "/storage/broken.png"}, loaded)
}

func TestBorrowedPaginates(t *testing.T) {
	records := make([]model.BorrowedItem, 70)
	for i := range records {
		records[i] = model.BorrowedItem{
			ID:           fmt.Sprint(i),
			ItemName:     fmt.Sprintf("Item %02d", i),
			BorrowerName: "Ana",
			Quantity:     1,
			UnitPrice:    decimal.NewFromInt(10),
			Status:       model.BorrowActive,
		}
	}

	out, err := Borrowed(records, nil, generated)
	require.NoError(t, err)
	assert.Equal(t, "3", pages(t, out))
}
