// Package report renders inventory, borrow and defect tables as PDF.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/model"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	margin       = 7.0
	headerHeight = 8.0
	summaryRow   = 9.0
)

var (
	headerFill  = [3]int{56, 142, 60}
	stripeFill  = [3]int{232, 245, 233}
	summaryFill = [3]int{33, 33, 33}
)

// SignatureLoader returns the PNG bytes behind a signature URL.
type SignatureLoader func(url string) ([]byte, error)

type table struct {
	title     string
	footer    string
	countText string
	headers   []string
	widths    []float64
	centered  map[int]bool
	fontSize  float64
	rowHeight float64
	bottom    float64
	rows      [][]string

	// Optional image drawn in the last column, one entry per row.
	images [][]byte

	summary      string
	summaryValue string
}

// Inventory renders the stock list. Value is unit price times the original
// stock count.
func Inventory(items []model.InventoryItem, now time.Time) ([]byte, error) {
	items = sortByName(items, func(i model.InventoryItem) string { return i.Name })

	t := table{
		title:     "INVENTORY REPORT",
		footer:    "Inventory Management System",
		countText: fmt.Sprintf("Total Items: %d", len(items)),
		headers:   []string{"No.", "Item Name", "Category", "Unit Price", "Curr Qty", "Total", "Value"},
		widths:    []float64{12, 52, 38, 22, 22, 22, 28},
		centered:  map[int]bool{0: true, 3: true, 4: true, 5: true, 6: true},
		fontSize:  7,
		rowHeight: 7,
		bottom:    pageHeight - 25,
	}

	total := decimal.Zero
	for i, item := range items {
		value := item.Value()
		total = total.Add(value)
		count := item.TotalItems
		if count == 0 {
			count = item.Quantity
		}
		t.rows = append(t.rows, []string{
			strconv.Itoa(i + 1),
			Truncate(item.Name, 28),
			Truncate(orDash(item.Category), 20),
			Money(item.UnitPrice),
			strconv.Itoa(item.Quantity),
			strconv.Itoa(count),
			Money(value),
		})
	}
	t.summary = "TOTAL INVENTORY VALUE:"
	t.summaryValue = Money(total)

	return t.render(now)
}

// Defected renders rows whose condition is Defected. Value is unit price
// times the on-hand quantity.
func Defected(items []model.InventoryItem, now time.Time) ([]byte, error) {
	items = sortByName(items, func(i model.InventoryItem) string { return i.Name })

	t := table{
		title:     "DEFECTED ITEMS REPORT",
		footer:    "Inventory Management System - Defected Items",
		countText: fmt.Sprintf("Total Records: %d", len(items)),
		headers:   []string{"No.", "Item Name", "Category", "Location", "Qty", "Unit Price", "Value", "Updated"},
		widths:    []float64{10, 46, 30, 30, 14, 22, 24, 20},
		centered:  map[int]bool{0: true, 4: true, 5: true, 6: true, 7: true},
		fontSize:  7,
		rowHeight: 7,
		bottom:    pageHeight - 25,
	}

	var quantity int
	total := decimal.Zero
	for i, item := range items {
		value := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(value)
		quantity += item.Quantity
		t.rows = append(t.rows, []string{
			strconv.Itoa(i + 1),
			Truncate(item.Name, 26),
			Truncate(orDash(item.Category), 16),
			Truncate(orDash(item.Location), 16),
			strconv.Itoa(item.Quantity),
			Money(item.UnitPrice),
			Money(value),
			shortDate(item.UpdatedAt),
		})
	}
	t.summary = fmt.Sprintf("TOTAL: %d Records | %d Items", len(items), quantity)
	t.summaryValue = Money(total)

	return t.render(now)
}

// Borrowed renders borrow records with the borrower's signature in the last
// column. Signatures that are missing or cannot be loaded print as N/A.
func Borrowed(records []model.BorrowedItem, load SignatureLoader, now time.Time) ([]byte, error) {
	records = sortByName(records, func(b model.BorrowedItem) string { return b.ItemName })

	t := table{
		title:     "BORROWED ITEMS REPORT",
		footer:    "Inventory Management System - Borrowed Items",
		countText: fmt.Sprintf("Total Records: %d", len(records)),
		headers:   []string{"No.", "Item Name", "Borrower", "Dept", "Qty", "Price", "Total", "Borrow", "Return", "Status", "Signature"},
		widths:    []float64{8, 28, 24, 18, 10, 16, 18, 15, 15, 13, 16},
		centered:  map[int]bool{0: true, 4: true, 5: true, 6: true, 9: true},
		fontSize:  6,
		rowHeight: 8,
		bottom:    pageHeight - 22,
		images:    make([][]byte, len(records)),
	}

	var quantity, active, returned int
	total := decimal.Zero
	for i, b := range records {
		value := b.TotalValue()
		total = total.Add(value)
		quantity += b.Quantity
		switch b.Status {
		case model.BorrowActive:
			active++
		case model.BorrowReturned:
			returned++
		}

		status := b.Status
		if b.DisplayStatus != "" {
			status = b.DisplayStatus
		}
		t.rows = append(t.rows, []string{
			strconv.Itoa(i + 1),
			Truncate(b.ItemName, 14),
			Truncate(b.BorrowerName, 12),
			Truncate(orDash(b.BorrowerDepartment), 10),
			strconv.Itoa(b.Quantity),
			Money(b.UnitPrice),
			Money(value),
			shortDate(b.BorrowDate),
			shortDate(b.ReturnDate),
			string(status),
		})

		if b.SignatureURL != "" && load != nil {
			data, err := load(b.SignatureURL)
			if err != nil {
				slog.Warn("loading signature for report", "borrow_id", b.ID, "error", err)
				continue
			}
			t.images[i] = data
		}
	}
	t.summary = fmt.Sprintf("TOTAL: %d Records | %d Items | Active: %d | Returned: %d", len(records), quantity, active, returned)
	t.summaryValue = Money(total)

	return t.render(now)
}

func (t table) render(now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetTextColor(120, 120, 120)
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetXY(0, pageHeight-11)
		pdf.CellFormat(pageWidth, 5, tr(t.footer), "", 0, "C", false, 0, "")
	})

	widths := ScaleWidths(t.widths, pageWidth-2*margin)
	var tableWidth float64
	for _, w := range widths {
		tableWidth += w
	}
	startX := (pageWidth - tableWidth) / 2

	pdf.AddPage()
	y := margin

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(0, y+3)
	pdf.CellFormat(pageWidth, 8, t.title, "", 0, "C", false, 0, "")

	y += 14
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetXY(margin, y-3)
	pdf.CellFormat(100, 4, "Generated: "+now.Format("January 2, 2006 03:04 PM"), "", 0, "L", false, 0, "")
	pdf.SetXY(pageWidth-margin-80, y-3)
	pdf.CellFormat(80, 4, t.countText, "", 0, "R", false, 0, "")
	y += 8

	drawHeader := func(y float64) float64 {
		pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.3)
		pdf.Rect(startX, y, tableWidth, headerHeight, "FD")
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", t.fontSize+1)
		x := startX
		for i, h := range t.headers {
			if i > 0 {
				pdf.Line(x, y, x, y+headerHeight)
			}
			pdf.SetXY(x, y)
			pdf.CellFormat(widths[i], headerHeight, h, "", 0, "C", false, 0, "")
			x += widths[i]
		}
		pdf.SetFont("Helvetica", "", t.fontSize)
		return y + headerHeight
	}

	y = drawHeader(y)
	breaks := PageBreaks(len(t.rows), y, t.rowHeight, t.bottom, margin+headerHeight)

	for i, row := range t.rows {
		if breaks[i] {
			pdf.AddPage()
			y = drawHeader(margin)
		}

		fill := [3]int{255, 255, 255}
		if i%2 == 0 {
			fill = stripeFill
		}
		pdf.SetFillColor(fill[0], fill[1], fill[2])
		pdf.SetDrawColor(180, 180, 180)
		pdf.SetLineWidth(0.1)
		pdf.Rect(startX, y, tableWidth, t.rowHeight, "FD")

		pdf.SetTextColor(0, 0, 0)
		x := startX
		for c := range widths {
			if c > 0 {
				pdf.Line(x, y, x, y+t.rowHeight)
			}
			if c < len(row) {
				align := "L"
				if t.centered[c] {
					align = "C"
				}
				pdf.SetXY(x+1, y)
				pdf.CellFormat(widths[c]-2, t.rowHeight, tr(row[c]), "", 0, align, false, 0, "")
			}
			x += widths[c]
		}

		if t.images != nil {
			last := len(widths) - 1
			t.drawImage(pdf, fmt.Sprintf("sig-%d", i), i, x-widths[last], y, widths[last])
		}
		y += t.rowHeight
	}

	if y+summaryRow+1 > pageHeight-18 {
		pdf.AddPage()
		y = margin
	}
	pdf.SetFillColor(summaryFill[0], summaryFill[1], summaryFill[2])
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Rect(startX, y, tableWidth, summaryRow, "FD")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", t.fontSize+1)
	pdf.SetXY(startX+3, y)
	pdf.CellFormat(tableWidth*0.7, summaryRow, t.summary, "", 0, "L", false, 0, "")
	pdf.SetXY(startX+tableWidth*0.7, y)
	pdf.CellFormat(tableWidth*0.3-3, summaryRow, t.summaryValue, "", 0, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", t.title, err)
	}
	return buf.Bytes(), nil
}

// drawImage places the row's image in the cell, or N/A when there is none or
// it fails to decode.
func (t table) drawImage(pdf *gofpdf.Fpdf, name string, row int, x, y, width float64) {
	const pad = 1.0
	if data := t.images[row]; data != nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if err := pdf.Error(); err != nil {
			slog.Warn("embedding signature image", "row", row+1, "error", err)
			pdf.ClearError()
		} else {
			pdf.ImageOptions(name, x+pad, y+pad, width-2*pad, t.rowHeight-2*pad, false, opts, 0, "")
			return
		}
	}

	pdf.SetTextColor(150, 150, 150)
	pdf.SetXY(x, y)
	pdf.CellFormat(width, t.rowHeight, "N/A", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}
