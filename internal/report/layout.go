package report

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyPrefix precedes every amount in a report. The core PDF fonts have
// no peso sign.
const CurrencyPrefix = "P"

var printer = message.NewPrinter(language.English)

// Money formats an amount with digit grouping and two decimals.
func Money(d decimal.Decimal) string {
	return CurrencyPrefix + printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// ScaleWidths shrinks column widths proportionally so the table fits in
// available. Widths that already fit are returned unchanged.
func ScaleWidths(base []float64, available float64) []float64 {
	var total float64
	for _, w := range base {
		total += w
	}
	scale := 1.0
	if total > available && total > 0 {
		scale = available / total
	}
	out := make([]float64, len(base))
	for i, w := range base {
		out[i] = w * scale
	}
	return out
}

// PageBreaks reports, for each of n rows, whether a new page must start
// before the row is drawn. Rows start at y; after a break they restart at
// restart. A row may not extend past bottom.
func PageBreaks(n int, y, rowHeight, bottom, restart float64) []bool {
	breaks := make([]bool, n)
	for i := range breaks {
		if y+rowHeight > bottom {
			breaks[i] = true
			y = restart
		}
		y += rowHeight
	}
	return breaks
}

// Truncate shortens s to at most limit runes, marking the cut with "..".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit || limit < 3 {
		return s
	}
	r := []rune(s)
	return string(r[:limit-2]) + ".."
}

// sortByName orders rows by name using English collation, ignoring case.
func sortByName[T any](rows []T, name func(T) string) []T {
	c := collate.New(language.English, collate.IgnoreCase)
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b T) int {
		return c.CompareString(name(a), name(b))
	})
	return out
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 06")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
