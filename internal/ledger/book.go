package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/domain"
)

// Columns is the ledger header row
var Columns = []string{"Date", "Vendor", "Description", "Category", "Amount", "Currency", "File Name", "Notes"}

// Row is one receipt line in a ledger
type Row struct {
	Date        string                        `json:"date"`
	Vendor      string                        `json:"vendor"`
	Description string                        `json:"description"`
	Category    domain.Category               `json:"category"`
	Amount      domain.Field[decimal.Decimal] `json:"amount"`
	Currency    string                        `json:"currency"`
	FileName    string                        `json:"file_name"`
	Notes       string                        `json:"notes"`
}

// NewRow builds the ledger row for a classified record placed as filename
func NewRow(record domain.Record, cls domain.Classification, currency, filename string) Row {
	var notes string
	if cls.Confidence < 100 {
		notes = fmt.Sprintf("Confidence: %d%%", cls.Confidence)
	}
	return Row{
		Date:        record.DateString(),
		Vendor:      record.Vendor.String(),
		Description: record.Description.String(),
		Category:    cls.Category,
		Amount:      record.Amount,
		Currency:    currency,
		FileName:    filename,
		Notes:       notes,
	}
}

// AmountString renders the amount with two decimals, or UNKNOWN
func (r Row) AmountString() string {
	return r.Amount.Format(func(d decimal.Decimal) string { return d.StringFixed(2) })
}

// sortKey returns the row date, with unknown dates as the zero time so
// they sort oldest
func (r Row) sortKey() time.Time {
	t, err := time.Parse(domain.DateLayout, r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sameReceipt reports whether two rows look like the same purchase
func (r Row) sameReceipt(o Row) bool {
	if r.Date != o.Date || r.Vendor != o.Vendor {
		return false
	}
	a, aok := r.Amount.Get()
	b, bok := o.Amount.Get()
	return aok && bok && a.Equal(b)
}

// CategoryTotal is one line of the category breakdown
type CategoryTotal struct {
	Category domain.Category `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Book is the in-memory form of one currency's ledger
type Book struct {
	Currency string `json:"currency"`
	Rows     []Row  `json:"rows"`
}

// Add appends row and re-sorts the book newest first. If an existing row
// has the same date, vendor and amount the new row is still added and its
// notes point at the earlier file.
func (b *Book) Add(row Row) Row {
	for _, existing := range b.Rows {
		if existing.sameReceipt(row) {
			note := "Possible duplicate of " + existing.FileName
			if row.Notes != "" {
				note = row.Notes + "; " + note
			}
			row.Notes = note
			break
		}
	}
	b.Rows = append(b.Rows, row)
	sort.SliceStable(b.Rows, func(i, j int) bool {
		return b.Rows[i].sortKey().After(b.Rows[j].sortKey())
	})
	return row
}

// Total sums every known amount
func (b *Book) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range b.Rows {
		total = total.Add(r.Amount.OrElse(decimal.Zero))
	}
	return total
}

// Breakdown returns a subtotal for every category in display order
func (b *Book) Breakdown() []CategoryTotal {
	sums := make(map[domain.Category]decimal.Decimal)
	for _, r := range b.Rows {
		sums[r.Category] = sums[r.Category].Add(r.Amount.OrElse(decimal.Zero))
	}
	out := make([]CategoryTotal, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		out = append(out, CategoryTotal{Category: c, Total: sums[c]})
	}
	return out
}
