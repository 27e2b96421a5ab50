package ledger

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/domain"
)

// CurrencySummary aggregates one currency's ledger
type CurrencySummary struct {
	Count      int                                 `json:"count"`
	Total      decimal.Decimal                     `json:"total"`
	Categories map[domain.Category]decimal.Decimal `json:"categories"`
}

// Summary aggregates every ledger under the output root. Categories sums
// each category across all currencies without conversion.
type Summary struct {
	TotalReceipts int                                 `json:"total_receipts"`
	Currencies    map[string]CurrencySummary          `json:"currencies"`
	Categories    map[domain.Category]decimal.Decimal `json:"categories"`
}

// CurrencyCodes returns the summarized currencies in sorted order
func (s Summary) CurrencyCodes() []string {
	codes := make([]string, 0, len(s.Currencies))
	for c := range s.Currencies {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Summarize reads every currency folder that holds a ledger. Categories
// with a zero subtotal are left out.
func (e *Engine) Summarize() (Summary, error) {
	summary := Summary{
		Currencies: make(map[string]CurrencySummary),
		Categories: make(map[domain.Category]decimal.Decimal),
	}

	entries, err := os.ReadDir(e.root)
	if os.IsNotExist(err) {
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("listing output folder: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		currency := entry.Name()
		if _, err := os.Stat(e.Path(currency)); err != nil {
			continue
		}

		book, err := e.Load(currency)
		if err != nil {
			return summary, err
		}
		if len(book.Rows) == 0 {
			continue
		}

		cs := CurrencySummary{
			Count:      len(book.Rows),
			Total:      book.Total(),
			Categories: make(map[domain.Category]decimal.Decimal),
		}
		for _, ct := range book.Breakdown() {
			if ct.Total.IsPositive() {
				cs.Categories[ct.Category] = ct.Total
				summary.Categories[ct.Category] = summary.Categories[ct.Category].Add(ct.Total)
			}
		}
		summary.Currencies[currency] = cs
		summary.TotalReceipts += cs.Count
	}
	return summary, nil
}
