package receipt

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/ledger"
)

type outcome struct {
	name    string
	doc     *Document
	err     error
	skipped bool
}

// RunSummary tallies one batch run
type RunSummary struct {
	RunID          string                     `json:"run_id"`
	Total          int                        `json:"total"`
	Succeeded      int                        `json:"succeeded"`
	Failed         int                        `json:"failed"`
	Unchanged      int                        `json:"unchanged"`
	Skipped        int                        `json:"skipped"`
	Review         int                        `json:"review"`
	Warnings       int                        `json:"warnings"`
	FailuresByKind map[domain.FailureKind]int `json:"failures_by_kind"`
	ByCurrency     map[string]int             `json:"by_currency"`
	ByCategory     map[domain.Category]int    `json:"by_category"`
	Failures       map[string]string          `json:"failures,omitempty"`
}

func newRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:          runID,
		FailuresByKind: make(map[domain.FailureKind]int),
		ByCurrency:     make(map[string]int),
		ByCategory:     make(map[domain.Category]int),
		Failures:       make(map[string]string),
	}
}

func (r *RunSummary) add(o outcome) {
	r.Total++
	switch {
	case o.skipped:
		r.Skipped++
	case errors.Is(o.err, ErrAlreadyProcessed):
		r.Unchanged++
	case o.err != nil:
		r.Failed++
		r.FailuresByKind[domain.KindOf(o.err)]++
		r.Failures[o.name] = o.err.Error()
	default:
		r.Succeeded++
		r.ByCurrency[o.doc.Currency]++
		r.ByCategory[o.doc.Category]++
		r.Warnings += len(o.doc.Warnings)
		if o.doc.NeedsReview {
			r.Review++
		}
	}
}

// WriteSummary prints a run summary followed by the ledger totals
func WriteSummary(w io.Writer, run *RunSummary, fin ledger.Summary) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "PROCESSING SUMMARY")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Total documents: %d\n", run.Total)
	fmt.Fprintf(w, "Successfully processed: %d\n", run.Succeeded)
	fmt.Fprintf(w, "Already processed: %d\n", run.Unchanged)
	fmt.Fprintf(w, "Failed: %d\n", run.Failed)
	if run.Skipped > 0 {
		fmt.Fprintf(w, "Skipped (cancelled): %d\n", run.Skipped)
	}
	fmt.Fprintf(w, "Flagged for review: %d\n", run.Review)
	if run.Warnings > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", run.Warnings)
	}

	if len(run.FailuresByKind) > 0 {
		fmt.Fprintln(w, "\nFailures by kind:")
		for _, k := range sortedKeys(run.FailuresByKind) {
			fmt.Fprintf(w, "  %s: %d\n", k, run.FailuresByKind[k])
		}
	}
	if len(run.ByCurrency) > 0 {
		fmt.Fprintln(w, "\nBy currency:")
		for _, c := range sortedKeys(run.ByCurrency) {
			fmt.Fprintf(w, "  %s: %d receipts\n", c, run.ByCurrency[c])
		}
	}
	if len(run.ByCategory) > 0 {
		fmt.Fprintln(w, "\nBy category:")
		for _, c := range sortedKeys(run.ByCategory) {
			fmt.Fprintf(w, "  %s: %d receipts\n", c, run.ByCategory[c])
		}
	}

	if fin.TotalReceipts > 0 {
		fmt.Fprintln(w, "\n"+line)
		fmt.Fprintln(w, "FINANCIAL SUMMARY")
		fmt.Fprintln(w, line)
		fmt.Fprintf(w, "Total receipts in ledgers: %d\n", fin.TotalReceipts)
		for _, code := range fin.CurrencyCodes() {
			cs := fin.Currencies[code]
			fmt.Fprintf(w, "\n%s: %d receipts, total %s %s\n", code, cs.Count, cs.Total.StringFixed(2), code)
			for _, cat := range domain.Categories() {
				if total, ok := cs.Categories[cat]; ok {
					fmt.Fprintf(w, "  %s: %s\n", cat, total.StringFixed(2))
				}
			}
		}
		if len(fin.Categories) > 0 {
			fmt.Fprintln(w, "\nBy category (all currencies):")
			for _, cat := range domain.Categories() {
				if total, ok := fin.Categories[cat]; ok {
					fmt.Fprintf(w, "  %s: %s\n", cat, total.StringFixed(2))
				}
			}
		}
	}
	fmt.Fprintln(w, line)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
