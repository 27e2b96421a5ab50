// Package ledger maintains one spreadsheet of receipts per currency.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zombor/receipt-sorter/internal/domain"
)

// Engine appends receipts to per-currency ledgers under an output root
type Engine struct {
	root   string
	locks  sync.Map
	mirror Mirror
	logger *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithMirror copies every appended row to m
func WithMirror(m Mirror) Option {
	return func(e *Engine) { e.mirror = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine rooted at root
func NewEngine(root string, opts ...Option) *Engine {
	e := &Engine{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path returns the ledger location for currency
func (e *Engine) Path(currency string) string {
	currency = normalizeCurrency(currency)
	return filepath.Join(e.root, currency, currency+"_Receipts.xlsx")
}

// Append records a receipt in the ledger for currency. The whole
// read-modify-write runs under that currency's lock.
func (e *Engine) Append(ctx context.Context, currency string, record domain.Record, cls domain.Classification, filename string) error {
	currency = normalizeCurrency(currency)
	row, err := e.appendLocked(currency, NewRow(record, cls, currency, filename))
	if err != nil {
		return domain.Tag(domain.FailureLedger, err)
	}

	e.logger.Info("Added ledger entry", "currency", currency, "vendor", row.Vendor, "amount", row.AmountString())

	if e.mirror != nil {
		if err := e.mirror.Append(ctx, currency, row); err != nil {
			e.logger.Error("Failed to mirror ledger entry", "currency", currency, "error", err)
		}
	}
	return nil
}

func (e *Engine) appendLocked(currency string, row Row) (Row, error) {
	mu := e.lockFor(currency)
	mu.Lock()
	defer mu.Unlock()

	path := e.Path(currency)
	book, err := readBook(path, currency)
	if err != nil {
		return Row{}, err
	}

	row = book.Add(row)
	if strings.Contains(row.Notes, "Possible duplicate") {
		e.logger.Warn("Possible duplicate receipt", "currency", currency, "file", row.FileName, "notes", row.Notes)
	}

	if err := writeBook(path, book); err != nil {
		return Row{}, err
	}
	return row, nil
}

// Load reads the ledger for currency
func (e *Engine) Load(currency string) (*Book, error) {
	currency = normalizeCurrency(currency)
	mu := e.lockFor(currency)
	mu.Lock()
	defer mu.Unlock()

	book, err := readBook(e.Path(currency), currency)
	if err != nil {
		return nil, fmt.Errorf("loading %s ledger: %w", currency, err)
	}
	return book, nil
}

func (e *Engine) lockFor(currency string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(currency, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return domain.Unknown
	}
	return currency
}
