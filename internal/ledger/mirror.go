package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Mirror receives a copy of every appended ledger row
type Mirror interface {
	Append(ctx context.Context, currency string, row Row) error
}

// SheetsMirror appends rows to a Google spreadsheet, one tab per currency
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger

	mu   sync.Mutex
	tabs map[string]bool
}

// NewSheetsMirror connects to the Sheets API. Pass option.WithCredentialsFile
// for a service account key.
func NewSheetsMirror(ctx context.Context, spreadsheetID string, logger *slog.Logger, opts ...option.ClientOption) (*SheetsMirror, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &SheetsMirror{
		service:       srv,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		tabs:          make(map[string]bool),
	}, nil
}

// Append adds row to the tab named after currency, creating the tab with a
// header row when needed
func (m *SheetsMirror) Append(ctx context.Context, currency string, row Row) error {
	if err := m.ensureTab(ctx, currency); err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: [][]any{{
		row.Date, row.Vendor, row.Description, string(row.Category),
		row.AmountString(), row.Currency, row.FileName, row.Notes,
	}}}
	_, err := m.service.Spreadsheets.Values.Append(m.spreadsheetID, currency+"!A:H", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending to sheet %s: %w", currency, err)
	}

	m.logger.Debug("Mirrored ledger entry", "currency", currency, "file", row.FileName)
	return nil
}

func (m *SheetsMirror) ensureTab(ctx context.Context, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tabs[currency] {
		return nil
	}

	ss, err := m.service.Spreadsheets.Get(m.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == currency {
			m.tabs[currency] = true
			return nil
		}
	}

	add := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: currency}},
	}}}
	if _, err := m.service.Spreadsheets.BatchUpdate(m.spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("creating sheet %s: %w", currency, err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	_, err = m.service.Spreadsheets.Values.Update(m.spreadsheetID, currency+"!A1", &sheets.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing header to sheet %s: %w", currency, err)
	}

	m.logger.Info("Created worksheet", "currency", currency)
	m.tabs[currency] = true
	return nil
}
