package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/receipt-sorter/internal/domain"
)

const (
	// SheetName is the worksheet holding the receipt rows
	SheetName = "Receipts"

	totalLabel     = "TOTAL:"
	breakdownLabel = "Category Breakdown:"
)

var columnWidths = map[string]float64{
	"A": 12,
	"B": 25,
	"C": 40,
	"D": 22,
	"E": 12,
	"F": 10,
	"G": 30,
	"H": 25,
}

var currencySymbols = map[string]string{
	"CAD": "$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CHF": "CHF ",
}

// readBook loads a ledger workbook. A missing file yields an empty book.
func readBook(path, currency string) (*Book, error) {
	book := &Book{Currency: currency}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return book, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	if len(rows) == 0 {
		return book, nil
	}

	// data rows end at the blank row before the totals block
	for _, cells := range rows[1:] {
		if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
			break
		}
		book.Rows = append(book.Rows, rowFromCells(cells))
	}
	return book, nil
}

func rowFromCells(cells []string) Row {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	amount := domain.Missing[decimal.Decimal]()
	if d, err := decimal.NewFromString(cell(4)); err == nil {
		amount = domain.Known(d)
	}
	category, _ := domain.ParseCategory(cell(3))

	return Row{
		Date:        cell(0),
		Vendor:      cell(1),
		Description: cell(2),
		Category:    category,
		Amount:      amount,
		Currency:    cell(5),
		FileName:    cell(6),
		Notes:       cell(7),
	}
}

// writeBook renders book into a workbook and atomically replaces path
func writeBook(path string, book *Book) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := layoutBook(f, book); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger folder: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func layoutBook(f *excelize.File, book *Book) error {
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range book.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{r.Date, r.Vendor, r.Description, string(r.Category), amountCell(r.Amount), r.Currency, r.FileName, r.Notes}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	lastData := len(book.Rows) + 1
	totalRow := lastData + 2
	_ = f.SetCellValue(SheetName, fmt.Sprintf("D%d", totalRow), totalLabel)
	_ = f.SetCellValue(SheetName, fmt.Sprintf("E%d", totalRow), book.Total().InexactFloat64())

	breakdownRow := totalRow + 2
	_ = f.SetCellValue(SheetName, fmt.Sprintf("D%d", breakdownRow), breakdownLabel)
	lastRow := breakdownRow
	for i, ct := range book.Breakdown() {
		lastRow = breakdownRow + 1 + i
		_ = f.SetCellValue(SheetName, fmt.Sprintf("D%d", lastRow), string(ct.Category))
		_ = f.SetCellValue(SheetName, fmt.Sprintf("E%d", lastRow), ct.Total.InexactFloat64())
	}

	return styleBook(f, book.Currency, lastData, totalRow, breakdownRow, lastRow)
}

func amountCell(amount domain.Field[decimal.Decimal]) any {
	d, ok := amount.Get()
	if !ok {
		return domain.Unknown
	}
	return d.InexactFloat64()
}

func styleBook(f *excelize.File, currency string, lastData, totalRow, breakdownRow, lastRow int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = "$"
	}
	numFmt := symbol + "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("creating amount style: %w", err)
	}
	boldMoneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating total style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating label style: %w", err)
	}

	if lastData >= 2 {
		_ = f.SetCellStyle(SheetName, "E2", fmt.Sprintf("E%d", lastData), moneyStyle)
	}
	_ = f.SetCellStyle(SheetName, fmt.Sprintf("D%d", totalRow), fmt.Sprintf("D%d", totalRow), boldStyle)
	_ = f.SetCellStyle(SheetName, fmt.Sprintf("E%d", totalRow), fmt.Sprintf("E%d", totalRow), boldMoneyStyle)
	_ = f.SetCellStyle(SheetName, fmt.Sprintf("D%d", breakdownRow), fmt.Sprintf("D%d", breakdownRow), boldStyle)
	if lastRow > breakdownRow {
		_ = f.SetCellStyle(SheetName, fmt.Sprintf("E%d", breakdownRow+1), fmt.Sprintf("E%d", lastRow), moneyStyle)
	}

	for col, width := range columnWidths {
		_ = f.SetColWidth(SheetName, col, col, width)
	}
	return nil
}
