package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date format
const DateLayout = "2006-01-02"

// MediaKind tells the acquirer which text path applies
type MediaKind string

const (
	KindDocument MediaKind = "document"
	KindImage    MediaKind = "image"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".heic": true,
	".heif": true,
}

var documentExts = map[string]bool{
	".pdf":  true,
	".xps":  true,
	".epub": true,
}

// DetectKind maps a filename to its media kind. ok is false for
// unsupported extensions.
func DetectKind(filename string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case documentExts[ext]:
		return KindDocument, true
	case imageExts[ext]:
		return KindImage, true
	}
	return "", false
}

// Document is an immutable handle to a source file
type Document struct {
	Path    string
	Data    []byte
	Kind    MediaKind
	ModTime time.Time
}

// Name returns the base filename of the source
func (d Document) Name() string {
	return filepath.Base(d.Path)
}

// Ext returns the lowercased extension without the dot
func (d Document) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Path)), ".")
}

// Provenance records which path produced the text
type Provenance string

const (
	ProvenanceNative     Provenance = "native"
	ProvenanceRecognized Provenance = "recognized"
)

// ExtractedText is the plain text of a document
type ExtractedText struct {
	Text       string
	Provenance Provenance
}

// Record is the canonical transaction derived from a receipt
type Record struct {
	Amount      Field[decimal.Decimal]
	Currency    Field[string]
	Date        Field[time.Time]
	Vendor      Field[string]
	Description Field[string]
}

// AmountString renders the amount with two decimals, or the sentinel
func (r Record) AmountString() string {
	return r.Amount.Format(func(d decimal.Decimal) string { return d.StringFixed(2) })
}

// DateString renders the date as YYYY-MM-DD, or the sentinel
func (r Record) DateString() string {
	return r.Date.Format(func(t time.Time) string { return t.Format(DateLayout) })
}

// CurrencyCode returns the currency, or the sentinel when unknown
func (r Record) CurrencyCode() string {
	return r.Currency.OrElse(Unknown)
}
