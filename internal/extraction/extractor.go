// Package extraction turns receipt text into validated records and
// classifications using an oracle.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/oracle"
)

const (
	maxVendorLen      = 100
	maxDescriptionLen = 500
	defaultTimeout    = 60 * time.Second
)

var (
	reNotAmount   = regexp.MustCompile(`[^\d.]`)
	reCurrencyISO = regexp.MustCompile(`^[A-Z]{3}$`)
)

// FieldExtractor asks the extraction oracle for the five receipt fields and
// normalizes whatever comes back.
type FieldExtractor struct {
	oracle       oracle.Oracle
	homeCurrency string
	timeout      time.Duration
	logger       *slog.Logger
}

// ExtractorOption configures a FieldExtractor
type ExtractorOption func(*FieldExtractor)

// WithHomeCurrency sets the currency assumed for a bare "$". Empty disables the rule.
func WithHomeCurrency(code string) ExtractorOption {
	return func(e *FieldExtractor) { e.homeCurrency = strings.ToUpper(strings.TrimSpace(code)) }
}

// WithExtractTimeout bounds each oracle call
func WithExtractTimeout(d time.Duration) ExtractorOption {
	return func(e *FieldExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExtractLogger sets the logger
func WithExtractLogger(logger *slog.Logger) ExtractorOption {
	return func(e *FieldExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewFieldExtractor creates a FieldExtractor backed by o
func NewFieldExtractor(o oracle.Oracle, opts ...ExtractorOption) *FieldExtractor {
	e := &FieldExtractor{
		oracle:       o,
		homeCurrency: "CAD",
		timeout:      defaultTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract derives a Record from document text. Only a reply without any
// decodable JSON object is an error; bad fields degrade to unknown.
func (e *FieldExtractor) Extract(ctx context.Context, text domain.ExtractedText) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.oracle.Complete(ctx, buildExtractionPrompt(text.Text, e.homeCurrency))
	if err != nil {
		return domain.Record{}, domain.Tag(domain.FailureExtraction, fmt.Errorf("calling extraction oracle: %w", err))
	}

	record, err := ParseRecord(reply)
	if err != nil {
		e.logger.Warn("Failed to parse extraction reply", "provenance", text.Provenance, "error", err)
		return domain.Record{}, domain.Tag(domain.FailureExtraction, err)
	}

	e.logger.Info("Extracted receipt data",
		"vendor", record.Vendor.String(),
		"amount", record.AmountString(),
		"currency", record.CurrencyCode(),
		"date", record.DateString(),
	)
	return record, nil
}

// ParseRecord decodes an extraction reply into a normalized Record
func ParseRecord(reply string) (domain.Record, error) {
	fields, err := decodeReply(reply)
	if err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		Amount:      normalizeAmount(fields["total_amount"]),
		Currency:    normalizeCurrency(fields["currency"]),
		Date:        normalizeDate(fields["date"]),
		Vendor:      normalizeText(fields["vendor"], maxVendorLen),
		Description: normalizeText(fields["description"], maxDescriptionLen),
	}, nil
}

// decodeReply locates and decodes the JSON object in an oracle reply.
// Numbers are kept as json.Number so amounts keep their exact digits.
func decodeReply(reply string) (map[string]any, error) {
	span, ok := oracle.FindJSON(reply)
	if !ok {
		return nil, domain.ErrNoJSON
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedJSON, err)
	}
	return fields, nil
}

// rawString renders a decoded JSON value as text. ok is false for nulls,
// containers and the UNKNOWN sentinel.
func rawString(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = fmt.Sprint(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, domain.Unknown) {
		return "", false
	}
	return s, true
}

func normalizeAmount(v any) domain.Field[decimal.Decimal] {
	s, ok := rawString(v)
	if !ok {
		return domain.Missing[decimal.Decimal]()
	}
	cleaned := reNotAmount.ReplaceAllString(s, "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return domain.Missing[decimal.Decimal]()
	}
	return domain.Known(amount)
}

func normalizeCurrency(v any) domain.Field[string] {
	s, ok := rawString(v)
	if !ok {
		return domain.Missing[string]()
	}
	code := strings.ToUpper(s)
	if !reCurrencyISO.MatchString(code) {
		return domain.Missing[string]()
	}
	return domain.Known(code)
}

func normalizeDate(v any) domain.Field[time.Time] {
	s, ok := rawString(v)
	if !ok {
		return domain.Missing[time.Time]()
	}
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return domain.Known(t)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return domain.Missing[time.Time]()
	}
	return domain.Known(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

func normalizeText(v any, limit int) domain.Field[string] {
	s, ok := rawString(v)
	if !ok {
		return domain.Missing[string]()
	}
	s = truncateRunes(s, limit)
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Missing[string]()
	}
	return domain.Known(s)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
