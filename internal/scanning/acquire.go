// Package scanning obtains plain text from receipt documents, reading the
// native text layer when there is one and falling back to OCR.
package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/zombor/receipt-sorter/internal/domain"
)

const (
	// RenderDPI is the resolution pages are rasterized at for OCR
	RenderDPI = 300
	// minNativeText is the trimmed length in characters below which the text
	// layer is ignored
	minNativeText = 10
)

// Acquirer implements text acquisition for documents and raster images
type Acquirer struct {
	open       Opener
	recognizer Recognizer
	logger     *slog.Logger
}

// AcquirerOption configures an Acquirer
type AcquirerOption func(*Acquirer)

// WithOpener replaces the MuPDF document opener
func WithOpener(open Opener) AcquirerOption {
	return func(a *Acquirer) { a.open = open }
}

// WithAcquirerLogger sets the logger
func WithAcquirerLogger(logger *slog.Logger) AcquirerOption {
	return func(a *Acquirer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAcquirer creates an Acquirer that uses recognizer for OCR
func NewAcquirer(recognizer Recognizer, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		open:       OpenFitz,
		recognizer: recognizer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire returns the text of doc. Paginated documents try the native text
// layer first; images always go through OCR.
func (a *Acquirer) Acquire(ctx context.Context, doc domain.Document) (domain.ExtractedText, error) {
	var (
		text string
		prov domain.Provenance
		err  error
	)

	switch doc.Kind {
	case domain.KindDocument:
		text, prov, err = a.acquireDocument(ctx, doc)
	case domain.KindImage:
		text, err = a.acquireImage(ctx, doc)
		prov = domain.ProvenanceRecognized
	default:
		return domain.ExtractedText{}, domain.Tag(domain.FailureUnreadable,
			fmt.Errorf("%w: unsupported file type %q", domain.ErrUnreadableDocument, doc.Ext()))
	}
	if err != nil {
		return domain.ExtractedText{}, domain.Tag(domain.FailureUnreadable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ExtractedText{}, domain.Tag(domain.FailureUnreadable, domain.ErrUnreadableDocument)
	}

	a.logger.Debug("Acquired text", "file", doc.Name(), "provenance", prov, "chars", utf8.RuneCountInString(text))
	return domain.ExtractedText{Text: text, Provenance: prov}, nil
}

func (a *Acquirer) acquireDocument(ctx context.Context, doc domain.Document) (string, domain.Provenance, error) {
	src, err := a.open(doc.Data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}
	defer src.Close()

	pages := make([]string, 0, src.NumPage())
	for i := 0; i < src.NumPage(); i++ {
		t, err := src.Text(i)
		if err != nil {
			a.logger.Warn("Failed to read text layer", "file", doc.Name(), "page", i+1, "error", err)
			continue
		}
		pages = append(pages, t)
	}

	native := strings.Join(pages, "\n")
	if utf8.RuneCountInString(strings.TrimSpace(native)) >= minNativeText {
		return native, domain.ProvenanceNative, nil
	}

	a.logger.Info("No usable text layer, running OCR", "file", doc.Name(), "pages", src.NumPage())

	recognized := make([]string, 0, src.NumPage())
	for i := 0; i < src.NumPage(); i++ {
		img, err := src.ImagePNG(i, RenderDPI)
		if err != nil {
			return "", "", fmt.Errorf("%w: rendering page %d: %v", domain.ErrUnreadableDocument, i+1, err)
		}
		t, err := a.recognizer.Recognize(ctx, img)
		if err != nil {
			return "", "", fmt.Errorf("%w: recognizing page %d: %v", domain.ErrUnreadableDocument, i+1, err)
		}
		recognized = append(recognized, t)
	}
	return strings.Join(recognized, "\n"), domain.ProvenanceRecognized, nil
}

func (a *Acquirer) acquireImage(ctx context.Context, doc domain.Document) (string, error) {
	img, err := imageToPNG(doc.Data, doc.Ext())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}
	t, err := a.recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("%w: recognizing image: %v", domain.ErrUnreadableDocument, err)
	}
	return t, nil
}
