package scanning

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// PageSource is a paginated document that can yield native text and
// rendered pages
type PageSource interface {
	NumPage() int
	Text(page int) (string, error)
	ImagePNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// Opener opens raw document bytes as a PageSource
type Opener func(data []byte) (PageSource, error)

// OpenFitz opens a document with MuPDF. Any format MuPDF understands
// (PDF, XPS, EPUB) is accepted.
func OpenFitz(data []byte) (PageSource, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	return doc, nil
}
