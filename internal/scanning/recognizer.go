package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer turns a PNG image into text
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Tesseract recognizes text with a local tesseract install
type Tesseract struct {
	clientFactory func() *gosseract.Client
	languages     []string
	dpi           int
}

// NewTesseract creates a Tesseract recognizer. languages defaults to eng.
func NewTesseract(dpi int, languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		dpi:           dpi,
	}
}

// Recognize runs OCR on a single image
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if t.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(t.dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
