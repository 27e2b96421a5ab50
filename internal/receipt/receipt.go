package receipt

import (
	"time"

	"github.com/zombor/receipt-sorter/internal/domain"
)

// Status is the outcome of running a source document through the pipeline
type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Document is the stored outcome for one source file
type Document struct {
	ID          string             `json:"id"`
	Hash        string             `json:"hash"`
	SourcePath  string             `json:"source_path"`
	Status      Status             `json:"status"`
	Destination string             `json:"destination,omitempty"`
	NeedsReview bool               `json:"needs_review"`
	Provenance  domain.Provenance  `json:"provenance,omitempty"`
	Date        string             `json:"date,omitempty"`
	Vendor      string             `json:"vendor,omitempty"`
	Amount      string             `json:"amount,omitempty"`
	Currency    string             `json:"currency,omitempty"`
	Category    domain.Category    `json:"category,omitempty"`
	Confidence  domain.Confidence  `json:"confidence"`
	FailureKind domain.FailureKind `json:"failure_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	ProcessedAt time.Time          `json:"processed_at"`
}

// Succeeded reports whether the document reached its destination
func (d *Document) Succeeded() bool {
	return d.Status == StatusProcessed
}
