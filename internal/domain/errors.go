package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableDocument means neither the text layer nor OCR produced text.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrNoJSON means an oracle reply contained no balanced JSON object.
	ErrNoJSON = errors.New("no JSON object in reply")
	// ErrMalformedJSON means the located JSON object did not decode.
	ErrMalformedJSON = errors.New("malformed JSON in reply")
)

// FailureKind groups per-document failures for run reporting
type FailureKind string

const (
	FailureUnreadable FailureKind = "UnreadableDocument"
	FailureExtraction FailureKind = "ExtractionFailure"
	FailurePlacement  FailureKind = "PlacementFailure"
	FailureLedger     FailureKind = "LedgerFailure"
	FailureOther      FailureKind = "Other"
)

// Failure tags an error with the pipeline stage that produced it
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Tag wraps err as a failure of the given kind. A nil err stays nil.
func Tag(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: kind, Err: err}
}

// KindOf reports the failure kind carried by err
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	switch {
	case errors.Is(err, ErrUnreadableDocument):
		return FailureUnreadable
	case errors.Is(err, ErrNoJSON), errors.Is(err, ErrMalformedJSON):
		return FailureExtraction
	}
	return FailureOther
}
