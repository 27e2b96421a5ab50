// Package receipt runs source documents through the sorting pipeline and
// keeps an index of what has been processed.
package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-sorter/internal/domain"
	"github.com/zombor/receipt-sorter/internal/ledger"
	"github.com/zombor/receipt-sorter/internal/placement"
)

// ErrAlreadyProcessed is returned for a document whose content was already
// sorted by an earlier run
var ErrAlreadyProcessed = errors.New("document already processed")

// TextAcquirer gets the plain text of a document
type TextAcquirer interface {
	Acquire(ctx context.Context, doc domain.Document) (domain.ExtractedText, error)
}

// FieldExtractor turns text into a receipt record
type FieldExtractor interface {
	Extract(ctx context.Context, text domain.ExtractedText) (domain.Record, error)
}

// Classifier assigns a category and decides whether a record needs review
type Classifier interface {
	Classify(ctx context.Context, record domain.Record) domain.Classification
	NeedsReview(confidence domain.Confidence) bool
}

// Placer copies a document into the output tree
type Placer interface {
	Place(doc domain.Document, record domain.Record, needsReview bool) (placement.Result, error)
}

// Ledger records placed receipts
type Ledger interface {
	Append(ctx context.Context, currency string, record domain.Record, cls domain.Classification, filename string) error
	Load(currency string) (*ledger.Book, error)
	Summarize() (ledger.Summary, error)
}

// Stages are the pipeline components, run in this order for every document
type Stages struct {
	Acquirer   TextAcquirer
	Extractor  FieldExtractor
	Classifier Classifier
	Placer     Placer
	Ledger     Ledger
}

// IDGenerator generates unique IDs for documents
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Option configures a Service
type Option func(*Service)

// WithWorkers sets how many documents are processed at once
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithReprocess disables the already-processed check
func WithReprocess(reprocess bool) Option {
	return func(s *Service) { s.reprocess = reprocess }
}

// WithCurrencies sets the currency codes treated as expected. Others are
// still processed but logged.
func WithCurrencies(codes ...string) Option {
	return func(s *Service) {
		s.currencies = make(map[string]bool, len(codes))
		for _, c := range codes {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				s.currencies[c] = true
			}
		}
	}
}

// WithIDGenerator replaces the UUID generator
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.idGenerator = g }
}

// WithTimeSource replaces the system clock
func WithTimeSource(t TimeSource) Option {
	return func(s *Service) { s.timeSource = t }
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service handles document processing
type Service struct {
	db          DB
	storage     Storage
	stages      Stages
	workers     int
	reprocess   bool
	currencies  map[string]bool
	idGenerator IDGenerator
	timeSource  TimeSource
	logger      *slog.Logger
}

// NewService creates a new Service
func NewService(db DB, storage Storage, stages Stages, opts ...Option) *Service {
	s := &Service{
		db:          db,
		storage:     storage,
		stages:      stages,
		workers:     1,
		idGenerator: uuidGenerator{},
		timeSource:  systemClock{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessDocument runs one document through every stage. The returned
// Document is never nil; a non-nil error is the document's failure.
func (s *Service) ProcessDocument(ctx context.Context, doc domain.Document) (*Document, error) {
	sum := sha256.Sum256(doc.Data)
	hash := hex.EncodeToString(sum[:])

	if !s.reprocess {
		prev, err := s.db.FindByHash(hash)
		if err == nil && prev.Succeeded() {
			s.logger.Info("Skipping already processed document", "file", doc.Name(), "destination", prev.Destination)
			return prev, ErrAlreadyProcessed
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to check processed index", "file", doc.Name(), "error", err)
		}
	}

	s.logger.Info("Processing document", "file", doc.Name())

	out := &Document{
		ID:         s.idGenerator.Generate(),
		Hash:       hash,
		SourcePath: doc.Path,
	}

	err := s.runStages(ctx, doc, out)
	out.ProcessedAt = s.timeSource.Now()
	if err != nil {
		out.Status = StatusFailed
		out.FailureKind = domain.KindOf(err)
		out.Error = err.Error()
		s.logger.Error("Failed to process document", "file", doc.Name(), "kind", out.FailureKind, "error", err)
	} else {
		out.Status = StatusProcessed
	}

	if saveErr := s.db.SaveDocument(out); saveErr != nil {
		s.logger.Error("Failed to record document", "file", doc.Name(), "error", saveErr)
		out.Warnings = append(out.Warnings, fmt.Sprintf("not recorded in index: %v", saveErr))
	}
	return out, err
}

func (s *Service) runStages(ctx context.Context, doc domain.Document, out *Document) error {
	text, err := s.stages.Acquirer.Acquire(ctx, doc)
	if err != nil {
		return fmt.Errorf("acquiring text: %w", err)
	}
	out.Provenance = text.Provenance

	record, err := s.stages.Extractor.Extract(ctx, text)
	if err != nil {
		return fmt.Errorf("extracting fields: %w", err)
	}
	out.Date = record.DateString()
	out.Vendor = record.Vendor.String()
	out.Amount = record.AmountString()
	out.Currency = record.CurrencyCode()

	if code, ok := record.Currency.Get(); ok && len(s.currencies) > 0 && !s.currencies[code] {
		s.logger.Warn("Unrecognized currency", "file", doc.Name(), "currency", code)
	}

	cls := s.stages.Classifier.Classify(ctx, record)
	out.Category = cls.Category
	out.Confidence = cls.Confidence
	out.NeedsReview = s.stages.Classifier.NeedsReview(cls.Confidence)

	placed, err := s.stages.Placer.Place(doc, record, out.NeedsReview)
	if err != nil {
		return fmt.Errorf("placing document: %w", err)
	}
	out.Destination = placed.Path

	if err := s.stages.Ledger.Append(ctx, record.CurrencyCode(), record, cls, placed.Filename()); err != nil {
		s.logger.Warn("Failed to update ledger", "file", doc.Name(), "error", err)
		out.Warnings = append(out.Warnings, err.Error())
	}
	return nil
}

// ProcessFolder processes every supported document in the source folder.
// Cancelling ctx stops new documents from starting; documents already
// running finish.
func (s *Service) ProcessFolder(ctx context.Context) (*RunSummary, error) {
	names, err := s.storage.List()
	if err != nil {
		return nil, fmt.Errorf("listing source documents: %w", err)
	}

	summary := newRunSummary(s.idGenerator.Generate())
	s.logger.Info("Starting run", "run_id", summary.RunID, "documents", len(names), "workers", s.workers)

	outcomes := make([]outcome, len(names))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					outcomes[i] = outcome{name: names[i], skipped: true}
					continue
				}
				outcomes[i] = s.processFile(context.WithoutCancel(ctx), names[i])
			}
		}()
	}

	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, o := range outcomes {
		summary.add(o)
	}

	s.logger.Info("Finished run",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (s *Service) processFile(ctx context.Context, name string) outcome {
	doc, err := s.storage.Load(name)
	if err != nil {
		s.logger.Error("Failed to read document", "file", name, "error", err)
		return outcome{name: name, err: err}
	}
	out, err := s.ProcessDocument(ctx, doc)
	return outcome{name: name, doc: out, err: err}
}

// Upload stores an uploaded file in the source folder and processes it
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*Document, error) {
	if _, ok := domain.DetectKind(filename); !ok {
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}

	name, err := s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	doc, err := s.storage.Load(name)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return s.ProcessDocument(ctx, doc)
}

// GetDocument retrieves a processed document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all processed documents
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Ledger returns the ledger for currency
func (s *Service) Ledger(currency string) (*ledger.Book, error) {
	return s.stages.Ledger.Load(currency)
}

// Summary aggregates every ledger
func (s *Service) Summary() (ledger.Summary, error) {
	return s.stages.Ledger.Summarize()
}
