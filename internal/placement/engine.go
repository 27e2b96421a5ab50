// Package placement copies receipts into the organized output tree.
package placement

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zombor/receipt-sorter/internal/domain"
)

const (
	// ReviewFolder holds receipts whose classification was not confident
	ReviewFolder = "Review_Required"
	// LogFile is the operations log name under the output root
	LogFile = "processing_log.txt"
)

// Result describes where a document was placed
type Result struct {
	Path        string `json:"path"`
	NeedsReview bool   `json:"needs_review"`
}

// Filename returns the base name of the placed file
func (r Result) Filename() string {
	return filepath.Base(r.Path)
}

// Engine places documents under an output root
type Engine struct {
	root   string
	locks  sync.Map
	oplog  *OpLog
	logger *slog.Logger
}

// NewEngine creates the output root and review folder and returns an Engine
func NewEngine(root string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(root, ReviewFolder), 0o755); err != nil {
		return nil, fmt.Errorf("creating output folders: %w", err)
	}
	return &Engine{
		root:   root,
		oplog:  NewOpLog(filepath.Join(root, LogFile)),
		logger: logger,
	}, nil
}

// Root returns the output root
func (e *Engine) Root() string {
	return e.root
}

// Place copies doc into the review folder or its currency folder under a
// name derived from record. The source is never modified.
func (e *Engine) Place(doc domain.Document, record domain.Record, needsReview bool) (Result, error) {
	folder := filepath.Join(e.root, ReviewFolder)
	if !needsReview {
		folder = filepath.Join(e.root, record.CurrencyCode())
	}

	name := Filename(record, doc.Ext())
	dst, err := e.copyInto(folder, name, doc)
	if err != nil {
		e.record(StatusFailed, doc.Path, filepath.Join(folder, name))
		return Result{}, domain.Tag(domain.FailurePlacement, err)
	}

	e.record(StatusSuccess, doc.Path, dst)
	e.logger.Info("Organized receipt", "file", doc.Name(), "destination", dst, "review", needsReview)
	return Result{Path: dst, NeedsReview: needsReview}, nil
}

func (e *Engine) copyInto(folder, name string, doc domain.Document) (string, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("creating folder %s: %w", folder, err)
	}

	f, dst, err := e.claim(folder, name)
	if err != nil {
		return "", err
	}

	if _, err := f.Write(doc.Data); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("closing %s: %w", dst, err)
	}

	if !doc.ModTime.IsZero() {
		if err := os.Chtimes(dst, doc.ModTime, doc.ModTime); err != nil {
			e.logger.Warn("Failed to preserve modification time", "file", dst, "error", err)
		}
	}
	return dst, nil
}

// claim creates the first free name among name, name_1, name_2, ...
// The folder lock serializes claims within this process and O_EXCL
// guarantees no existing file is overwritten.
func (e *Engine) claim(folder, name string) (*os.File, string, error) {
	mu := e.lockFor(folder)
	mu.Lock()
	defer mu.Unlock()

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; ; n++ {
		candidate := name
		if n > 0 {
			candidate = base + "_" + strconv.Itoa(n) + ext
		}
		path := filepath.Join(folder, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("creating %s: %w", path, err)
		}
	}
}

func (e *Engine) lockFor(folder string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(folder, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (e *Engine) record(status, src, dst string) {
	if err := e.oplog.Record(OpCopy, status, src, dst); err != nil {
		e.logger.Error("Failed to write operations log", "error", err)
	}
}
