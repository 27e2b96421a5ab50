package receipt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/zombor/receipt-sorter/internal/domain"
)

var (
	reFilenameJunk = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reSpaces       = regexp.MustCompile(`\s+`)
)

// Storage defines the interface for the source folder
type Storage interface {
	// List returns the names of supported documents in sorted order
	List() ([]string, error)

	// Load reads a document by name
	Load(name string) (domain.Document, error)

	// Save writes a new file and returns its name
	Save(filename string, data []byte) (string, error)
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// List returns the supported files at the top level of the folder.
// Hidden files and subfolders are skipped.
func (l *LocalStorage) List() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading source folder: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := domain.DetectKind(e.Name()); !ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a file from the folder
func (l *LocalStorage) Load(name string) (domain.Document, error) {
	kind, ok := domain.DetectKind(name)
	if !ok {
		return domain.Document{}, fmt.Errorf("unsupported file type: %s", name)
	}

	fullPath := filepath.Join(l.basePath, filepath.Base(name))
	info, err := os.Stat(fullPath)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading file: %w", err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading file: %w", err)
	}

	return domain.Document{
		Path:    fullPath,
		Data:    data,
		Kind:    kind,
		ModTime: info.ModTime(),
	}, nil
}

// Save writes a new file to the folder. Existing files are never replaced.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filepath.Base(filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("file already exists: %s", filename)
	}
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filepath.Base(path), nil
}

// sanitizeFilename cleans up uploaded filenames, which phones make long and noisy
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameJunk.ReplaceAllString(base, "")
	base = reSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
