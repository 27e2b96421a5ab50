package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentsBucket = "documents"
	hashesBucket    = "hashes"
)

// ErrNotFound is returned when no document matches a lookup
var ErrNotFound = errors.New("document not found")

// DB defines the interface for the processed-document index
type DB interface {
	// SaveDocument stores doc and points its content hash at it
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// FindByHash retrieves the latest document recorded for a content hash
	FindByHash(hash string) (*Document, error)

	// ListDocuments returns all documents, newest first
	ListDocuments() ([]*Document, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentsBucket, hashesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDocument saves a document and indexes it by hash in one transaction.
// A failed outcome never replaces a successful one in the hash index.
func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		if err := tx.Bucket([]byte(documentsBucket)).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		if doc.Hash == "" {
			return nil
		}

		hashes := tx.Bucket([]byte(hashesBucket))
		if !doc.Succeeded() {
			if id := hashes.Get([]byte(doc.Hash)); id != nil && string(id) != doc.ID {
				prev, err := getDocument(tx, string(id))
				if err == nil && prev.Succeeded() {
					return nil
				}
			}
		}
		return hashes.Put([]byte(doc.Hash), []byte(doc.ID))
	})
}

// GetDocument retrieves a document by ID
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByHash retrieves the document last recorded for hash
func (b *BoltDB) FindByHash(hash string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(hashesBucket)).Get([]byte(hash))
		if id == nil {
			return fmt.Errorf("%w: hash %s", ErrNotFound, hash)
		}
		var err error
		doc, err = getDocument(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func getDocument(tx *bbolt.Tx, id string) (*Document, error) {
	data := tx.Bucket([]byte(documentsBucket)).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first
func (b *BoltDB) ListDocuments() ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].ProcessedAt.After(docs[j].ProcessedAt)
	})
	return docs, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
