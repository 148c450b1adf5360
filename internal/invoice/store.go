package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName    = "invoices"
	collectionKey = "invoicepilot_invoices"
)

// ErrNotFound is returned when a lookup by id finds nothing
var ErrNotFound = errors.New("invoice not found")

// Store defines the interface for the persistent invoice collection
type Store interface {
	// List returns all invoices, newest-first by insertion
	List() ([]StoredInvoice, error)

	// Add inserts an invoice at the head of the collection
	Add(inv StoredInvoice) error

	// Update replaces the invoice with a matching ID in place.
	// Updating an unknown ID changes nothing.
	Update(inv StoredInvoice) error

	// GetByID retrieves an invoice by ID, returning ErrNotFound when absent
	GetByID(id string) (*StoredInvoice, error)

	// Delete removes the invoice with a matching ID; deleting an unknown
	// ID changes nothing
	Delete(id string) error

	// Close closes the store
	Close() error
}

// BoltStore implements the Store interface using BoltDB. The whole
// collection lives under one key as a single JSON array and every mutation
// is a read-modify-write of that blob inside one transaction.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// readCollection unmarshals the collection blob; an absent key is an
// empty collection
func readCollection(bucket *bbolt.Bucket) ([]StoredInvoice, error) {
	data := bucket.Get([]byte(collectionKey))
	if data == nil {
		return []StoredInvoice{}, nil
	}
	var invoices []StoredInvoice
	if err := json.Unmarshal(data, &invoices); err != nil {
		return nil, fmt.Errorf("unmarshaling invoices: %w", err)
	}
	return invoices, nil
}

// writeCollection marshals and stores the whole collection blob
func writeCollection(bucket *bbolt.Bucket, invoices []StoredInvoice) error {
	data, err := json.Marshal(invoices)
	if err != nil {
		return fmt.Errorf("marshaling invoices: %w", err)
	}
	return bucket.Put([]byte(collectionKey), data)
}

// List returns all invoices, newest-first by insertion
func (b *BoltStore) List() ([]StoredInvoice, error) {
	var invoices []StoredInvoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		invoices, err = readCollection(tx.Bucket([]byte(bucketName)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// Add inserts an invoice at the head of the collection
func (b *BoltStore) Add(inv StoredInvoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		invoices, err := readCollection(bucket)
		if err != nil {
			return err
		}
		invoices = append([]StoredInvoice{inv}, invoices...)
		return writeCollection(bucket, invoices)
	})
}

// Update replaces the invoice with a matching ID; no-op when absent
func (b *BoltStore) Update(inv StoredInvoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		invoices, err := readCollection(bucket)
		if err != nil {
			return err
		}
		for i := range invoices {
			if invoices[i].ID == inv.ID {
				invoices[i] = inv
				return writeCollection(bucket, invoices)
			}
		}
		return nil
	})
}

// GetByID retrieves an invoice by ID
func (b *BoltStore) GetByID(id string) (*StoredInvoice, error) {
	var found *StoredInvoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		invoices, err := readCollection(tx.Bucket([]byte(bucketName)))
		if err != nil {
			return err
		}
		for i := range invoices {
			if invoices[i].ID == id {
				found = &invoices[i]
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Delete removes the invoice with a matching ID; no-op when absent
func (b *BoltStore) Delete(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		invoices, err := readCollection(bucket)
		if err != nil {
			return err
		}
		kept := invoices[:0]
		for _, inv := range invoices {
			if inv.ID != id {
				kept = append(kept, inv)
			}
		}
		if len(kept) == len(invoices) {
			return nil
		}
		return writeCollection(bucket, kept)
	})
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
