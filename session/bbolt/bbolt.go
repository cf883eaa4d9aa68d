// Package bbolt provides a BBolt-backed session store.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/JeanGrijp/go-csrfguard/session"
)

var bucketName = []byte("sessions")

// Store implements session.Store backed by a BBolt database. Each session is
// one JSON-encoded record keyed by its ID.
type Store struct {
	db *bbolt.DB
}

var _ session.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(data []byte) (session.Values, error) {
	v := make(session.Values)
	if data == nil {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return v, nil
}

func (s *Store) Load(id string) (session.Values, error) {
	var v session.Values
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		// Get returns memory owned by the transaction; decode copies it out.
		v, err = decode(tx.Bucket(bucketName).Get([]byte(id)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Update runs fn inside a single read-write transaction. An error from fn
// rolls the transaction back.
func (s *Store) Update(id string, fn func(v session.Values) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v, err := decode(b.Get([]byte(id)))
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		if len(v) == 0 {
			return b.Delete([]byte(id))
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(id))
	})
}
