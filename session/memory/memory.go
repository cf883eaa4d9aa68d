// Package memory provides a thread-safe in-memory implementation of session.Store.
package memory

import (
	"sync"

	"github.com/JeanGrijp/go-csrfguard/session"
)

// Store is a thread-safe in-memory session.Store.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu   sync.RWMutex
	data map[string]session.Values
}

var _ session.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]session.Values)}
}

func cloneValues(v session.Values) session.Values {
	cp := make(session.Values, len(v))
	for k, val := range v {
		cp[k] = val
	}
	return cp
}

func (s *Store) Load(id string) (session.Values, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.data[id]), nil
}

// Update works on a copy and swaps it in only when fn succeeds.
func (s *Store) Update(id string, fn func(v session.Values) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := cloneValues(s.data[id])
	if err := fn(v); err != nil {
		return err
	}
	if len(v) == 0 {
		delete(s.data, id)
		return nil
	}
	s.data[id] = v
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of sessions holding at least one value.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
