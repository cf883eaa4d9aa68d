// Package session provides the per-user key-value sessions the csrf Guard
// stores its token in, backed by a pluggable Store.
package session

import (
	"errors"

	"github.com/JeanGrijp/go-csrfguard/csrf"
)

// ErrNoSession is returned when a request carries no session handle, i.e. the
// Manager middleware did not run.
var ErrNoSession = errors.New("session: no session in request context")

// Values holds the slots of one session.
type Values map[string]string

// Store persists Values by session ID.
type Store interface {
	// Load returns a copy of the values of session id. An unknown id yields
	// empty Values and no error.
	Load(id string) (Values, error)
	// Update runs fn on the values of session id and persists the result as
	// a single unit. If fn fails nothing is written.
	Update(id string, fn func(v Values) error) error
	// Delete drops session id. Deleting an unknown id is not an error.
	Delete(id string) error
}

// Handle binds a Store to one session ID.
type Handle struct {
	store Store
	id    string
}

var (
	_ csrf.Transactional = (*Handle)(nil)
	_ csrf.Snapshotter   = (*Handle)(nil)
)

// NewHandle returns the session id of store.
func NewHandle(store Store, id string) *Handle {
	return &Handle{store: store, id: id}
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Get(key string) (string, bool, error) {
	v, err := h.store.Load(h.id)
	if err != nil {
		return "", false, err
	}
	val, ok := v[key]
	return val, ok, nil
}

func (h *Handle) Set(key, value string) error {
	return h.store.Update(h.id, func(v Values) error {
		v[key] = value
		return nil
	})
}

func (h *Handle) Delete(key string) error {
	return h.store.Update(h.id, func(v Values) error {
		delete(v, key)
		return nil
	})
}

// Snapshot loads the session once and returns its values as a detached,
// read-only copy.
func (h *Handle) Snapshot() (csrf.Session, error) {
	v, err := h.store.Load(h.id)
	if err != nil {
		return nil, err
	}
	return csrf.MapSession(v), nil
}

// Update applies fn to the session in one store transaction.
func (h *Handle) Update(fn func(tx csrf.Session) error) error {
	return h.store.Update(h.id, func(v Values) error {
		return fn(csrf.MapSession(v))
	})
}
