package csrf

// Session is the per-user key-value store the Guard reads its two slots from.
// Implementations are scoped to a single session; the Guard never creates or
// destroys them.
type Session interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Transactional is implemented by sessions that can apply several writes as a
// single unit. Generate and Delete use it so that no reader observes the token
// and expiry slots out of step.
type Transactional interface {
	Session
	Update(fn func(tx Session) error) error
}

// Snapshotter is implemented by sessions that can hand out a consistent
// read-only view of all their slots in one read. Validation uses it so the
// token and expiry it compares come from the same generation.
type Snapshotter interface {
	Session
	Snapshot() (Session, error)
}

// MapSession adapts a plain map to Session. It is not safe for concurrent use
// and is meant for tests and single-request scratch sessions.
type MapSession map[string]string

func (m MapSession) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m MapSession) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m MapSession) Delete(key string) error {
	delete(m, key)
	return nil
}

// snapshot returns a consistent view of s when it supports one.
func snapshot(s Session) (Session, error) {
	if sn, ok := s.(Snapshotter); ok {
		return sn.Snapshot()
	}
	return s, nil
}

// update runs fn atomically when s supports it, otherwise against s directly.
func update(s Session, fn func(tx Session) error) error {
	if t, ok := s.(Transactional); ok {
		return t.Update(fn)
	}
	return fn(s)
}
