package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JeanGrijp/go-csrfguard/csrf"
)

type ctxKey struct{}

type Options struct {
	CookieName     string // default: "session_id"
	CookiePath     string // default: "/"
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite // default: Lax
	CookieMaxAge   int           // in seconds, 0 means browser session

	Logger *slog.Logger
}

// Manager maps a session cookie to a Handle on a Store.
type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.CookieSameSite == 0 {
		opts.CookieSameSite = http.SameSiteLaxMode
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{store: store, opts: opts}
}

// Middleware attaches the session of the request to its context, issuing a
// new session cookie when the request has none or an unusable one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.sessionID(r)
		if !ok {
			id = uuid.NewString()
			m.setCookie(w, id, m.opts.CookieMaxAge)
			m.opts.Logger.Debug("session started", "session_id", id)
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, NewHandle(m.store, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the session handle attached by Middleware.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(ctxKey{}).(*Handle)
	return h, ok
}

// FromRequest returns the session of r. It satisfies csrf.SessionFunc.
func (m *Manager) FromRequest(r *http.Request) (csrf.Session, error) {
	h, ok := FromContext(r.Context())
	if !ok {
		return nil, ErrNoSession
	}
	return h, nil
}

// Destroy removes the session of r from the store and expires its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if id, ok := m.sessionID(r); ok {
		if err := m.store.Delete(id); err != nil {
			return fmt.Errorf("session: destroy %s: %w", id, err)
		}
	}
	m.setCookie(w, "", -1)
	return nil
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	if h, ok := FromContext(r.Context()); ok {
		return h.ID(), true
	}
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, maxAge int) {
	c := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    id,
		Path:     m.opts.CookiePath,
		Domain:   m.opts.CookieDomain,
		MaxAge:   maxAge,
		Secure:   m.opts.CookieSecure,
		HttpOnly: true,
		SameSite: m.opts.CookieSameSite,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	http.SetCookie(w, c)
}
