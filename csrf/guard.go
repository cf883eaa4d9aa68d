package csrf

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
)

// ErrRandomness is returned when the secure random source fails. Token
// issuance aborts; there is no fallback to a weaker source.
var ErrRandomness = errors.New("csrf: secure random source unavailable")

// Guard issues and validates the anti-forgery token of a session.
//
// A Guard holds configuration only; all token state lives in the Session
// passed to each call, so one Guard serves every session of an application.
type Guard struct {
	cfg           Config
	expiryMinutes atomic.Int64
}

// New returns a Guard configured by cfg, with defaults for empty fields.
func New(cfg Config) *Guard {
	cfg = cfg.withDefaults()
	g := &Guard{cfg: cfg}
	g.expiryMinutes.Store(int64(cfg.ExpiryMinutes))
	return g
}

// FieldName is the body/query parameter that carries the token.
func (g *Guard) FieldName() string { return g.cfg.FieldName }

// HeaderName is the header that carries the token when no parameter does.
func (g *Guard) HeaderName() string { return g.cfg.HeaderName }

// ExpiryMinutes returns the lifetime applied to the next generated token.
func (g *Guard) ExpiryMinutes() int { return int(g.expiryMinutes.Load()) }

// SetExpiryMinutes changes the lifetime of tokens generated from now on.
// Tokens already stored keep the expiry they were issued with.
func (g *Guard) SetExpiryMinutes(n int) { g.expiryMinutes.Store(int64(n)) }

// Generate creates a new token, stores it together with its expiry in s and
// returns it. Any previous token of s stops validating immediately.
func (g *Guard) Generate(s Session) (string, error) {
	tok, err := newToken(g.cfg.Rand, g.cfg.TokenBytes)
	if err != nil {
		g.cfg.Logger.Error("csrf token generation failed", "err", err)
		return "", err
	}

	expireAt := g.cfg.Now().Unix() + g.expiryMinutes.Load()*60
	err = update(s, func(tx Session) error {
		if err := tx.Set(g.cfg.TokenKey, tok); err != nil {
			return err
		}
		return tx.Set(g.cfg.ExpiryKey, strconv.FormatInt(expireAt, 10))
	})
	if err != nil {
		g.cfg.Logger.Error("csrf token store failed", "err", err)
		if _, ok := s.(Transactional); !ok {
			g.discard(s)
		}
		return "", fmt.Errorf("csrf: store token: %w", err)
	}

	g.cfg.Observer.TokenIssued()
	return tok, nil
}

// discard clears both slots after a partial write so that no token is left
// without its matching expiry.
func (g *Guard) discard(s Session) {
	for _, key := range []string{g.cfg.TokenKey, g.cfg.ExpiryKey} {
		if err := s.Delete(key); err != nil {
			g.cfg.Logger.Error("csrf token rollback failed", "key", key, "err", err)
		}
	}
}

// Issue always generates a fresh token and returns it.
func (g *Guard) Issue(s Session) (string, error) {
	return g.Generate(s)
}

// Reset invalidates the current token of s and issues a new one.
func (g *Guard) Reset(s Session) (string, error) {
	return g.Generate(s)
}

// RetrieveOrCreate returns the token stored in s, generating one first if
// s holds none. An existing token is returned as is, even when expired.
func (g *Guard) RetrieveOrCreate(s Session) (string, error) {
	tok, ok, err := s.Get(g.cfg.TokenKey)
	if err != nil {
		return "", fmt.Errorf("csrf: load token: %w", err)
	}
	if ok && tok != "" {
		return tok, nil
	}
	return g.Generate(s)
}

// Delete removes the token and its expiry from s. Deleting an absent token
// is a no-op.
func (g *Guard) Delete(s Session) error {
	err := update(s, func(tx Session) error {
		if err := tx.Delete(g.cfg.TokenKey); err != nil {
			return err
		}
		return tx.Delete(g.cfg.ExpiryKey)
	})
	if err != nil {
		return fmt.Errorf("csrf: delete token: %w", err)
	}
	g.cfg.Observer.TokenDeleted()
	return nil
}

// Validate reports whether candidate is the current, unexpired token of s and
// r comes from an acceptable origin. r may be nil when no request is at hand;
// the origin check then sees no headers. Validate never writes to s.
func (g *Guard) Validate(s Session, r Request, candidate string) bool {
	return g.Inspect(s, r, candidate) == ReasonOK
}

// Inspect runs the same checks as Validate and returns the first one that
// failed, or ReasonOK.
func (g *Guard) Inspect(s Session, r Request, candidate string) Reason {
	reason := g.check(s, r, candidate)
	g.report(reason)
	return reason
}

// CheckRequest extracts the candidate token from r and validates it against
// s. A request without a candidate fails without consulting the session.
func (g *Guard) CheckRequest(s Session, r Request) bool {
	candidate, ok := g.Extract(r)
	if !ok {
		g.report(ReasonMissing)
		return false
	}
	return g.Validate(s, r, candidate)
}

// Extract returns the candidate token carried by r. The body parameter wins
// over the query parameter, which wins over the header; the first carrier
// present is used even when its value turns out empty.
func (g *Guard) Extract(r Request) (string, bool) {
	var raw string
	if v, ok := r.PostValue(g.cfg.FieldName); ok {
		raw = v
	} else if v, ok := r.QueryValue(g.cfg.FieldName); ok {
		raw = v
	} else {
		raw = r.Header(g.cfg.HeaderName)
	}
	tok := sanitize(raw)
	return tok, tok != ""
}

func (g *Guard) check(s Session, r Request, candidate string) Reason {
	s, err := snapshot(s)
	if err != nil {
		g.cfg.Logger.Error("csrf session read failed", "err", err)
		return ReasonSession
	}

	// 1) match
	stored, ok, err := s.Get(g.cfg.TokenKey)
	if err != nil {
		g.cfg.Logger.Error("csrf session read failed", "key", g.cfg.TokenKey, "err", err)
		return ReasonSession
	}
	if !ok || stored == "" || candidate == "" {
		return ReasonMissing
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) != 1 {
		return ReasonMismatch
	}

	// 2) freshness
	if reason := g.checkExpiry(s); reason != ReasonOK {
		return reason
	}

	// 3) origin
	return g.checkOrigin(r)
}

func (g *Guard) checkExpiry(s Session) Reason {
	raw, ok, err := s.Get(g.cfg.ExpiryKey)
	if err != nil {
		g.cfg.Logger.Error("csrf session read failed", "key", g.cfg.ExpiryKey, "err", err)
		return ReasonSession
	}
	if !ok {
		if g.cfg.RequireExpiry {
			return ReasonExpired
		}
		return ReasonOK
	}
	expireAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ReasonExpired
	}
	if g.cfg.Now().Unix() >= expireAt {
		return ReasonExpired
	}
	return ReasonOK
}

func (g *Guard) checkOrigin(r Request) Reason {
	var src, host string
	if r != nil {
		// Prefer Origin; if empty, use Referer.
		src = r.Header("Origin")
		if src == "" {
			src = r.Header("Referer")
		}
		host = r.Host()
	}
	if src == "" {
		if g.cfg.RequireOrigin {
			return ReasonOrigin
		}
		return ReasonOK
	}
	if g.cfg.AllowedHost != "" {
		host = g.cfg.AllowedHost
	}
	if !sameHost(src, host) {
		return ReasonOrigin
	}
	return ReasonOK
}

func (g *Guard) report(reason Reason) {
	g.cfg.Observer.TokenChecked(reason)
	if reason != ReasonOK {
		g.cfg.Logger.Debug("csrf validation failed", "reason", reason.String())
	}
}
