package csrf

import (
	"context"
	"net/http"
)

// Methods that require CSRF protection
var unsafeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// SessionFunc resolves the session of an inbound request.
type SessionFunc func(r *http.Request) (Session, error)

// Protector adapts a Guard to net/http.
type Protector struct {
	guard    *Guard
	sessions SessionFunc

	// RotateOnSuccess reissues the token after every accepted unsafe request,
	// turning tokens into one-time values that also stop double submission.
	RotateOnSuccess bool

	// FailureHandler answers rejected requests. Defaults to a plain 403.
	FailureHandler http.Handler
}

// NewProtector returns a Protector validating requests with g against the
// session resolved by sessions.
func NewProtector(g *Guard, sessions SessionFunc) *Protector {
	return &Protector{
		guard:    g,
		sessions: sessions,
		FailureHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
		}),
	}
}

// Guard returns the Guard backing p.
func (p *Protector) Guard() *Guard { return p.guard }

// Protect wraps the given next http.Handler and enforces CSRF protection.
//
// Behavior:
//   - For "safe" methods (GET/HEAD/OPTIONS/TRACE): ensures the session holds a
//     token and injects it into the request context, then calls next.
//   - For "unsafe" methods (POST/PUT/PATCH/DELETE): extracts the candidate token
//     from the body, query or header and validates it against the session
//     (match, freshness, origin). Only then calls next.
//
// Params:
// - next: downstream handler to be executed after CSRF checks pass.
//
// Returns:
// - An http.Handler that performs the CSRF logic before delegating to next.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := p.sessions(r)
		if err != nil {
			p.guard.cfg.Logger.Error("csrf session unavailable", "err", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}

		if !unsafeMethods[r.Method] {
			tok, err := p.guard.RetrieveOrCreate(sess)
			if err != nil {
				http.Error(w, "failed to issue CSRF token", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithToken(r.Context(), tok)))
			return
		}

		if !p.guard.CheckRequest(sess, HTTPRequest(r)) {
			p.FailureHandler.ServeHTTP(w, r)
			return
		}

		if p.RotateOnSuccess {
			tok, err := p.guard.Reset(sess)
			if err != nil {
				http.Error(w, "failed to issue CSRF token", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(contextWithToken(r.Context(), tok))
		}

		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the CSRF token stored in ctx, if present.
//
// Params:
// - ctx: context potentially containing a token set by the middleware.
//
// Returns:
// - token (string) and a boolean indicating whether a token was found.
func TokenFromContext(ctx context.Context) (string, bool) {
	return tokenFromContext(ctx)
}

// TokenHandler returns an HTTP handler that writes the current CSRF token.
// This is useful for SPAs to fetch the token and attach it to subsequent requests.
//
// Returns:
// - http.Handler that responds with the token in the response body (text/plain).
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := TokenFromContext(r.Context()); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(tok))
			return
		}
		http.Error(w, "no token", http.StatusInternalServerError)
	})
}
