// Package csrf issues and validates anti-forgery tokens bound to a
// server-side session.
//
// How it works
//   - A Guard stores a random token and its expiry in two slots of a Session
//     (by default "csrf_token" and "csrf_token_expire_at").
//   - Pages that render forms call RetrieveOrCreate or Issue and embed the
//     token in a hidden "_token" field or an "X-CSRF-TOKEN" header.
//   - Request handlers call CheckRequest, which extracts the candidate from the
//     body, then the query string, then the header, and validates it: it must
//     equal the stored token, the stored expiry must not have passed, and an
//     Origin or Referer header, when sent, must name the request host.
//
// Validation never writes to the session and reports failure as false; the
// caller decides how to answer.
//
// # Configuration
//
// All behavior is driven by Config. Key fields include:
//   - TokenKey, ExpiryKey: session slot names
//   - ExpiryMinutes (default: 10), changeable later with Guard.SetExpiryMinutes
//   - FieldName (default: "_token"), HeaderName (default: "X-CSRF-TOKEN")
//   - AllowedHost (empty means use the request host)
//   - RequireOrigin, RequireExpiry: treat missing headers or expiry as invalid
//
// Typical usage
//
//	g := csrf.New(csrf.Config{})
//	p := csrf.NewProtector(g, func(r *http.Request) (csrf.Session, error) {
//	    return sessions.FromRequest(r)
//	})
//	http.ListenAndServe(":8080", p.Protect(appMux))
//
// Without the middleware the Guard can be driven directly:
//
//	if !g.CheckRequest(sess, csrf.HTTPRequest(r)) {
//	    http.Error(w, "forbidden", http.StatusForbidden)
//	    return
//	}
package csrf
