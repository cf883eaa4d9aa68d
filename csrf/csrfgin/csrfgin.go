// Package csrfgin adapts the csrf Guard to the gin framework.
package csrfgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JeanGrijp/go-csrfguard/csrf"
)

// SessionFunc resolves the session of a gin request.
type SessionFunc func(c *gin.Context) (csrf.Session, error)

type request struct {
	c *gin.Context
}

// Request adapts a gin context to csrf.Request.
func Request(c *gin.Context) csrf.Request {
	return request{c: c}
}

func (r request) PostValue(name string) (string, bool) { return r.c.GetPostForm(name) }
func (r request) QueryValue(name string) (string, bool) { return r.c.GetQuery(name) }
func (r request) Header(name string) string             { return r.c.GetHeader(name) }
func (r request) Host() string                          { return r.c.Request.Host }

// Middleware enforces CSRF protection on gin routes. Safe methods get the
// session token injected into the request context; unsafe methods must carry
// a valid token or are aborted with 403.
func Middleware(g *csrf.Guard, sessions SessionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := sessions(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if !g.CheckRequest(sess, Request(c)) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
				return
			}
		default:
			tok, err := g.RetrieveOrCreate(sess)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to issue CSRF token"})
				return
			}
			c.Request = c.Request.WithContext(csrf.ContextWithToken(c.Request.Context(), tok))
		}
		c.Next()
	}
}

// Token returns the token injected by Middleware.
func Token(c *gin.Context) (string, bool) {
	return csrf.TokenFromContext(c.Request.Context())
}
