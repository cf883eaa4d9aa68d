package cmd

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JeanGrijp/go-csrfguard/csrf"
	"github.com/JeanGrijp/go-csrfguard/internal/logx"
	"github.com/JeanGrijp/go-csrfguard/session"
)

const formPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>CSRF test ground</title></head>
<body>
<h3>CSRF test ground</h3>
<form action="/action" method="post">
  <label for="name">Name</label>
  <input type="text" name="name" id="name">
  <label for="age">Age</label>
  <input type="text" name="age" id="age">
  <input type="hidden" name="{{.Field}}" value="{{.Token}}">
  <button type="submit" name="submit">Submit</button>
</form>
</body>
</html>
`

const resultPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>CSRF test ground</title></head>
<body>
{{if .Valid}}<p style="color: green">Token is valid. Next token: {{.Token}}</p>
<p>Submitting the same form again is rejected: tokens are single use.</p>
{{else}}<p style="color: red">Token is not valid!</p>{{end}}
<a href="/">Back</a>
</body>
</html>
`

var pages = template.Must(template.Must(template.New("form").Parse(formPage)).New("result").Parse(resultPage))

type pageData struct {
	Field string
	Token string
	Valid bool
}

// newApp wires the demo routes. Every mutating route sits behind the CSRF
// protector, which rotates the token after each accepted submission.
func newApp(g *csrf.Guard, sessions *session.Manager, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	p := csrf.NewProtector(g, sessions.FromRequest)
	p.RotateOnSuccess = true
	p.FailureHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render(w, log, http.StatusForbidden, "result", pageData{})
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logx.HTTPMiddleware(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Use(p.Protect)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.FromRequest(r)
			if err != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			// A freshly rendered form always gets a fresh token.
			tok, err := g.Issue(sess)
			if err != nil {
				http.Error(w, "failed to issue CSRF token", http.StatusInternalServerError)
				return
			}
			render(w, log, http.StatusOK, "form", pageData{Field: g.FieldName(), Token: tok})
		})

		r.Get("/csrf-token", p.TokenHandler().ServeHTTP)

		r.Post("/action", func(w http.ResponseWriter, r *http.Request) {
			tok, _ := csrf.TokenFromContext(r.Context())
			render(w, log, http.StatusOK, "result", pageData{Token: tok, Valid: true})
		})

		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.FromRequest(r)
			if err == nil {
				err = g.Delete(sess)
			}
			if err == nil {
				err = sessions.Destroy(w, r)
			}
			if err != nil {
				log.Error("logout failed", "err", err)
				http.Error(w, "logout failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func render(w http.ResponseWriter, log *slog.Logger, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.Error("render failed", "page", name, "err", err)
	}
}
