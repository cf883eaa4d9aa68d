package csrf

import (
	"mime"
	"net/http"
	"net/url"
)

// Request is the read-only view of an inbound request the Guard needs.
type Request interface {
	// PostValue returns a body (form) parameter and whether it was sent.
	PostValue(name string) (string, bool)
	// QueryValue returns a query-string parameter and whether it was sent.
	QueryValue(name string) (string, bool)
	// Header returns the first value of the named header, or "".
	Header(name string) string
	// Host returns the host (and port, if any) the request was addressed to.
	Host() string
}

// maxMemory bounds multipart parsing; larger parts spill to disk.
const maxMemory = 32 << 20

type httpRequest struct {
	r     *http.Request
	query url.Values
}

// HTTPRequest adapts a net/http request to Request. Body parameters are read
// from url-encoded and multipart forms; parsing errors leave the body empty.
func HTTPRequest(r *http.Request) Request {
	if r.PostForm == nil {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if ct == "multipart/form-data" {
			_ = r.ParseMultipartForm(maxMemory)
		} else {
			_ = r.ParseForm()
		}
	}
	return &httpRequest{r: r, query: r.URL.Query()}
}

func (h *httpRequest) PostValue(name string) (string, bool) {
	if vs, ok := h.r.PostForm[name]; ok && len(vs) > 0 {
		return vs[0], true
	}
	if h.r.MultipartForm != nil {
		if vs, ok := h.r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

func (h *httpRequest) QueryValue(name string) (string, bool) {
	if vs, ok := h.query[name]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

func (h *httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h *httpRequest) Host() string {
	return h.r.Host
}
