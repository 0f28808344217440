package ptrchttp

import (
	"errors"
	"net/http"

	"github.com/peterbourgon/ptrc"
)

// MiddlewareCategory is the category of spans created by Middleware.
const MiddlewareCategory = "http"

// Middleware decorates an HTTP handler and records a span for each request in
// the provided session. The span name is determined by passing the request to
// getName; if getName is nil, the name is the method and path.
//
// If the session has no free span handles, the request is rejected with 503
// Service Unavailable. When no session is running, requests pass through.
func Middleware(session *ptrc.Session, getName func(*http.Request) string) func(http.Handler) http.Handler {
	if getName == nil {
		getName = func(r *http.Request) string { return r.Method + " " + r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sp, err := session.Begin(getName(r), MiddlewareCategory)
			if errors.Is(err, ptrc.ErrPoolExhausted) {
				respondError(w, err, http.StatusServiceUnavailable)
				return
			}
			defer sp.End()

			iw := newInterceptor(w)
			next.ServeHTTP(iw, r)

			if code := iw.Code(); code >= 500 {
				session.Mark(http.StatusText(code), MiddlewareCategory)
			}
		})
	}
}

//
//
//

type interceptor struct {
	http.ResponseWriter

	code int
}

func newInterceptor(w http.ResponseWriter) *interceptor {
	return &interceptor{ResponseWriter: w}
}

func (i *interceptor) WriteHeader(code int) {
	if i.code == 0 {
		i.code = code
	}
	i.ResponseWriter.WriteHeader(code)
}

func (i *interceptor) Code() int {
	if i.code == 0 {
		return http.StatusOK
	}
	return i.code
}

func (i *interceptor) Flush() {
	if f, ok := i.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (i *interceptor) Unwrap() http.ResponseWriter {
	return i.ResponseWriter
}
