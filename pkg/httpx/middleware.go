package httpx

import (
	"errors"
	"net"
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so that the first middleware listed is the
// outermost one.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// GetRemoteIP returns the host part of r.RemoteAddr. Proxy headers are not
// consulted here; mount chi's middleware.RealIP ahead of the handlers when
// the server sits behind a trusted proxy.
func GetRemoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LimitForm caps the request body at n bytes and parses the form before the
// next handler runs, so later middleware such as a form-keyed rate limiter
// never reads past the cap. Oversized bodies get 413, malformed ones 400.
func LimitForm(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)

			var tooLarge *http.MaxBytesError
			err := r.ParseForm()
			switch {
			case errors.As(err, &tooLarge):
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			case err != nil:
				http.Error(w, "invalid form", http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
