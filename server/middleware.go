package server

import "net/http"

// Middleware wraps one of the bridge's HTTP transport handlers.
type Middleware func(next http.Handler) http.Handler

// chainMiddleware composes middleware around a handler, first entry outermost.
func chainMiddleware(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
