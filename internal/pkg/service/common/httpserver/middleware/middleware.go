// Package middleware contains HTTP middlewares shared by the service API.
package middleware

import (
	"net/http"
)

type ctxKey string

type Middleware func(http.Handler) http.Handler

// Wrap handler with middlewares, the first middleware is the outermost one.
func Wrap(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
