package middleware

import (
	"net/http"
)

// FilterFn must return true if the request should be logged/metered.
type FilterFn func(*http.Request) bool

// PathFilter rejects requests to the listed paths, for example the health check.
func PathFilter(paths ...string) FilterFn {
	ignored := make(map[string]bool, len(paths))
	for _, p := range paths {
		ignored[p] = true
	}
	return func(req *http.Request) bool {
		return !ignored[req.URL.Path]
	}
}

func accepted(req *http.Request, filters []FilterFn) bool {
	for _, f := range filters {
		if !f(req) {
			return false
		}
	}
	return true
}
