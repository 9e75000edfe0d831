// Package errors contains errors with an HTTP status code, an error name and a user message.
package errors

import (
	"context"
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// StatusClientClosedRequest is a non-standard status code used when the client closes the connection.
const StatusClientClosedRequest = 499

type WithStatusCode interface {
	StatusCode() int
}

type WithName interface {
	ErrorName() string
}

type WithUserMessage interface {
	ErrorUserMessage() string
}

type WithErrorLogEnabled interface {
	ErrorLogEnabled() bool
}

// HTTPCodeFrom returns the HTTP status code of the error, 500 if it is unknown.
func HTTPCodeFrom(err error) int {
	var withCode WithStatusCode
	switch {
	case errors.As(err, &withCode):
		return withCode.StatusCode()
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
