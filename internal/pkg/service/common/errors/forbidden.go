package errors

import (
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// ForbiddenError is returned when the identity is known, but it is not allowed to perform the operation.
type ForbiddenError struct {
	err  error
	name string
}

func NewForbiddenError(name string, err error) ForbiddenError {
	return ForbiddenError{err: err, name: name}
}

func (e ForbiddenError) ErrorName() string {
	return e.name
}

func (e ForbiddenError) StatusCode() int {
	return http.StatusForbidden
}

func (e ForbiddenError) Unwrap() error {
	return e.err
}

func (e ForbiddenError) Error() string {
	return e.err.Error()
}

func (e ForbiddenError) ErrorUserMessage() string {
	return errors.Format(e.err, errors.FormatAsSentences())
}
