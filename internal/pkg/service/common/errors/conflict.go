package errors

import (
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// ConflictError is returned when the operation is not allowed in the current state of the resource.
type ConflictError struct {
	err  error
	name string
}

func NewConflictError(name string, err error) ConflictError {
	return ConflictError{err: err, name: name}
}

func (e ConflictError) ErrorName() string {
	return e.name
}

func (e ConflictError) StatusCode() int {
	return http.StatusConflict
}

func (e ConflictError) Unwrap() error {
	return e.err
}

func (e ConflictError) Error() string {
	return e.err.Error()
}

func (e ConflictError) ErrorUserMessage() string {
	return errors.Format(e.err, errors.FormatAsSentences())
}
