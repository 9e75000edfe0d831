package errors

import (
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type UnauthorizedError struct {
	err error
}

func NewUnauthorizedError(err error) UnauthorizedError {
	return UnauthorizedError{err: err}
}

func (UnauthorizedError) ErrorName() string {
	return "unauthorized"
}

func (e UnauthorizedError) StatusCode() int {
	return http.StatusUnauthorized
}

func (e UnauthorizedError) Unwrap() error {
	return e.err
}

func (e UnauthorizedError) Error() string {
	return e.err.Error()
}

func (e UnauthorizedError) ErrorUserMessage() string {
	return errors.Format(e.err, errors.FormatAsSentences())
}
