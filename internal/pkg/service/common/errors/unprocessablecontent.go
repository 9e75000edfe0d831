package errors

import (
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type UnprocessableContentError struct {
	err         error
	name        string
	userMessage string
}

func NewUnprocessableContentError(err error) UnprocessableContentError {
	return UnprocessableContentError{err: err}
}

func (e UnprocessableContentError) ErrorName() string {
	if e.name != "" {
		return e.name
	}
	return "unprocessableContent"
}

func (e UnprocessableContentError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

func (e UnprocessableContentError) Unwrap() error {
	return e.err
}

func (e UnprocessableContentError) Error() string {
	return e.err.Error()
}

func (e UnprocessableContentError) WithName(name string) UnprocessableContentError {
	e.name = name
	return e
}

func (e UnprocessableContentError) WithUserMessage(msg string) UnprocessableContentError {
	e.userMessage = msg
	return e
}

func (e UnprocessableContentError) ErrorUserMessage() string {
	if e.userMessage != "" {
		return e.userMessage
	}
	return errors.Format(e, errors.FormatAsSentences())
}
