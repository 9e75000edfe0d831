package errors

import (
	"fmt"
	"net/http"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type ResourceNotFoundError struct {
	what string
	key  string
	in   string
}

func NewResourceNotFoundError(what, key, in string) ResourceNotFoundError {
	return ResourceNotFoundError{what: what, key: key, in: in}
}

func (e ResourceNotFoundError) ErrorName() string {
	return e.what + "NotFound"
}

func (e ResourceNotFoundError) StatusCode() int {
	return http.StatusNotFound
}

func (e ResourceNotFoundError) Error() string {
	return fmt.Sprintf(`%s "%s" not found in the %s`, e.what, e.key, e.in)
}

func (e ResourceNotFoundError) ErrorUserMessage() string {
	return errors.Format(e, errors.FormatAsSentences())
}

// ErrorLogEnabled returns false, a missing resource is an expected client error.
func (e ResourceNotFoundError) ErrorLogEnabled() bool {
	return false
}
