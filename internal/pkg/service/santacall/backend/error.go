package backend

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/santacall/santacall/internal/pkg/service/common/httpclient"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// ErrPermanent matches backend errors which cannot be fixed by a retry.
var ErrPermanent = errors.New("permanent backend error")

type Error struct {
	Operation  string
	StatusCode int
	Message    string
	permanent  bool
	err        error
}

func (e *Error) Error() string {
	msg := e.Operation + " failed"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	return e.permanent && target == ErrPermanent // nolint: errorlint
}

// IsPermanent returns true if the error is not worth to retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// checkResponse converts the resty result to an error.
// Network errors and server errors are transient, other 4xx client errors are permanent.
func checkResponse(operation string, res *resty.Response, err error) error {
	if err != nil {
		return &Error{Operation: operation, err: err}
	}
	if !res.IsError() {
		return nil
	}
	code := res.StatusCode()
	return &Error{
		Operation:  operation,
		StatusCode: code,
		Message:    errorMessage(res),
		permanent:  code < http.StatusInternalServerError && !httpclient.IsRetryableStatus(code),
	}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func errorMessage(res *resty.Response) string {
	if body, ok := res.Error().(*errorBody); ok {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return ""
}
