package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/iancoleman/strcase"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/encoding/json"
	"github.com/santacall/santacall/internal/pkg/idgenerator"
	"github.com/santacall/santacall/internal/pkg/log"
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver/middleware"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const (
	DefaultErrorName    = "internalError"
	DefaultErrorMessage = "Application error. Please contact our support with exception id (%s) attached."
)

type ErrorResponse struct {
	StatusCode  int     `json:"statusCode"`
	Name        string  `json:"error"`
	Message     string  `json:"message"`
	ExceptionID *string `json:"exceptionId,omitempty"`
}

type ErrorWriter struct {
	logger            log.Logger
	errorNamePrefix   string
	exceptionIDPrefix string
}

func NewErrorWriter(logger log.Logger, errorNamePrefix, exceptionIDPrefix string) ErrorWriter {
	return ErrorWriter{logger: logger, errorNamePrefix: errorNamePrefix, exceptionIDPrefix: exceptionIDPrefix}
}

// Write the error as a JSON response with the status code from the error.
func (wr *ErrorWriter) Write(ctx context.Context, w http.ResponseWriter, err error) {
	requestID, ok := middleware.RequestIDFromContext(ctx)
	if !ok {
		requestID = idgenerator.RequestID()
	}

	response := &ErrorResponse{
		StatusCode: svcErrors.HTTPCodeFrom(err),
		Name:       DefaultErrorName,
	}

	var nameProvider svcErrors.WithName
	if errors.As(err, &nameProvider) {
		response.Name = nameProvider.ErrorName()
	}

	// Normalize error name, e.g., "order_not_found" to "santacall.orderNotFound"
	if !strings.Contains(response.Name, ".") {
		response.Name = wr.errorNamePrefix + strcase.ToLowerCamel(response.Name)
	}

	if response.StatusCode > 499 {
		v := wr.exceptionIDPrefix + requestID
		response.ExceptionID = &v
	}

	var errForResponse error
	var messageProvider svcErrors.WithUserMessage
	switch {
	case errors.As(err, &messageProvider):
		errForResponse = errors.New(messageProvider.ErrorUserMessage())
	case response.StatusCode > 499:
		errForResponse = errors.Errorf(DefaultErrorMessage, *response.ExceptionID)
	default:
		errForResponse = err
	}
	response.Message = errors.Format(errForResponse, errors.FormatAsSentences())

	var logEnabledProvider svcErrors.WithErrorLogEnabled
	if !errors.As(err, &logEnabledProvider) || logEnabledProvider.ErrorLogEnabled() {
		attrs := []attribute.KeyValue{attribute.String("error.name", response.Name)}
		if response.ExceptionID != nil {
			attrs = append(attrs, attribute.String("exceptionId", *response.ExceptionID))
		}
		logger := wr.logger.With(attrs...)
		if response.StatusCode > 499 {
			logger.Error(ctx, errors.Format(err, errors.FormatWithStack()))
		} else {
			logger.Info(ctx, errors.Format(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)
	_, _ = w.Write([]byte(json.MustEncodeString(response, true)))
}

// WriteJSON writes a successful JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(json.MustEncodeString(body, true)))
}
