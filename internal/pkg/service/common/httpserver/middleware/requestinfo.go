package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
	"github.com/santacall/santacall/internal/pkg/idgenerator"
)

const (
	RequestIDHeader = "X-Request-Id"
	RequestIDCtxKey = ctxKey("request-id")
	attrRequestID   = "http.request_id"
)

// RequestInfo middleware adds the request ID to the context and to the response headers.
func RequestInfo() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestID := idgenerator.RequestID()

			ctx := req.Context()
			ctx = context.WithValue(ctx, RequestIDCtxKey, requestID)
			ctx = ctxattr.ContextWith(ctx, attribute.String(attrRequestID, requestID))

			w.Header().Add(RequestIDHeader, requestID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(RequestIDCtxKey).(string)
	return v, ok
}
