package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/log"
)

// AccessLog logs each request, requests rejected by a filter are logged only on a server error.
func AccessLog(baseLogger log.Logger, filters ...FilterFn) Middleware {
	logger := baseLogger.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			started := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)

			if !accepted(req, filters) && ww.Status() < http.StatusInternalServerError {
				return
			}

			logger.
				With(
					attribute.String("http.method", req.Method),
					attribute.String("http.path", req.URL.Path),
					attribute.Int("http.status", ww.Status()),
					attribute.Int("http.bytes", ww.BytesWritten()),
					attribute.String("http.user_agent", req.UserAgent()),
				).
				WithDuration(time.Since(started)).
				Infof(req.Context(), "req %s %s status=%d", req.Method, req.URL.Path, ww.Status())
		})
	}
}
