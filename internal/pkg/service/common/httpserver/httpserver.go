// Package httpserver starts an HTTP server with the common middlewares and a graceful shutdown.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver/middleware"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/telemetry"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const (
	requestTimeout    = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type Config struct {
	ListenAddress string
	// Handler serves the mounted endpoints.
	Handler http.Handler
	// IgnoredPaths are excluded from the access log and metrics, for example the health check.
	IgnoredPaths []string
}

type HTTPServer struct {
	*http.Server
	logger        log.Logger
	proc          *servicectx.Process
	listenAddress string
}

type dependencies interface {
	Logger() log.Logger
	Process() *servicectx.Process
	Telemetry() telemetry.Telemetry
}

// New creates new instance of HTTP server that is not running yet.
func New(d dependencies, cfg Config) *HTTPServer {
	server := &HTTPServer{
		logger:        d.Logger().WithComponent("http-server"),
		proc:          d.Process(),
		listenAddress: cfg.ListenAddress,
	}

	filter := middleware.PathFilter(cfg.IgnoredPaths...)
	handler := middleware.Wrap(
		cfg.Handler,
		middleware.RequestInfo(),
		middleware.AccessLog(d.Logger(), filter),
		middleware.OpenTelemetry(d.Telemetry().TracerProvider(), d.Telemetry().MeterProvider(), filter),
	)

	server.Server = &http.Server{
		Addr:              server.listenAddress,
		Handler:           http.TimeoutHandler(handler, requestTimeout, "request timeout"),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          log.NewStdErrorLogger(server.logger),
	}
	return server
}

// Start the HTTP server in a separate goroutine, the listener is opened synchronously.
func (h *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.listenAddress)
	if err != nil {
		return errors.PrefixErrorf(err, `cannot listen on "%s"`, h.listenAddress)
	}
	h.listenAddress = listener.Addr().String()

	h.proc.Add(func(_ context.Context, errCh chan<- error) {
		h.logger.Infof(ctx, `started HTTP server on "%s"`, h.listenAddress)
		if err := h.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	h.proc.OnShutdown(func(ctx context.Context) {
		h.logger.Infof(ctx, `shutting down HTTP server at "%s"`, h.listenAddress)
		if err := h.Shutdown(ctx); err != nil {
			h.logger.Errorf(ctx, `HTTP server shutdown error: %s`, err)
		}
		h.logger.Info(ctx, "HTTP server shutdown finished")
	})

	return nil
}

// ListenAddress returns the actual address, it differs from the configured one if the port was 0.
func (h *HTTPServer) ListenAddress() string {
	return h.listenAddress
}
