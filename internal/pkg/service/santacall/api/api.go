// Package api provides the HTTP API of the santacall service.
//
// Order endpoints act on behalf of the identity resolved by the IdentityProvider,
// orders of other accounts are not visible. Callback endpoints receive the events of the backends.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
	"github.com/santacall/santacall/internal/pkg/encoding/json"
	"github.com/santacall/santacall/internal/pkg/log"
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/service/santacall/fulfillment"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
	"github.com/santacall/santacall/internal/pkg/validator"
)

const (
	ErrorNamePrefix   = "santacall."
	ExceptionIDPrefix = "santacall-"
	HealthCheckPath   = "/health-check"
)

type API struct {
	logger    log.Logger
	validator validator.Validator
	orders    *fulfillment.Orchestrator
	identity  IdentityProvider
	// backendToken authenticates the callbacks, the check is disabled if it is empty
	backendToken string
	errors       httpserver.ErrorWriter
	dedup        *dedup
}

type dependencies interface {
	Logger() log.Logger
	Validator() validator.Validator
	Config() config.Config
}

// handlerFunc returns an error, it is written by the ErrorWriter.
type handlerFunc func(w http.ResponseWriter, req *http.Request) error

func New(d dependencies, orders *fulfillment.Orchestrator, identity IdentityProvider) (*API, error) {
	callbacks, err := newDedup(d.Config().API.CallbackDedupSize)
	if err != nil {
		return nil, err
	}

	logger := d.Logger().WithComponent("api")
	return &API{
		logger:       logger,
		validator:    d.Validator(),
		orders:       orders,
		identity:     identity,
		backendToken: d.Config().Backends.Token,
		errors:       httpserver.NewErrorWriter(logger, ErrorNamePrefix, ExceptionIDPrefix),
		dedup:        callbacks,
	}, nil
}

// Handler returns the router with all endpoints.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.NotFound(a.handle(func(_ http.ResponseWriter, req *http.Request) error {
		return svcErrors.NewResourceNotFoundError("endpoint", req.URL.Path, "API")
	}))

	r.Get(HealthCheckPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	r.Route("/v1/orders", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Post("/", a.handle(a.bookOrder))
		r.Get("/", a.handle(a.listOrders))
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", a.handle(a.getOrder))
			r.Get("/call", a.handle(a.getOrderCall))
			r.Post("/cancel", a.handle(a.cancelOrder))
			r.Post("/reschedule", a.handle(a.rescheduleOrder))
		})
	})

	r.Route("/v1/operator/orders", func(r chi.Router) {
		r.Use(a.authenticate, a.requireOperator)
		r.Post("/{orderId}/refund", a.handle(a.refundOrder))
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authenticateBackend)
		r.Post(backend.RenderCallbackPath, a.handle(a.renderCallback))
		r.Post(backend.TelephonyCallbackPath, a.handle(a.telephonyCallback))
	})

	return r
}

// Close releases the de-duplication cache.
func (a *API) Close() {
	a.dedup.close()
}

func (a *API) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := fn(w, req); err != nil {
			a.errors.Write(req.Context(), w, err)
		}
	}
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		identity, err := a.identity.Identity(req)
		if err != nil {
			a.errors.Write(req.Context(), w, err)
			return
		}

		ctx := context.WithValue(req.Context(), identityCtxKey, identity)
		ctx = ctxattr.ContextWith(ctx, attribute.String("account.id", identity.AccountID))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (a *API) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !identityFrom(req.Context()).Operator {
			a.errors.Write(req.Context(), w, svcErrors.NewForbiddenError("operatorOnly", errors.New("the operation is allowed only for an operator")))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// authenticateBackend checks the bearer token of a backend callback.
func (a *API) authenticateBackend(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.backendToken != "" {
			token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(token), []byte(a.backendToken)) != 1 {
				a.errors.Write(req.Context(), w, svcErrors.NewUnauthorizedError(errors.New("invalid backend token")))
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

// decode reads and validates the request body.
func (a *API) decode(req *http.Request, target any) error {
	if err := json.DecodeStrict(req.Body, target); err != nil {
		return svcErrors.NewBadRequestError(err)
	}
	if err := a.validator.Validate(req.Context(), target); err != nil {
		return svcErrors.NewBadRequestError(err)
	}
	return nil
}
