package api

import (
	"context"
	"net/http"

	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const (
	AccountIDHeader      = "X-Account-Id"
	OrganizationIDHeader = "X-Organization-Id"
	RoleHeader           = "X-Role"
	RoleOperator         = "operator"
	identityCtxKey       = ctxKey("identity")
)

type ctxKey string

// Identity of the requester, it is opaque for the service.
type Identity struct {
	AccountID      string
	OrganizationID string
	// Operator can perform the exceptional operations, for example the refund.
	Operator bool
}

// IdentityProvider resolves the identity of the request.
// Credentials are verified by the gateway in front of the service.
type IdentityProvider interface {
	Identity(req *http.Request) (Identity, error)
}

// HeaderIdentityProvider reads the identity from the headers set by the trusted gateway.
type HeaderIdentityProvider struct{}

func NewHeaderIdentityProvider() HeaderIdentityProvider {
	return HeaderIdentityProvider{}
}

func (HeaderIdentityProvider) Identity(req *http.Request) (Identity, error) {
	identity := Identity{
		AccountID:      req.Header.Get(AccountIDHeader),
		OrganizationID: req.Header.Get(OrganizationIDHeader),
		Operator:       req.Header.Get(RoleHeader) == RoleOperator,
	}

	errs := errors.NewMultiError()
	if identity.AccountID == "" {
		errs.Append(errors.Errorf(`header "%s" is missing`, AccountIDHeader))
	}
	if identity.OrganizationID == "" {
		errs.Append(errors.Errorf(`header "%s" is missing`, OrganizationIDHeader))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return Identity{}, svcErrors.NewUnauthorizedError(err)
	}

	return identity, nil
}

func identityFrom(ctx context.Context) Identity {
	identity, ok := ctx.Value(identityCtxKey).(Identity)
	if !ok {
		panic(errors.New("identity is not set in the context"))
	}
	return identity
}
