package backend

import (
	"context"
	"net/http"

	"github.com/ccoveille/go-safecast"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const TelephonyCallbackPath = "/v1/callbacks/telephony"

// TelephonyClient calls the telephony backend API through a circuit breaker.
// While the breaker is open, calls are not initiated at all and fail fast.
type TelephonyClient struct {
	client  *resty.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

type initiateCallRequest struct {
	ConversationID string        `json:"conversationId"`
	Participants   []Participant `json:"participants"`
	CallbackURL    string        `json:"callbackUrl,omitempty"`
}

func NewTelephonyClient(logger log.Logger, cfg Config) (*TelephonyClient, error) {
	logger = logger.WithComponent("telephony")

	failures, err := safecast.ToUint32(cfg.Telephony.BreakerFailures)
	if err != nil {
		return nil, errors.PrefixError(err, "invalid telephony breaker failures")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telephony",
		MaxRequests: 1,
		Timeout:     cfg.Telephony.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Rejected requests prove the backend is alive
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.With(
				attribute.String("breaker.from", from.String()),
				attribute.String("breaker.to", to.String()),
			).Warnf(context.Background(), `circuit breaker "%s" changed state from "%s" to "%s"`, name, from, to)
		},
	})

	return &TelephonyClient{client: newRestyClient(logger, cfg, cfg.Telephony.URL), cfg: cfg, breaker: breaker}, nil
}

// Client returns the underlying resty client.
func (c *TelephonyClient) Client() *resty.Client {
	return c.client
}

func (c *TelephonyClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *TelephonyClient) InitiateCall(ctx context.Context, conversationID string, participants []Participant) (string, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		result := &handleResponse{}
		res, err := c.client.R().
			SetContext(ctx).
			SetBody(initiateCallRequest{
				ConversationID: conversationID,
				Participants:   participants,
				CallbackURL:    callbackURL(c.cfg, TelephonyCallbackPath),
			}).
			SetResult(result).
			Post("/v1/calls")
		if err := checkResponse("initiate call", res, err); err != nil {
			return nil, err
		}
		if result.Handle == "" {
			return nil, &Error{Operation: "initiate call", StatusCode: res.StatusCode(), Message: "response has no handle", permanent: true}
		}
		return result.Handle, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &Error{Operation: "initiate call", err: err}
		}
		return "", err
	}
	return out.(string), nil
}

// HangUp terminates the call, an unknown handle is not an error.
// Hang-ups bypass the breaker, they must be attempted even if the initiation is failing.
func (c *TelephonyClient) HangUp(ctx context.Context, handle string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		Delete("/v1/calls/{handle}")
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return nil
	}
	return checkResponse("hang up call", res, err)
}
