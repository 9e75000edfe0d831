package backend

import (
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/httpclient"
)

// Clients groups the HTTP clients of all backends.
type Clients struct {
	Renderer  *RenderClient
	Telephony *TelephonyClient
	Billing   *BillingClient
}

func NewClients(logger log.Logger, cfg Config) (*Clients, error) {
	telephony, err := NewTelephonyClient(logger, cfg)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Renderer:  NewRenderClient(logger, cfg),
		Telephony: telephony,
		Billing:   NewBillingClient(logger, cfg),
	}, nil
}

func newRestyClient(logger log.Logger, cfg Config, baseURL string) *resty.Client {
	c := httpclient.New(
		logger,
		baseURL,
		httpclient.WithToken(cfg.Token),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRetry(cfg.RetryCount, httpclient.DefaultRetryWaitTime, httpclient.DefaultRetryWaitTimeMax),
	)
	c.SetError(&errorBody{})
	return c
}

// callbackURL returns the absolute callback URL, or an empty string if the public URL is not configured.
func callbackURL(cfg Config, path string) string {
	if cfg.CallbackBaseURL == "" {
		return ""
	}
	return strings.TrimRight(cfg.CallbackBaseURL, "/") + path
}
