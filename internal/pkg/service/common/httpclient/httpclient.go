// Package httpclient provides a resty HTTP client for the calls to the external backends.
// Requests are retried on network errors and on the temporary HTTP errors.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/santacall/santacall/internal/pkg/log"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultRetryCount       = 3
	DefaultRetryWaitTime    = 100 * time.Millisecond
	DefaultRetryWaitTimeMax = 3 * time.Second
	dialTimeout             = 10 * time.Second
	keepAlive               = 30 * time.Second
	maxIdleConns            = 32
	idleConnTimeout         = 90 * time.Second
	userAgent               = "santacall"
)

type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryWaitTimeMax time.Duration
}

type Option func(c *Config)

func WithToken(v string) Option {
	return func(c *Config) {
		c.Token = v
	}
}

func WithRetry(count int, wait, waitMax time.Duration) Option {
	return func(c *Config) {
		c.RetryCount = count
		c.RetryWaitTime = wait
		c.RetryWaitTimeMax = waitMax
	}
}

func WithTimeout(v time.Duration) Option {
	return func(c *Config) {
		c.Timeout = v
	}
}

func New(logger log.Logger, baseURL string, opts ...Option) *resty.Client {
	cfg := Config{
		BaseURL:          baseURL,
		Timeout:          DefaultTimeout,
		RetryCount:       DefaultRetryCount,
		RetryWaitTime:    DefaultRetryWaitTime,
		RetryWaitTimeMax: DefaultRetryWaitTimeMax,
	}
	for _, o := range opts {
		o(&cfg)
	}

	logger = logger.WithComponent("http-client").With(attribute.String("http.base_url", baseURL))

	c := resty.New()
	c.SetBaseURL(cfg.BaseURL)
	c.SetHeader("User-Agent", userAgent)
	c.SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	c.SetTimeout(cfg.Timeout)
	c.SetTransport(createTransport())
	c.SetRetryCount(cfg.RetryCount)
	c.SetRetryWaitTime(cfg.RetryWaitTime)
	c.SetRetryMaxWaitTime(cfg.RetryWaitTimeMax)
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		// The condition replaces the default one, so network errors must be handled too
		return err != nil || (response != nil && IsRetryableStatus(response.StatusCode()))
	})

	c.AddRetryHook(func(response *resty.Response, err error) {
		// The hook is invoked also after the last attempt
		if response == nil || response.Request == nil || response.Request.Attempt > c.RetryCount {
			return
		}
		ctx := response.Request.Context()
		logger.Warnf(ctx, "%s | retrying attempt %d", responseToLog(response, err), response.Request.Attempt)
	})
	c.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
		logger.Debug(response.Request.Context(), responseToLog(response, nil))
		return nil
	})

	return c
}

// IsRetryableStatus returns true for the temporary HTTP errors.
func IsRetryableStatus(code int) bool {
	switch code {
	case
		http.StatusRequestTimeout,
		http.StatusLocked,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func responseToLog(res *resty.Response, err error) string {
	req := res.Request
	msg := fmt.Sprintf("%s %s | %d | %s", req.Method, req.URL, res.StatusCode(), res.Time())
	if err != nil {
		msg += " | " + err.Error()
	}
	return msg
}
