package backend

import (
	"time"
)

type Config struct {
	Token           string          `json:"-" mapstructure:"token" sensitive:"true" usage:"Bearer token for the backend APIs."`
	Timeout         time.Duration   `json:"timeout" mapstructure:"timeout" usage:"Timeout of one backend request." validate:"required"`
	RetryCount      int             `json:"retryCount" mapstructure:"retry-count" usage:"Retries of one backend request on a temporary error." validate:"min=0,max=10"`
	CallbackBaseURL string          `json:"callbackBaseUrl" mapstructure:"callback-base-url" usage:"Public URL of the API, used for the backend callbacks." validate:"omitempty,url"`
	Render          EndpointConfig  `json:"render" mapstructure:"render"`
	Telephony       TelephonyConfig `json:"telephony" mapstructure:"telephony"`
	Billing         EndpointConfig  `json:"billing" mapstructure:"billing"`
}

type EndpointConfig struct {
	URL string `json:"url" mapstructure:"url" usage:"Base URL of the backend API." validate:"required,url"`
}

// TelephonyConfig configures the telephony client, calls fail fast while the circuit breaker is open.
type TelephonyConfig struct {
	URL             string        `json:"url" mapstructure:"url" usage:"Base URL of the telephony API." validate:"required,url"`
	BreakerFailures int           `json:"breakerFailures" mapstructure:"breaker-failures" usage:"Consecutive failures which open the circuit breaker." validate:"min=1,max=1000"`
	BreakerTimeout  time.Duration `json:"breakerTimeout" mapstructure:"breaker-timeout" usage:"Time after which the open circuit breaker lets a probe request through." validate:"required"`
}

func NewConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		RetryCount: 3,
		Render:     EndpointConfig{URL: "http://localhost:8101"},
		Telephony: TelephonyConfig{
			URL:             "http://localhost:8102",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Billing: EndpointConfig{URL: "http://localhost:8103"},
	}
}
