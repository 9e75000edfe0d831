package videojob

import (
	"time"

	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
)

type Config struct {
	MaxAttempts                int           `json:"maxAttempts" mapstructure:"max-attempts" usage:"Maximum number of render attempts of one video job." validate:"min=1,max=20"`
	Timeout                    time.Duration `json:"timeout" mapstructure:"timeout" usage:"Render attempt without a callback is considered failed after the timeout. Zero disables the timeout." validate:"min=0"`
	BackoffInitialInterval     time.Duration `json:"backoffInitialInterval" mapstructure:"backoff-initial-interval" usage:"Delay before the first retry." validate:"required"`
	BackoffMultiplier          float64       `json:"backoffMultiplier" mapstructure:"backoff-multiplier" usage:"Multiplier of the delay between retries." validate:"min=1"`
	BackoffMaxInterval         time.Duration `json:"backoffMaxInterval" mapstructure:"backoff-max-interval" usage:"Maximum delay between retries." validate:"required,gtefield=BackoffInitialInterval"`
	BackoffRandomizationFactor float64       `json:"backoffRandomizationFactor" mapstructure:"backoff-randomization-factor" usage:"Randomization of the delay between retries, 0.1 means ±10%." validate:"min=0,max=1"`
}

func NewConfig() Config {
	b := model.DefaultBackoffConfig()
	return Config{
		MaxAttempts:                3,
		Timeout:                    30 * time.Minute,
		BackoffInitialInterval:     b.InitialInterval,
		BackoffMultiplier:          b.Multiplier,
		BackoffMaxInterval:         b.MaxInterval,
		BackoffRandomizationFactor: b.RandomizationFactor,
	}
}

func (c Config) Backoff() model.RetryBackoff {
	return model.NewRetryBackoff(model.BackoffConfig{
		InitialInterval:     c.BackoffInitialInterval,
		Multiplier:          c.BackoffMultiplier,
		MaxInterval:         c.BackoffMaxInterval,
		RandomizationFactor: c.BackoffRandomizationFactor,
	})
}
