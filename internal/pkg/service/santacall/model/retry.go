package model

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// Retryable tracks failed attempts of an operation and the time of the next attempt.
type Retryable struct {
	RetryAttempt  int
	RetryReason   string
	FirstFailedAt *time.Time
	LastFailedAt  *time.Time
	RetryAfter    *time.Time
}

// RetryBackoff determines the time in the future after which a failed operation will be retried.
// Unlike other backoffs, it does not generate a delay but a target time.
type RetryBackoff interface {
	RetryAt(failedAt time.Time, attempt int) (retryAt time.Time)
}

type BackoffConfig struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	RandomizationFactor float64
}

type retryBackoff struct {
	*backoff.ExponentialBackOff
}

func NewRetryBackoff(cfg BackoffConfig) RetryBackoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.Multiplier = cfg.Multiplier
	b.MaxInterval = cfg.MaxInterval
	b.RandomizationFactor = cfg.RandomizationFactor
	b.MaxElapsedTime = 0 // attempts are limited by the caller
	b.Reset()
	return &retryBackoff{ExponentialBackOff: b}
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     30 * time.Second,
		Multiplier:          2,
		MaxInterval:         10 * time.Minute,
		RandomizationFactor: 0.1,
	}
}

func (b *retryBackoff) RetryAt(failedAt time.Time, attempt int) time.Time {
	if attempt <= 0 {
		panic(errors.New("attempt must be greater than 0"))
	}

	interval := time.Duration(
		math.Min(
			float64(b.InitialInterval)*math.Pow(b.Multiplier, float64(attempt-1)),
			float64(b.MaxInterval),
		),
	)

	random := rand.New(rand.NewSource(failedAt.UnixNano()))                              //nolint:gosec // weak random generator is ok here
	randomFactor := 1 - b.RandomizationFactor + random.Float64()*2*b.RandomizationFactor // 1 ± RandomizationFactor

	return failedAt.Add(time.Duration(float64(interval) * randomFactor))
}

func (v *Retryable) Allowed(now time.Time) bool {
	return v.RetryAttempt == 0 || !v.RetryAfter.After(now)
}

func (v *Retryable) IncrementRetryAttempt(b RetryBackoff, failedAt time.Time, reason string) {
	v.RetryAttempt++
	v.RetryReason = reason
	if v.FirstFailedAt == nil {
		v.FirstFailedAt = &failedAt
	}
	v.LastFailedAt = &failedAt
	retryAfter := b.RetryAt(failedAt, v.RetryAttempt)
	v.RetryAfter = &retryAfter
}

func (v *Retryable) ResetRetry() {
	*v = Retryable{}
}
