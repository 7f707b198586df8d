package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy yields the delay before the given attempt (1-based).
type BackoffStrategy interface {
	NextBackoff(attempt int) time.Duration
}

// ConstantBackoff waits the same interval between attempts.
type ConstantBackoff struct {
	Interval time.Duration
}

func (b *ConstantBackoff) NextBackoff(int) time.Duration {
	return b.Interval
}

// ExponentialBackoff grows the delay geometrically with optional jitter.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NewDefaultExponentialBackoff returns the settings used by the outbox and
// notifier paths: 500ms doubling up to 30s with 10% jitter.
func NewDefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

func (b *ExponentialBackoff) NextBackoff(attempt int) time.Duration {
	backoff := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))

	if b.JitterFactor > 0 {
		backoff += rand.Float64() * b.JitterFactor * backoff
	}

	if max := float64(b.MaxInterval); backoff > max {
		backoff = max
	}

	return time.Duration(backoff)
}
