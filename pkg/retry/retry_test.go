package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boloapp/order-service/pkg/logger"
)

func fastConfig(maxAttempts int, retryableErrors ...error) *Config {
	return &Config{
		MaxAttempts:     maxAttempts,
		Backoff:         &ConstantBackoff{Interval: time.Millisecond},
		Logger:          logger.Nop(),
		RetryableErrors: retryableErrors,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, fastConfig(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return fatal
	}, fastConfig(5, transient))

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryableListMatchesWrapped(t *testing.T) {
	transient := errors.New("transient")

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.Join(errors.New("context"), transient)
		}
		return nil
	}, fastConfig(5, transient))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("boom")
	}, fastConfig(3))

	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestExponentialBackoff_Growth(t *testing.T) {
	b := &ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}

	first := b.NextBackoff(1)
	second := b.NextBackoff(2)
	fourth := b.NextBackoff(4)

	assert.Equal(t, 100*time.Millisecond, first)
	assert.Equal(t, 200*time.Millisecond, second)
	// Capped at MaxInterval.
	assert.LessOrEqual(t, fourth, time.Second)
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	b := &ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		JitterFactor:    0.5,
	}

	for i := 0; i < 20; i++ {
		d := b.NextBackoff(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDefaultExponentialBackoff(t *testing.T) {
	b := NewDefaultExponentialBackoff()
	assert.Positive(t, b.NextBackoff(1))
}
