package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_ConsumesCapacity(t *testing.T) {
	tb := NewTokenBucket(3, 0.0001)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket is empty")
}

func TestTokenBucket_AllowN(t *testing.T) {
	tb := NewTokenBucket(5, 0.0001)

	assert.True(t, tb.AllowN(4))
	assert.False(t, tb.AllowN(2))
	assert.True(t, tb.AllowN(1))
}

func TestTokenBucket_Refills(t *testing.T) {
	// 100 tokens/second fills an empty 1-token bucket within a few
	// milliseconds.
	tb := NewTokenBucket(1, 100)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestTokenBucket_CapsAtCapacity(t *testing.T) {
	tb := NewTokenBucket(2, 1000)

	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, tb.Available(), 2.0)
}

func TestIPLimiter_IndependentBuckets(t *testing.T) {
	l := NewIPLimiter(1, 0.0001, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "first ip exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "second ip unaffected")

	assert.Equal(t, 2, l.Size())
}
