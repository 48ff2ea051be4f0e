package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiterSweepsIdleBuckets(t *testing.T) {
	clock := now
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return clock }

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow(fmt.Sprintf("ip:10.0.0.%d", i)))
	}
	require.Len(t, l.buckets, 100)
	assert.False(t, l.allow("ip:10.0.0.1"))

	clock = clock.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("ip:10.0.0.1"))

	clock = clock.Add(limiterIdleTTL/2 + time.Second)
	assert.True(t, l.allow("ip:192.168.1.1"))
	assert.Len(t, l.buckets, 2)
	assert.Contains(t, l.buckets, "ip:10.0.0.1")
}

func TestClientLimiterCapsBuckets(t *testing.T) {
	clock := now
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return clock }
	l.maxBuckets = 3

	for i := 0; i < 10; i++ {
		clock = clock.Add(time.Second)
		assert.True(t, l.allow(fmt.Sprintf("key:%d", i)))
		assert.LessOrEqual(t, len(l.buckets), 3)
	}
	assert.Contains(t, l.buckets, "key:9")
	assert.NotContains(t, l.buckets, "key:0")
}
