package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerGrantsLock(t *testing.T) {
	var l *Locker
	token, ok, err := l.TryLock(context.Background(), "window:create:1:2026-W20", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, l.Release(context.Background(), "window:create:1:2026-W20", token))
}

func TestWithLockRunsFnWithoutRedis(t *testing.T) {
	var l *Locker
	called := false
	acquired, err := l.WithLock(context.Background(), "job:rate_sync", time.Minute, func(context.Context) error {
		called = true
		return errors.New("boom")
	})
	assert.True(t, acquired)
	assert.EqualError(t, err, "boom")
	assert.True(t, called)
}

func TestNilWriteLimiterAllows(t *testing.T) {
	limiter := NewWriteLimiter(nil, 5, 10)
	assert.Nil(t, limiter)
	res, err := limiter.AllowOrg(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
}
