package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute, HalfOpenProbes: 1})
	b.now = func() time.Time { return now }

	require.NoError(t, b.Allow())
	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute})
	b.now = func() time.Time { return now }

	b.Record(false)
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}
