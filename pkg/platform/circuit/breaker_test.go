package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one recorded call result in a scripted sequence.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func record(b *Breaker, seq ...outcome) (last StateChange) {
	for _, o := range seq {
		if o == ok {
			_, last = b.RecordSuccess()
		} else {
			_, last = b.RecordFailure()
		}
	}
	return last
}

func TestBreaker_Sequences(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		recovery int
		seq      []outcome
		wantOpen bool
	}{
		{name: "fresh breaker is closed", failures: 3, recovery: 1, wantOpen: false},
		{name: "below failure threshold stays closed", failures: 3, recovery: 1, seq: []outcome{fail, fail}, wantOpen: false},
		{name: "consecutive failures open", failures: 3, recovery: 1, seq: []outcome{fail, fail, fail}, wantOpen: true},
		{name: "success while closed resets the failure run", failures: 3, recovery: 1, seq: []outcome{fail, fail, ok, fail, fail}, wantOpen: false},
		{name: "partial recovery keeps it open", failures: 1, recovery: 2, seq: []outcome{fail, ok}, wantOpen: true},
		{name: "full recovery closes", failures: 1, recovery: 2, seq: []outcome{fail, ok, ok}, wantOpen: false},
		{name: "failure during recovery restarts it", failures: 1, recovery: 3, seq: []outcome{fail, ok, ok, fail, ok, ok}, wantOpen: true},
		{name: "restarted recovery completes", failures: 1, recovery: 3, seq: []outcome{fail, ok, ok, fail, ok, ok, ok}, wantOpen: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("treasury", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.recovery))
			record(b, tt.seq...)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreaker_ReportsTransitionsOnce(t *testing.T) {
	b := New("treasury", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "treasury", b.Name())
	assert.Equal(t, "closed", b.State().String())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreaker_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("open without cooldown refuses calls", func(t *testing.T) {
		b := New("treasury", WithFailureThreshold(1), WithClock(clock))
		require.True(t, b.Allow())
		record(b, fail)
		assert.False(t, b.Allow())
	})

	t.Run("cooldown admits a probe once elapsed", func(t *testing.T) {
		b := New("treasury", WithFailureThreshold(1), WithCooldown(30*time.Second), WithClock(clock))
		record(b, fail)

		now = now.Add(29 * time.Second)
		assert.False(t, b.Allow())

		now = now.Add(time.Second)
		assert.True(t, b.Allow())
	})

	t.Run("failed probe restarts the cooldown", func(t *testing.T) {
		b := New("treasury", WithFailureThreshold(1), WithCooldown(30*time.Second), WithClock(clock))
		record(b, fail)
		now = now.Add(30 * time.Second)
		require.True(t, b.Allow())

		record(b, fail)
		assert.False(t, b.Allow())
	})
}

func TestBreaker_Reset(t *testing.T) {
	b := New("treasury", WithFailureThreshold(1))
	record(b, fail)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
