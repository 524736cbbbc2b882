package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcomes is a compact script: 'f' records a failure, 's' a success.
func replay(b *Breaker, outcomes string) {
	for _, o := range outcomes {
		if o == 'f' {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		recovers int
		script   string
		want     State
	}{
		{name: "fresh breaker is closed", failures: 3, recovers: 2, script: "", want: StateClosed},
		{name: "below threshold stays closed", failures: 3, recovers: 2, script: "ff", want: StateClosed},
		{name: "threshold opens", failures: 3, recovers: 2, script: "fff", want: StateOpen},
		{name: "success resets failure run", failures: 3, recovers: 2, script: "ffsff", want: StateClosed},
		{name: "one probe is not enough", failures: 1, recovers: 2, script: "fs", want: StateOpen},
		{name: "probes close it", failures: 1, recovers: 2, script: "fss", want: StateClosed},
		{name: "failed probe restarts recovery", failures: 1, recovers: 2, script: "fsfs", want: StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("geocode-cache", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.recovers))
			replay(b, tt.script)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerReportsChanges(t *testing.T) {
	b := New("geocode-cache", WithFailureThreshold(2), WithSuccessThreshold(1))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "open breaker keeps routing to the fallback")
	assert.False(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerDefaultsAndReset(t *testing.T) {
	b := New("geocode-cache", WithFailureThreshold(0))
	assert.Equal(t, "geocode-cache", b.Name())

	replay(b, "ffff")
	require.False(t, b.IsOpen(), "non-positive option keeps the default of five")
	replay(b, "f")
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("geocode-cache", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.True(t, b.IsOpen())
}
