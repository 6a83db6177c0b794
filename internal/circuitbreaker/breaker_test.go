package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, 5, b.cfg.FailureThreshold)
	assert.Equal(t, 2, b.cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, b.cfg.OpenTimeout)
	require.NoError(t, b.Allow())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{FailureThreshold: 3})

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow(), "below threshold the breaker stays closed")

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := New(Config{FailureThreshold: 3})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	require.NoError(t, b.Allow())
}

func TestBreaker_TrialCallAdmittedAfterOpenTimeout(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 30 * time.Second})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow(), "timeout elapsed, the trial call goes through")
	require.NoError(t, b.Allow(), "half-open keeps admitting until a verdict")
}

func TestBreaker_ClosesAfterTrialSuccesses(t *testing.T) {
	var transitions []State
	b := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		OnStateChange:    func(_, to State) { transitions = append(transitions, to) },
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	b.RecordSuccess()

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
	require.NoError(t, b.Allow())
}

func TestBreaker_ReopensOnTrialFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 30 * time.Second})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// The failed trial restarted the timeout.
	now = now.Add(29 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_LateFailuresExtendOpenWindow(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 30 * time.Second})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(20 * time.Second)
	// An in-flight call from before the trip reports its failure late.
	b.RecordFailure()

	now = now.Add(25 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b := New(Config{FailureThreshold: 10, SuccessThreshold: 5})

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				switch id % 3 {
				case 0:
					b.RecordSuccess()
				case 1:
					b.RecordFailure()
				case 2:
					_ = b.Allow()
				}
			}
		}(i)
	}
	wg.Wait()
}
