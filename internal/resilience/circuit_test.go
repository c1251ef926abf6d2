package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = NewTransientError(errors.New("busy"), 503)

// testBreaker returns a breaker with a controllable clock.
func testBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: threshold, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail(cb *CircuitBreaker, err error) error {
	return cb.Execute(context.Background(), func(_ context.Context) error { return err })
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb, _ := testBreaker(3)
	var calls int
	require.NoError(t, cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := testBreaker(3)
	for range 3 {
		assert.ErrorIs(t, fail(cb, errBusy), errBusy)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := testBreaker(3)
	_ = fail(cb, errBusy)
	_ = fail(cb, errBusy)
	require.NoError(t, fail(cb, nil))
	_ = fail(cb, errBusy)
	_ = fail(cb, errBusy)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb, _ := testBreaker(2)
	notFound := &StatusError{Service: "overpass", StatusCode: 400}
	for range 5 {
		_ = fail(cb, notFound)
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_DeadlineTrips(t *testing.T) {
	cb, _ := testBreaker(2)
	_ = fail(cb, fmt.Errorf("overpass: request: %w", context.DeadlineExceeded))
	_ = fail(cb, context.DeadlineExceeded)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	cb, now := testBreaker(1)
	_ = fail(cb, errBusy)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A failed trial reopens for another full timeout.
	assert.ErrorIs(t, fail(cb, errBusy), errBusy)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, fail(cb, nil), ErrCircuitOpen)

	*now = now.Add(time.Minute)
	require.NoError(t, fail(cb, nil))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_SingleTrialInFlight(t *testing.T) {
	cb, now := testBreaker(1)
	_ = fail(cb, errBusy)
	*now = now.Add(time.Minute)

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		assert.ErrorIs(t, fail(cb, nil), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var seen []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			seen = append(seen, from.String()+">"+to.String())
		},
	})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	_ = fail(cb, errBusy)
	now = now.Add(time.Minute)
	_ = fail(cb, nil)
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, seen)
}

func TestExecuteVal_NilBreaker(t *testing.T) {
	v, err := ExecuteVal(context.Background(), nil, func(_ context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(3, 10)
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.ResetTimeout)

	def := FromCircuitConfig(0, -1)
	assert.Equal(t, DefaultCircuitBreakerConfig().FailureThreshold, def.FailureThreshold)
	assert.Equal(t, DefaultCircuitBreakerConfig().ResetTimeout, def.ResetTimeout)
}
