package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/utils"
)

func newTestRecovery() (*ErrorRecoveryManager, *[]time.Duration) {
	erm := NewErrorRecoveryManager(quietLogger())
	var waits []time.Duration
	erm.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return erm, &waits
}

func TestNewErrorRecoveryManager_DefaultPolicies(t *testing.T) {
	erm := NewErrorRecoveryManager(nil)

	for _, name := range []string{PolicyDatabase, PolicyRedis, PolicyTelegram} {
		assert.NotNil(t, erm.retryPolicies[name], name)
	}
}

func TestExecuteWithRetry_RecoversAfterTransientErrors(t *testing.T) {
	erm, waits := newTestRecovery()
	erm.RegisterRetryPolicy("flaky", &RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      15 * time.Millisecond,
		BackoffFactor: 2,
	})

	calls := 0
	err := erm.ExecuteWithRetry(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, *waits)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	erm, waits := newTestRecovery()
	erm.RegisterRetryPolicy("down", &RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})

	calls := 0
	boom := errors.New("timeout")
	err := erm.ExecuteWithRetry(context.Background(), "down", func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
}

func TestExecuteWithRetry_PermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", fmt.Errorf("lookup: %w", database.ErrNotFound)},
		{"validation", utils.NewValidationError("bad date")},
		{"circuit open", ErrCircuitOpen},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			erm, waits := newTestRecovery()
			calls := 0
			err := erm.ExecuteWithRetry(context.Background(), PolicyDatabase, func() error {
				calls++
				return tt.err
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, *waits)
		})
	}
}

func TestExecuteWithRetry_CancelledContext(t *testing.T) {
	erm, _ := newTestRecovery()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := erm.ExecuteWithRetry(ctx, PolicyRedis, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestExecuteWithRetry_UnknownPolicyUsesFallback(t *testing.T) {
	erm, waits := newTestRecovery()

	calls := 0
	err := erm.ExecuteWithRetry(context.Background(), "unregistered", func() error {
		calls++
		return errors.New("nope")
	})

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Len(t, *waits, 3)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestCalculateDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, base, calculateDelay(base, &RetryPolicy{}))

	for i := 0; i < 100; i++ {
		d := calculateDelay(base, &RetryPolicy{JitterEnabled: true})
		assert.GreaterOrEqual(t, d, 87*time.Millisecond)
		assert.LessOrEqual(t, d, 113*time.Millisecond)
	}
}

func TestDatabasePolicy(t *testing.T) {
	p := DatabasePolicy(3, 500*time.Millisecond)
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 4*time.Second, p.MaxDelay)

	assert.Equal(t, 0, DatabasePolicy(-1, 0).MaxRetries)
	assert.Equal(t, 2*time.Second, DatabasePolicy(1, 10*time.Millisecond).MaxDelay)
}

func TestRegisterCircuitBreaker(t *testing.T) {
	erm := NewErrorRecoveryManager(quietLogger())
	cb := erm.RegisterCircuitBreaker(PolicyTelegram, CircuitBreakerConfig{FailureThreshold: 1})

	assert.Same(t, cb, erm.CircuitBreaker(PolicyTelegram))
	assert.Nil(t, erm.CircuitBreaker("missing"))

	_ = cb.Execute(context.Background(), fail)
	status := erm.GetCircuitBreakerStatus()
	assert.Equal(t, int64(1), status[PolicyTelegram].FailedRequests)
}
