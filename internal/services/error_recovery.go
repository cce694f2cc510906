package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// Retry policy names used across the service layer.
const (
	PolicyDatabase = "database_operation"
	PolicyRedis    = "redis_operation"
	PolicyTelegram = "telegram_send"
)

// ErrorRecoveryManager retries I/O under named policies and owns the
// circuit breakers of outbound integrations.
type ErrorRecoveryManager struct {
	logger          *logrus.Logger
	circuitBreakers map[string]*CircuitBreaker
	retryPolicies   map[string]*RetryPolicy
	mu              sync.RWMutex
	sleep           func(context.Context, time.Duration) error
}

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// NewErrorRecoveryManager creates a manager with DefaultRetryPolicies.
func NewErrorRecoveryManager(logger *logrus.Logger) *ErrorRecoveryManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	erm := &ErrorRecoveryManager{
		logger:          logger,
		circuitBreakers: make(map[string]*CircuitBreaker),
		retryPolicies:   make(map[string]*RetryPolicy),
		sleep:           sleepContext,
	}
	for name, policy := range DefaultRetryPolicies() {
		erm.retryPolicies[name] = policy
	}
	return erm
}

// RegisterCircuitBreaker registers a circuit breaker for a specific operation
func (erm *ErrorRecoveryManager) RegisterCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	cb := NewCircuitBreaker(name, config, erm.logger)
	erm.circuitBreakers[name] = cb
	return cb
}

// CircuitBreaker returns the breaker registered under name, or nil.
func (erm *ErrorRecoveryManager) CircuitBreaker(name string) *CircuitBreaker {
	erm.mu.RLock()
	defer erm.mu.RUnlock()
	return erm.circuitBreakers[name]
}

// RegisterRetryPolicy registers a retry policy for a specific operation
func (erm *ErrorRecoveryManager) RegisterRetryPolicy(name string, policy *RetryPolicy) {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	erm.retryPolicies[name] = policy
}

// GetCircuitBreakerStatus returns the status of all circuit breakers
func (erm *ErrorRecoveryManager) GetCircuitBreakerStatus() map[string]CircuitBreakerStats {
	erm.mu.RLock()
	defer erm.mu.RUnlock()

	status := make(map[string]CircuitBreakerStats, len(erm.circuitBreakers))
	for name, cb := range erm.circuitBreakers {
		status[name] = cb.GetStats()
	}
	return status
}

// ExecuteWithRetry runs operation under the named policy. Permanent errors
// (not found, validation, cancellation, an open circuit) are returned at
// once. Waiting between attempts honours ctx.
func (erm *ErrorRecoveryManager) ExecuteWithRetry(
	ctx context.Context,
	operationName string,
	operation func() error,
) error {
	start := time.Now()

	erm.mu.RLock()
	retryPolicy := erm.retryPolicies[operationName]
	erm.mu.RUnlock()

	if retryPolicy == nil {
		retryPolicy = &RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		}
	}

	delay := retryPolicy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= retryPolicy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				erm.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err
		if isPermanent(err) || attempt == retryPolicy.MaxRetries {
			break
		}

		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     delay,
		}).Warn("Operation failed, retrying")

		if err := erm.sleep(ctx, calculateDelay(delay, retryPolicy)); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * retryPolicy.BackoffFactor)
		if delay > retryPolicy.MaxDelay {
			delay = retryPolicy.MaxDelay
		}
	}

	if !isPermanent(lastErr) {
		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"duration":  time.Since(start),
			"error":     lastErr.Error(),
		}).Error("Operation failed after all retries")
	}
	return lastErr
}

func isPermanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, ErrCircuitOpen) ||
		utils.IsValidationError(err)
}

// calculateDelay adds up to ±12.5% jitter when the policy asks for it.
func calculateDelay(baseDelay time.Duration, policy *RetryPolicy) time.Duration {
	if !policy.JitterEnabled || baseDelay <= 0 {
		return baseDelay
	}
	jitter := time.Duration(float64(baseDelay) * 0.25 * (rand.Float64() - 0.5))
	return baseDelay + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DatabasePolicy builds the database retry policy from the configured retry
// count and initial backoff.
func DatabasePolicy(maxRetries int, backoff time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:    max(maxRetries, 0),
		InitialDelay:  backoff,
		MaxDelay:      max(backoff*8, 2*time.Second),
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// DefaultRetryPolicies returns default retry policies for common operations
func DefaultRetryPolicies() map[string]*RetryPolicy {
	return map[string]*RetryPolicy{
		PolicyTelegram: {
			MaxRetries:    3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		PolicyDatabase: {
			MaxRetries:    5,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
		PolicyRedis: {
			MaxRetries:    3,
			InitialDelay:  25 * time.Millisecond,
			MaxDelay:      1 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: false,
		},
	}
}
