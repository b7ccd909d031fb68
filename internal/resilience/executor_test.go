package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(breaker bool) Config {
	return Config{
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         2 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          breaker,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func TestExecute_RetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(fastRetry(false), nil, quiet())

	attempts := 0
	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Transient(errors.New("503 from classifier"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecute_GivesUpAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastRetry(false), nil, quiet())

	attempts := 0
	cause := errors.New("timeout")
	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		attempts++
		return Transient(cause)
	})
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, attempts)
}

func TestExecute_DoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastRetry(false), nil, quiet())

	attempts := 0
	permanent := errors.New("unsupported language")
	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestExecute_StopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(fastRetry(false), nil, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "classify", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestExecute_OpensCircuitAfterFailures(t *testing.T) {
	cfg := fastRetry(true)
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg, nil, quiet())

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "classify", func(context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom, "iteration %d", i)
	}

	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		t.Fatal("circuit should be open and must not call operation")
		return nil
	})
	assert.True(t, IsCircuitOpen(err))

	// Breakers are per operation.
	err = exec.Execute(context.Background(), "other", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestExecute_CancellationDoesNotTrip(t *testing.T) {
	cfg := fastRetry(true)
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg, nil, quiet())

	for i := 0; i < 4; i++ {
		err := exec.Execute(context.Background(), "classify", func(context.Context) error {
			return context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)
	}

	err := exec.Execute(context.Background(), "classify", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestExecute_NilCallback(t *testing.T) {
	exec := NewExecutor(Config{}, nil, nil)
	assert.Error(t, exec.Execute(context.Background(), "classify", nil))
}

func TestConfig_Normalize(t *testing.T) {
	got := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: time.Millisecond, RetryMultiplier: 0.5}.normalize()

	assert.Equal(t, DefaultConfig().RetryMaxAttempts, got.RetryMaxAttempts)
	assert.Equal(t, time.Second, got.RetryMaxBackoff)
	assert.Equal(t, DefaultConfig().RetryMultiplier, got.RetryMultiplier)
	assert.Equal(t, DefaultConfig().BreakerMinRequests, got.BreakerMinRequests)
}

func TestDefaultClassifier(t *testing.T) {
	assert.Equal(t, ErrorClassification{}, DefaultClassifier(context.Canceled))
	assert.True(t, DefaultClassifier(Transient(errors.New("x"))).Retryable)
	assert.True(t, DefaultClassifier(context.DeadlineExceeded).Retryable)
	assert.Equal(t, ErrorClassification{RecordFailure: true}, DefaultClassifier(errors.New("x")))
	assert.NoError(t, Transient(nil))
}
