package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errTemp = errors.New("temporary")

func retryTemp(err error) ErrorClassification {
	return ErrorClassification{
		Retryable:     errors.Is(err, errTemp),
		RecordFailure: true,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, retryTemp)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteAnnotatesExhaustedError(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: 2, BaseDelay: time.Millisecond})

	attempts := 0
	err := exec.Execute(context.Background(), "ai.tags", func(context.Context) error {
		attempts++
		return errTemp
	}, retryTemp)
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Operation != "ai.tags" || exhausted.Attempts != 3 {
		t.Fatalf("unexpected annotation: %+v", exhausted)
	}
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
}

func TestExecuteZeroRetriesCallsOnce(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: 0, BaseDelay: time.Millisecond})

	attempts := 0
	_ = exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, retryTemp)
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: 3, BaseDelay: time.Millisecond})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsWaitingWhenContextCancelled(t *testing.T) {
	exec := NewExecutor(Config{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- exec.Execute(ctx, "op", func(context.Context) error {
			attempts++
			return errTemp
		}, retryTemp)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected last error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("executor did not stop on cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDelayStrategies(t *testing.T) {
	base := Config{BaseDelay: 1000 * time.Millisecond, MaxDelay: 5 * time.Second}

	linear := base
	linear.Backoff = BackoffLinear
	exponential := base
	exponential.Backoff = BackoffExponential
	fixed := base
	fixed.Backoff = BackoffFixed

	cases := []struct {
		cfg   Config
		retry int
		want  time.Duration
	}{
		{linear, 1, time.Second},
		{linear, 2, 2 * time.Second},
		{linear, 9, 5 * time.Second},
		{exponential, 1, time.Second},
		{exponential, 3, 4 * time.Second},
		{exponential, 4, 5 * time.Second},
		{fixed, 4, time.Second},
	}
	for _, tc := range cases {
		if got := tc.cfg.Delay(tc.retry); got != tc.want {
			t.Fatalf("%s retry %d: got %v, want %v", tc.cfg.Backoff, tc.retry, got, tc.want)
		}
	}
}

func TestParseBackoffDefaultsToLinear(t *testing.T) {
	if ParseBackoff("EXPONENTIAL") != BackoffExponential {
		t.Fatalf("expected exponential")
	}
	if ParseBackoff("") != BackoffLinear {
		t.Fatalf("expected linear default")
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		MaxRetries:              0,
		BaseDelay:               1 * time.Millisecond,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}
