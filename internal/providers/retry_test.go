package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      attempts,
		TransportDelay:   time.Millisecond,
		ServerErrorDelay: time.Millisecond,
	}
}

func TestRetryPolicy_TransientExhausts(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		calls := 0
		err := fastPolicy(n).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return &TransportError{Op: "test", Err: errors.New("connection refused")}
		})
		if calls != n {
			t.Fatalf("expected %d attempts, got %d", n, calls)
		}
		var exhausted *RetriesExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected RetriesExhaustedError, got %T: %v", err, err)
		}
		if exhausted.Attempts != n {
			t.Fatalf("expected Attempts=%d, got %d", n, exhausted.Attempts)
		}
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Fatal("expected errors.Is(err, ErrRetriesExhausted)")
		}
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatal("expected last error to unwrap to TransportError")
		}
	}
}

func TestRetryPolicy_ClientErrorIsFatal(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests} {
		calls := 0
		err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return &StatusError{Provider: "test", StatusCode: code}
		})
		if calls != 1 {
			t.Fatalf("status %d: expected 1 attempt, got %d", code, calls)
		}
		if errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("status %d: fatal error must not report exhaustion", code)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != code {
			t.Fatalf("status %d: unexpected error %v", code, err)
		}
	}
}

func TestRetryPolicy_MalformedIsFatal(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrMalformedResponse
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryPolicy_RecoversAfterServerError(t *testing.T) {
	v, attempts, err := RetryCount(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		return "", nil
	})
	if err != nil || attempts != 1 || v != "" {
		t.Fatalf("unexpected result: %q %d %v", v, attempts, err)
	}

	calls := 0
	v, attempts, err = RetryCount(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Provider: "test", StatusCode: http.StatusBadGateway}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || attempts != 3 {
		t.Fatalf("expected ok after 3 attempts, got %q after %d", v, attempts)
	}
}

func TestRetryPolicy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("expected no attempts, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryPolicy_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, TransportDelay: time.Hour, ServerErrorDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(ctx context.Context) error {
			calls++
			return &TransportError{Op: "test", Err: errors.New("timeout")}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Fatalf("expected 1 attempt before cancel, got %d", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("policy did not observe cancellation")
	}
}

func TestRetryPolicy_DelayByClass(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, TransportDelay: 10 * time.Second, ServerErrorDelay: 5 * time.Second}
	if d := p.delayFor(&TransportError{Err: errors.New("x")}); d != 10*time.Second {
		t.Fatalf("transport delay = %v", d)
	}
	if d := p.delayFor(&StatusError{StatusCode: 503}); d != 5*time.Second {
		t.Fatalf("server error delay = %v", d)
	}
}

func TestRetryPolicy_HonorsRetryAfter(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, TransportDelay: 10 * time.Second, ServerErrorDelay: 5 * time.Second}
	tests := []struct {
		name       string
		retryAfter time.Duration
		want       time.Duration
	}{
		{name: "absent", retryAfter: 0, want: 5 * time.Second},
		{name: "shorter than policy", retryAfter: 2 * time.Second, want: 5 * time.Second},
		{name: "longer than policy", retryAfter: 30 * time.Second, want: 30 * time.Second},
		{name: "capped", retryAfter: time.Hour, want: MaxRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("synthesize: %w", &StatusError{StatusCode: 503, RetryAfter: tt.retryAfter})
			if d := p.delayFor(err); d != tt.want {
				t.Errorf("delayFor() = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestRetryPolicy_WaitsForRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{Provider: "test", StatusCode: 503, RetryAfter: time.Second}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected to wait out Retry-After, took %s", elapsed)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&TransportError{Err: errors.New("refused")}, true},
		{&StatusError{StatusCode: 500}, true},
		{&StatusError{StatusCode: 503}, true},
		{&StatusError{StatusCode: 404}, false},
		{&StatusError{StatusCode: 429}, false},
		{ErrMalformedResponse, false},
		{context.Canceled, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
