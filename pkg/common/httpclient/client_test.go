package httpclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	final := errors.New("still down")
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return final
	})
	if !errors.Is(err, final) {
		t.Errorf("err = %v, want %v", err, final)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return errors.New("never seen")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after pre-cancelled context", calls)
	}
}

func TestRetrySingleAttemptRunsOnce(t *testing.T) {
	calls := 0
	if err := Retry(context.Background(), 1, time.Millisecond, func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestIsRetriable(t *testing.T) {
	var netErr net.Error = timeoutErr{}
	if !IsRetriable(netErr) {
		t.Error("timeout not retriable")
	}
	if !IsRetriable(context.DeadlineExceeded) {
		t.Error("deadline exceeded not retriable")
	}
	if IsRetriable(errors.New("connection refused")) {
		t.Error("plain error treated as retriable")
	}
}
