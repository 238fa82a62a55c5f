package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond, MaxDuration: time.Second})
	t.Cleanup(d.Close)
	return d
}

func TestDoReturnsPermanentErrorWithoutRetry(t *testing.T) {
	d := newTestDispatcher(t)
	want := errors.New("bad request")
	var calls atomic.Int32

	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Do() error = %v, want %v", err, want)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount() = %d, want 1", d.ErrorCount())
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestEnqueueRunsAndRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	done := make(chan struct{})
	if err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued job did not run")
	}

	d.Close()
	if err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue() after close = %v, want ErrQueueClosed", err)
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	got := sanitizeErrorMessage(errors.New("Post https://api.telegram.org/bot123:ABC-def/sendMessage: timeout"))
	want := "Post https://api.telegram.org/bot<redacted>/sendMessage: timeout"
	if got != want {
		t.Fatalf("sanitizeErrorMessage() = %q, want %q", got, want)
	}
}
