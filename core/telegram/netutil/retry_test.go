package netutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"timeout", timeoutErr{}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url wrapped", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}, true},
		{"url permanent", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: errors.New("tls")}, false},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBackoff(t *testing.T) {
	if got := Backoff(timeoutErr{}, 100*time.Millisecond, 3); got != 300*time.Millisecond {
		t.Fatalf("Backoff() = %v, want 300ms", got)
	}
	if got := Backoff(tele.FloodError{RetryAfter: 2}, 100*time.Millisecond, 1); got != 2*time.Second {
		t.Fatalf("Backoff() = %v, want 2s", got)
	}
	if got := Backoff(tele.FloodError{RetryAfter: 0}, time.Second, 2); got != 2*time.Second {
		t.Fatalf("Backoff() = %v, want 2s", got)
	}
}
