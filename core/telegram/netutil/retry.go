package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether a failed Bot API call is worth retrying.
// Dial and timeout failures from net/http qualify, and so does a 429 flood
// response, whose wait time is reported by FloodWait.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := FloodWait(err); ok {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// FloodWait extracts the server-imposed pause from a flood error.
func FloodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}

// Backoff picks the delay before the next attempt: the linear step for the
// attempt number, stretched to the flood wait when Telegram asked for one.
func Backoff(err error, step time.Duration, attempt int) time.Duration {
	delay := step * time.Duration(attempt)
	if wait, ok := FloodWait(err); ok && wait > delay {
		return wait
	}
	return delay
}
