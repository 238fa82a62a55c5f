package notify

import (
	"context"
	"errors"
	"sync"
)

// Sent is one notification captured by a Recorder.
type Sent struct {
	To      int64
	Text    string
	Media   *Media
	Actions []Action
}

// ErrUnreachable is returned by a Recorder for recipients marked unreachable.
var ErrUnreachable = errors.New("recipient unreachable")

// Recorder is an in-memory Gateway for tests and dry runs.
type Recorder struct {
	mu          sync.Mutex
	sent        []Sent
	unreachable map[int64]bool
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{unreachable: make(map[int64]bool)}
}

// Unreachable makes every send to id fail with a DeliveryError.
func (r *Recorder) Unreachable(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable[id] = true
}

// SendText records a text message.
func (r *Recorder) SendText(_ context.Context, to int64, text string, actions ...Action) error {
	return r.record(Sent{To: to, Text: text, Actions: actions}, "text")
}

// SendMedia records a media message.
func (r *Recorder) SendMedia(_ context.Context, to int64, media Media, caption string, actions ...Action) error {
	m := media
	return r.record(Sent{To: to, Text: caption, Media: &m, Actions: actions}, string(media.Kind))
}

func (r *Recorder) record(s Sent, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable[s.To] {
		return &DeliveryError{To: s.To, Op: op, Err: ErrUnreachable}
	}
	r.sent = append(r.sent, s)
	return nil
}

// To returns everything delivered to id, in order.
func (r *Recorder) To(id int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.To == id {
			out = append(out, s)
		}
	}
	return out
}

// All returns every delivered notification.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
