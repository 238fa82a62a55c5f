package state

import (
	"errors"
	"time"
)

// Flow names a multi-step conversation.
type Flow string

// Step identifies a state inside a Flow.
type Step string

// ErrStale is returned by Save when the session was replaced, cleared or expired in the meantime.
var ErrStale = errors.New("state: session is no longer active")

// Session stores the progress of one actor through one flow.
type Session struct {
	ActorID   int64
	Flow      Flow
	Step      Step
	Fields    map[string]string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Field returns a collected value or "".
func (s *Session) Field(key string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// SetField records a collected value.
func (s *Session) SetField(key, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[key] = value
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// Store is a keyed actor -> session table. Every returned *Session is a copy; changes become
// visible only through Save.
type Store interface {
	// Get returns the active session of an actor. Idle sessions past the TTL are reported absent.
	Get(actorID int64) (*Session, bool)
	// Start opens a new session at the given step. A session already held by the actor is
	// discarded and returned as replaced so the caller can report the transition.
	Start(actorID int64, flow Flow, step Step) (started, replaced *Session)
	// Save persists the step and fields of a session obtained from Get or Start.
	Save(s *Session) error
	// Clear destroys the actor's session and returns it.
	Clear(actorID int64) (*Session, bool)
	// Expire removes every session idle for longer than the TTL and returns them.
	Expire() []*Session
	// Len reports the number of held sessions.
	Len() int
}
