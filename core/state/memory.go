package state

import (
	"sort"
	"sync"
	"time"
)

// DefaultTTL bounds how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// Option configures a memory store.
type Option func(*memoryStore)

// WithTTL overrides DefaultTTL. A non-positive value disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *memoryStore) { m.ttl = ttl }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *memoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory Store. Sessions do not survive a restart.
func NewMemoryStore(opts ...Option) Store {
	m := &memoryStore{
		sessions: make(map[int64]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *memoryStore) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

// Get returns a copy of the actor's session.
func (m *memoryStore) Get(actorID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[actorID]
	if !ok || m.expired(sess, m.now()) {
		return nil, false
	}
	return sess.clone(), true
}

// Start opens a fresh session, returning the one it displaced if any.
func (m *memoryStore) Start(actorID int64, flow Flow, step Step) (*Session, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var replaced *Session
	if prev, ok := m.sessions[actorID]; ok && !m.expired(prev, now) {
		replaced = prev
	}
	sess := &Session{
		ActorID:   actorID,
		Flow:      flow,
		Step:      step,
		Fields:    make(map[string]string),
		StartedAt: now,
		UpdatedAt: now,
	}
	m.sessions[actorID] = sess
	return sess.clone(), replaced
}

// Save writes back step and fields when s is still the actor's current session.
func (m *memoryStore) Save(s *Session) error {
	if s == nil {
		return ErrStale
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cur, ok := m.sessions[s.ActorID]
	if !ok || cur.Flow != s.Flow || !cur.StartedAt.Equal(s.StartedAt) || m.expired(cur, now) {
		return ErrStale
	}
	next := s.clone()
	next.UpdatedAt = now
	m.sessions[s.ActorID] = next
	s.UpdatedAt = now
	return nil
}

// Clear removes the session of an actor.
func (m *memoryStore) Clear(actorID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[actorID]
	if !ok {
		return nil, false
	}
	delete(m.sessions, actorID)
	if m.expired(sess, m.now()) {
		return nil, false
	}
	return sess, true
}

// Expire sweeps idle sessions, oldest first.
func (m *memoryStore) Expire() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []*Session
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			out = append(out, sess)
			delete(m.sessions, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}

// Len reports the number of held sessions, expired ones included until swept.
func (m *memoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
