package state

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStartSaveGet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now), WithTTL(time.Minute))

	sess, replaced := store.Start(7, "add_item", "select_language")
	if replaced != nil {
		t.Fatalf("unexpected replaced session: %+v", replaced)
	}
	sess.SetField("language", "primary")
	sess.Step = "enter_title"
	if err := store.Save(sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := store.Get(7)
	if !ok {
		t.Fatalf("session missing")
	}
	if got.Step != "enter_title" || got.Field("language") != "primary" {
		t.Fatalf("unexpected session: %+v", got)
	}

	got.SetField("language", "secondary")
	again, _ := store.Get(7)
	if again.Field("language") != "primary" {
		t.Fatalf("store leaked a mutable reference")
	}
}

func TestStartReplacesPreviousFlow(t *testing.T) {
	store := NewMemoryStore()
	first, _ := store.Start(1, "add_item", "enter_title")
	first.SetField("title", "Atlas")
	if err := store.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, replaced := store.Start(1, "set_payment", "await_value")
	if replaced == nil || replaced.Flow != "add_item" || replaced.Field("title") != "Atlas" {
		t.Fatalf("expected add_item to be reported as replaced, got %+v", replaced)
	}
	if err := store.Save(first); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for the replaced session, got %v", err)
	}
	cur, _ := store.Get(1)
	if cur.Flow != "set_payment" {
		t.Fatalf("unexpected flow %q", cur.Flow)
	}
}

func TestSessionsArePerActor(t *testing.T) {
	store := NewMemoryStore()
	a, _ := store.Start(1, "add_item", "enter_title")
	b, _ := store.Start(2, "add_item", "enter_title")
	a.SetField("title", "A")
	b.SetField("title", "B")
	_ = store.Save(a)
	_ = store.Save(b)

	if _, ok := store.Clear(1); !ok {
		t.Fatalf("clear failed")
	}
	got, ok := store.Get(2)
	if !ok || got.Field("title") != "B" {
		t.Fatalf("actor 2 affected by actor 1: %+v", got)
	}
	if store.Len() != 1 {
		t.Fatalf("len=%d", store.Len())
	}
}

func TestExpire(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	store := NewMemoryStore(WithClock(clock.Now), WithTTL(10*time.Minute))

	store.Start(1, "add_item", "enter_title")
	clock.Advance(6 * time.Minute)
	store.Start(2, "set_payment", "await_value")
	clock.Advance(5 * time.Minute)

	if _, ok := store.Get(1); ok {
		t.Fatalf("expected actor 1 session to read as expired")
	}
	swept := store.Expire()
	if len(swept) != 1 || swept[0].ActorID != 1 {
		t.Fatalf("unexpected sweep: %+v", swept)
	}
	if _, ok := store.Get(2); !ok {
		t.Fatalf("actor 2 session should still be active")
	}

	sess, _ := store.Get(2)
	clock.Advance(11 * time.Minute)
	if err := store.Save(sess); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after expiry, got %v", err)
	}
	_, replaced := store.Start(2, "add_item", "select_language")
	if replaced != nil {
		t.Fatalf("expired session must not be reported as replaced")
	}
}
