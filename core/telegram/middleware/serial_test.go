package middleware

import (
	"sync"
	"testing"
	"time"
)

func TestActorQueueKeepsPerActorOrder(t *testing.T) {
	q := NewActorQueue()

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 200; i++ {
		actor := int64(i % 3)
		n := i
		q.Submit(actor, func() {
			mu.Lock()
			got[actor] = append(got[actor], n)
			mu.Unlock()
		})
	}
	q.Close()

	for actor, seq := range got {
		for i := 1; i < len(seq); i++ {
			if seq[i] <= seq[i-1] {
				t.Fatalf("actor %d out of order: %v", actor, seq)
			}
		}
	}
	total := len(got[0]) + len(got[1]) + len(got[2])
	if total != 200 {
		t.Fatalf("ran %d jobs, want 200", total)
	}
	if q.Active() != 0 {
		t.Fatalf("lanes left after close: %d", q.Active())
	}
}

func TestActorQueueRunsActorsConcurrently(t *testing.T) {
	q := NewActorQueue()
	release := make(chan struct{})
	done := make(chan struct{})

	q.Submit(1, func() { <-release })
	q.Submit(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("actor 2 blocked behind actor 1")
	}
	close(release)
	q.Close()
}

func TestActorQueueSurvivesPanic(t *testing.T) {
	q := NewActorQueue()
	ran := make(chan struct{})
	q.Submit(7, func() { panic("boom") })
	q.Submit(7, func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("lane stopped after panic")
	}
	q.Close()
}

func TestActorQueueRejectsAfterClose(t *testing.T) {
	q := NewActorQueue()
	q.Close()
	if q.Submit(1, func() {}) {
		t.Fatalf("submit accepted after close")
	}
}
