package repository

import (
	"fmt"
	"sync"
	"testing"

	"MT5Stream/internal/domain/repository"
)

type stubSubscriber struct{ id string }

func (s *stubSubscriber) ID() string            { return s.id }
func (s *stubSubscriber) Deliver(_ []byte) bool { return true }

func TestSubscriberRegistryAddRemove(t *testing.T) {
	r := NewSubscriberRegistry()
	a := &stubSubscriber{id: "a"}

	if !r.Add(a) {
		t.Fatalf("first add must register")
	}
	if r.Add(a) {
		t.Fatalf("second add of the same subscriber must be rejected")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", r.Len())
	}
	if got, ok := r.Lookup("a"); !ok || got != a {
		t.Fatalf("lookup returned %v, %v", got, ok)
	}
	if !r.Remove(a) {
		t.Fatalf("remove must report the subscriber was present")
	}
	if r.Remove(a) {
		t.Fatalf("removing an absent subscriber must be a no-op")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
	if _, ok := r.Lookup("a"); ok {
		t.Fatalf("lookup must miss after remove")
	}
}

func TestSubscriberRegistryForEach(t *testing.T) {
	r := NewSubscriberRegistry()
	for i := 0; i < 5; i++ {
		r.Add(&stubSubscriber{id: fmt.Sprintf("s%d", i)})
	}

	seen := map[string]int{}
	r.ForEach(func(s repository.Subscriber) { seen[s.ID()]++ })

	if len(seen) != 5 {
		t.Fatalf("expected 5 subscribers visited, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("subscriber %s visited %d times", id, n)
		}
	}
}

func TestSubscriberRegistryMutationDuringForEach(t *testing.T) {
	r := NewSubscriberRegistry()
	subs := make([]*stubSubscriber, 4)
	for i := range subs {
		subs[i] = &stubSubscriber{id: fmt.Sprintf("s%d", i)}
		r.Add(subs[i])
	}

	visited := 0
	r.ForEach(func(s repository.Subscriber) {
		visited++
		// removing others and adding new ones mid-iteration must not deadlock or fail
		for _, o := range subs {
			r.Remove(o)
		}
		r.Add(&stubSubscriber{id: "late-" + s.ID()})
	})

	if visited != len(subs) {
		t.Fatalf("iteration works on a snapshot; expected %d visits, got %d", len(subs), visited)
	}
	if r.Len() != len(subs) {
		t.Fatalf("expected %d late subscribers, got %d", len(subs), r.Len())
	}
}

func TestSubscriberRegistryConcurrent(t *testing.T) {
	r := NewSubscriberRegistry()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s := &stubSubscriber{id: fmt.Sprintf("%d-%d", w, i)}
				r.Add(s)
				r.ForEach(func(repository.Subscriber) {})
				r.Remove(s)
			}
		}(w)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}
