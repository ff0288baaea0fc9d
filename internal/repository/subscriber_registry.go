package repository

import (
	"sync"

	"MT5Stream/internal/domain/repository"
)

// SubscriberRegistry tracks connected push-channel subscribers by ID.
// The lock only guards membership; ForEach runs its callback on a snapshot
// with the lock released, so delivery never holds it.
type SubscriberRegistry struct {
	mu   sync.RWMutex
	subs map[string]repository.Subscriber
}

func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{subs: make(map[string]repository.Subscriber)}
}

// Add registers s. It returns false if a subscriber with the same ID is
// already registered.
func (r *SubscriberRegistry) Add(s repository.Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[s.ID()]; exists {
		return false
	}
	r.subs[s.ID()] = s
	return true
}

// Remove deregisters s. Removing an absent subscriber is a no-op.
func (r *SubscriberRegistry) Remove(s repository.Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[s.ID()]; !exists {
		return false
	}
	delete(r.subs, s.ID())
	return true
}

// Lookup returns the subscriber registered under id.
func (r *SubscriberRegistry) Lookup(id string) (repository.Subscriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	return s, ok
}

func (r *SubscriberRegistry) ForEach(fn func(repository.Subscriber)) {
	for _, s := range r.snapshot() {
		fn(s)
	}
}

func (r *SubscriberRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *SubscriberRegistry) snapshot() []repository.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

var _ repository.SubscriberRegistry = (*SubscriberRegistry)(nil)
