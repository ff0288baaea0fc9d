package repository

import (
	"sync/atomic"

	"MT5Stream/internal/domain/models"
	"MT5Stream/internal/domain/repository"
)

// LatestTickStore is a single-slot holder for the last accepted tick.
// Reads never observe a partially written tick: the slot is swapped as a
// whole pointer.
type LatestTickStore struct {
	slot atomic.Pointer[models.Tick]
}

// NewLatestTickStore creates an empty store.
func NewLatestTickStore() *LatestTickStore {
	return &LatestTickStore{}
}

// Replace stores a private copy of t.
func (s *LatestTickStore) Replace(t models.Tick) {
	c := t.Clone()
	s.slot.Store(&c)
}

// Read returns a copy of the held tick, or false while the store is empty.
func (s *LatestTickStore) Read() (models.Tick, bool) {
	p := s.slot.Load()
	if p == nil {
		return models.Tick{}, false
	}
	return p.Clone(), true
}

var _ repository.TickStore = (*LatestTickStore)(nil)
