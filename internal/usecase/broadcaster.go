package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"MT5Stream/internal/domain/models"
	drepo "MT5Stream/internal/domain/repository"
	"MT5Stream/pkg/logger"
)

// Mirror receives a copy of each accepted tick after fan-out. Enqueue must
// not block.
type Mirror interface {
	Enqueue(t models.Tick, payload []byte) bool
}

// Broadcaster owns the latest-tick slot and the subscriber set. It accepts
// ticks, fans them out to every subscriber, and brings late joiners up to
// date. Each joined subscriber gets a bounded queue drained by its own
// goroutine; Accept only enqueues.
type Broadcaster struct {
	store     drepo.TickStore
	registry  drepo.SubscriberRegistry
	metrics   drepo.Metrics
	log       *logger.Logger
	mirror    Mirror
	now       func() time.Time
	queueSize int
}

type BroadcasterOption func(*Broadcaster)

// WithMirror forwards every accepted tick to m.
func WithMirror(m Mirror) BroadcasterOption {
	return func(b *Broadcaster) { b.mirror = m }
}

// WithClock overrides the clock used for received_at.
func WithClock(now func() time.Time) BroadcasterOption {
	return func(b *Broadcaster) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSubscriberQueue sets how many ticks may wait for one subscriber.
// A subscriber whose queue is full is dropped.
func WithSubscriberQueue(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func NewBroadcaster(
	store drepo.TickStore,
	registry drepo.SubscriberRegistry,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...BroadcasterOption,
) *Broadcaster {
	if log == nil {
		log = logger.Nop()
	}
	b := &Broadcaster{
		store:     store,
		registry:  registry,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		queueSize: defaultMailboxSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Accept stamps in with the receive time, makes it the latest tick and
// queues it for every current subscriber. It never waits on a network
// write.
func (b *Broadcaster) Accept(in models.TickInput) (models.Tick, error) {
	start := time.Now()
	tick := in.Stamp(b.now())

	msg, err := json.Marshal(tick)
	if err != nil {
		b.metrics.RecordError("tick_marshal")
		return models.Tick{}, fmt.Errorf("marshal tick: %w", err)
	}

	b.store.Replace(tick)
	b.metrics.RecordTickAccepted(tick.Symbol)
	b.metrics.RecordLastQuote(tick.Symbol, tick.Bid, tick.Ask)

	b.fanOut(msg)

	if b.mirror != nil && !b.mirror.Enqueue(tick, msg) {
		b.metrics.RecordError("mirror_enqueue")
	}
	b.metrics.RecordLatency("accept", time.Since(start).Seconds())
	return tick, nil
}

// Reject records a submission that never reached Accept.
func (b *Broadcaster) Reject(reason string) {
	b.metrics.RecordTickRejected(reason)
}

// fanOut queues msg for every subscriber. Subscribers whose queue is full
// are removed.
func (b *Broadcaster) fanOut(msg []byte) {
	delivered, pruned := 0, 0
	b.registry.ForEach(func(s drepo.Subscriber) {
		if s.Deliver(msg) {
			delivered++
			return
		}
		if b.evict(s) {
			pruned++
		}
	})

	b.metrics.RecordDelivery("ok", delivered)
	if pruned > 0 {
		b.metrics.RecordDelivery("pruned", pruned)
	}
}

// evict removes s and stops its writer. It reports whether s was still
// registered.
func (b *Broadcaster) evict(s drepo.Subscriber) bool {
	if m, ok := s.(*mailbox); ok {
		m.close()
	}
	if !b.registry.Remove(s) {
		return false
	}
	b.metrics.SetSubscribers(b.registry.Len())
	b.log.Debug("subscriber pruned", logger.String("id", s.ID()))
	return true
}

func (b *Broadcaster) writeFailed(m *mailbox) {
	if b.evict(m) {
		b.metrics.RecordDelivery("pruned", 1)
	}
}

// Join sends s the latest tick, if any, and registers it. A tick accepted
// while s is joining is delivered as well, so s may see the same tick twice
// but never misses one. Join reports false if s could not be written to.
func (b *Broadcaster) Join(s drepo.Subscriber) bool {
	snapshot, have := b.store.Read()
	if have {
		msg, err := json.Marshal(snapshot)
		if err == nil && !s.Deliver(msg) {
			return false
		}
	}

	m := newMailbox(s, b.queueSize)
	if !b.registry.Add(m) {
		b.log.Warn("subscriber already joined", logger.String("id", s.ID()))
		return false
	}
	go m.run(b.writeFailed)
	b.metrics.SetSubscribers(b.registry.Len())
	b.log.Info("subscriber joined",
		logger.String("id", s.ID()),
		logger.Int("subscribers", b.registry.Len()),
	)

	// Catch up on anything accepted between the snapshot and the Add.
	latest, ok := b.store.Read()
	if ok && (!have || !latest.Equal(snapshot)) {
		msg, err := json.Marshal(latest)
		if err == nil && !m.Deliver(msg) {
			b.Leave(s)
			return false
		}
	}
	return true
}

// Leave removes s and stops its writer. Calling it more than once is
// harmless.
func (b *Broadcaster) Leave(s drepo.Subscriber) {
	if reg, ok := b.registry.Lookup(s.ID()); ok {
		if m, ok := reg.(*mailbox); ok {
			m.close()
		}
	}
	if !b.registry.Remove(s) {
		return
	}
	b.metrics.SetSubscribers(b.registry.Len())
	b.log.Info("subscriber left",
		logger.String("id", s.ID()),
		logger.Int("subscribers", b.registry.Len()),
	)
}

// Latest returns the most recently accepted tick.
func (b *Broadcaster) Latest() (models.Tick, bool) {
	return b.store.Read()
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	return b.registry.Len()
}
