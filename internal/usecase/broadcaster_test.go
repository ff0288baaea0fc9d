package usecase

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"MT5Stream/internal/domain/models"
	"MT5Stream/internal/repository"
	"MT5Stream/pkg/logger"
	"MT5Stream/pkg/metrics"
)

type fakeSubscriber struct {
	id    string
	dead  bool
	block chan struct{}

	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Deliver(msg []byte) bool {
	if f.dead {
		return false
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, append([]byte(nil), msg...))
	return true
}

func (f *fakeSubscriber) ticks(t *testing.T) []models.Tick {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Tick, 0, len(f.msgs))
	for _, m := range f.msgs {
		var tk models.Tick
		if err := json.Unmarshal(m, &tk); err != nil {
			t.Fatalf("subscriber %s got invalid json %q: %v", f.id, m, err)
		}
		out = append(out, tk)
	}
	return out
}

func (f *fakeSubscriber) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type recordingMirror struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (m *recordingMirror) Enqueue(t models.Tick, _ []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = append(m.ticks, t)
	return true
}

func newTestBroadcaster(opts ...BroadcasterOption) (*Broadcaster, *repository.SubscriberRegistry, *repository.LatestTickStore) {
	store := repository.NewLatestTickStore()
	reg := repository.NewSubscriberRegistry()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	return NewBroadcaster(store, reg, m, logger.Nop(), opts...), reg, store
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestAcceptStampsAndStores(t *testing.T) {
	b, _, store := newTestBroadcaster(WithClock(fixedClock(1718000000123)))

	if _, ok := b.Latest(); ok {
		t.Fatalf("new broadcaster must start without a tick")
	}

	tick, err := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.0810, Ask: 1.0812})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if tick.ReceivedAt != 1718000000123 {
		t.Fatalf("received_at = %d, want server clock", tick.ReceivedAt)
	}
	if tick.Digits != nil || tick.Time != nil {
		t.Fatalf("absent optional fields must stay absent: %+v", tick)
	}
	stored, ok := store.Read()
	if !ok || !stored.Equal(tick) {
		t.Fatalf("store holds %+v, want %+v", stored, tick)
	}
}

func TestAcceptDeliversToEverySubscriber(t *testing.T) {
	b, _, _ := newTestBroadcaster()

	subs := make([]*fakeSubscriber, 25)
	for i := range subs {
		subs[i] = &fakeSubscriber{id: fmt.Sprintf("s%d", i)}
		if !b.Join(subs[i]) {
			t.Fatalf("join %d failed", i)
		}
	}

	tick, err := b.Accept(models.TickInput{Symbol: "XAUUSD", Bid: 2350.15, Ask: 2350.45})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, s := range subs {
		waitFor(t, "delivery to "+s.id, func() bool { return s.received() == 1 })
		got := s.ticks(t)
		if len(got) != 1 || !got[0].Equal(tick) {
			t.Fatalf("subscriber %s got %+v, want exactly %+v", s.id, got, tick)
		}
	}
}

func TestAcceptPrunesDeadSubscribers(t *testing.T) {
	b, _, _ := newTestBroadcaster()

	alive := &fakeSubscriber{id: "alive"}
	dead := &fakeSubscriber{id: "dead"}
	b.Join(alive)
	// nothing to snapshot yet, so the dead subscriber joins fine
	if !b.Join(dead) {
		t.Fatalf("join without a snapshot must succeed")
	}

	if _, err := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1, Ask: 2}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, "dead subscriber to be pruned", func() bool { return b.Subscribers() == 1 })
	waitFor(t, "alive subscriber to receive the tick", func() bool { return alive.received() == 1 })

	if _, err := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.5, Ask: 2}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, "alive subscriber to receive the next tick", func() bool { return alive.received() == 2 })
}

func TestAcceptDoesNotWaitForSlowSubscriber(t *testing.T) {
	b, _, _ := newTestBroadcaster(WithSubscriberQueue(4))

	slow := &fakeSubscriber{id: "slow", block: make(chan struct{})}
	fast := &fakeSubscriber{id: "fast"}
	b.Join(slow)
	b.Join(fast)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: float64(i), Ask: float64(i) + 1}); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("3 accepts took %v with one blocked subscriber", elapsed)
	}
	waitFor(t, "fast subscriber to receive every tick", func() bool { return fast.received() == 3 })

	close(slow.block)
	waitFor(t, "slow subscriber to catch up", func() bool { return slow.received() == 3 })
	for i, tk := range slow.ticks(t) {
		if tk.Bid != float64(i) {
			t.Fatalf("slow subscriber got ticks out of order at %d: %+v", i, tk)
		}
	}
}

func TestAcceptDropsSubscriberWithFullQueue(t *testing.T) {
	b, _, _ := newTestBroadcaster(WithSubscriberQueue(1))

	stuck := &fakeSubscriber{id: "stuck", block: make(chan struct{})}
	defer close(stuck.block)
	b.Join(stuck)

	// the writer holds one tick, the queue one more, the next overflows
	for i := 0; i < 3; i++ {
		b.Accept(models.TickInput{Symbol: "EURUSD", Bid: float64(i), Ask: float64(i) + 1})
		time.Sleep(10 * time.Millisecond)
	}
	if b.Subscribers() != 0 {
		t.Fatalf("subscriber with a full queue must be dropped, have %d", b.Subscribers())
	}
}

func TestJoinSendsSnapshot(t *testing.T) {
	b, _, _ := newTestBroadcaster()

	early := &fakeSubscriber{id: "early"}
	b.Join(early)
	if len(early.ticks(t)) != 0 {
		t.Fatalf("joining an empty broadcaster must not send anything")
	}

	first, _ := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.0, Ask: 1.1})
	second, _ := b.Accept(models.TickInput{Symbol: "GBPUSD", Bid: 1.2, Ask: 1.3})

	late := &fakeSubscriber{id: "late"}
	if !b.Join(late) {
		t.Fatalf("join failed")
	}
	time.Sleep(20 * time.Millisecond)
	got := late.ticks(t)
	if len(got) != 1 || !got[0].Equal(second) {
		t.Fatalf("late joiner got %+v, want only %+v", got, second)
	}
	if got[0].Equal(first) {
		t.Fatalf("late joiner must not see history")
	}
}

func TestJoinFailsForDeadSubscriber(t *testing.T) {
	b, _, _ := newTestBroadcaster()
	b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.0, Ask: 1.1})

	if b.Join(&fakeSubscriber{id: "dead", dead: true}) {
		t.Fatalf("join must fail when the snapshot cannot be delivered")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("failed joiner must not be registered")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	b, _, _ := newTestBroadcaster()
	s := &fakeSubscriber{id: "s"}
	b.Join(s)
	b.Leave(s)
	b.Leave(s)
	if b.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Subscribers())
	}

	b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.0, Ask: 1.1})
	time.Sleep(20 * time.Millisecond)
	if len(s.ticks(t)) != 0 {
		t.Fatalf("departed subscriber must not receive ticks")
	}
}

func TestAcceptForwardsToMirror(t *testing.T) {
	mirror := &recordingMirror{}
	b, _, _ := newTestBroadcaster(WithMirror(mirror))

	tick, _ := b.Accept(models.TickInput{Symbol: "EURUSD", Bid: 1.0, Ask: 1.1})

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.ticks) != 1 || !mirror.ticks[0].Equal(tick) {
		t.Fatalf("mirror got %+v, want %+v", mirror.ticks, tick)
	}
}

func TestConcurrentAcceptAndJoin(t *testing.T) {
	b, _, _ := newTestBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			b.Accept(models.TickInput{Symbol: "EURUSD", Bid: float64(i), Ask: float64(i) + 1})
		}(i)
		go func(i int) {
			defer wg.Done()
			b.Join(&fakeSubscriber{id: fmt.Sprintf("s%d", i)})
		}(i)
	}
	wg.Wait()

	if b.Subscribers() != 50 {
		t.Fatalf("expected 50 subscribers, got %d", b.Subscribers())
	}
	latest, ok := b.Latest()
	if !ok || latest.Ask != latest.Bid+1 {
		t.Fatalf("latest tick is inconsistent: %+v", latest)
	}
}
