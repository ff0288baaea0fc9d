package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"MT5Stream/internal/domain/models"
	pkgcache "MT5Stream/pkg/cache"
)

type capturedMessage struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	err    error
	msgs   []capturedMessage
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, capturedMessage{topic: topic, key: string(key), value: value.([]byte)})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaTickPublisherKeysBySymbol(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaTickPublisher(prod, "mt5.ticks")

	tick := models.Tick{Symbol: "XAUUSD", Bid: 2350.15, Ask: 2350.45, ReceivedAt: 42}
	payload, _ := json.Marshal(tick)
	if err := pub.Mirror(context.Background(), tick, payload); err != nil {
		t.Fatalf("mirror: %v", err)
	}

	if len(prod.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(prod.msgs))
	}
	m := prod.msgs[0]
	if m.topic != "mt5.ticks" || m.key != "XAUUSD" || string(m.value) != string(payload) {
		t.Fatalf("unexpected message %+v", m)
	}

	if err := pub.Close(); err != nil || !prod.closed {
		t.Fatalf("close must close the producer")
	}
}

func TestKafkaTickPublisherPropagatesErrors(t *testing.T) {
	pub := NewKafkaTickPublisher(&fakeProducer{err: errors.New("broker down")}, "mt5.ticks")
	if err := pub.Mirror(context.Background(), models.Tick{Symbol: "EURUSD"}, []byte(`{}`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisTickMirrorWritesLatest(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := pkgcache.NewRedisCache(pkgcache.WithRedisAddr(mr.Addr()), pkgcache.WithRedisPrefix("mt5"))
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	m := NewRedisTickMirror(c, time.Hour)
	defer m.Close()

	first := []byte(`{"symbol":"EURUSD","bid":1,"ask":2}`)
	second := []byte(`{"symbol":"GBPUSD","bid":3,"ask":4}`)
	for _, p := range [][]byte{first, second} {
		if err := m.Mirror(context.Background(), models.Tick{}, p); err != nil {
			t.Fatalf("mirror: %v", err)
		}
	}

	got, err := mr.Get("mt5:latest")
	if err != nil || got != string(second) {
		t.Fatalf("latest = %q (%v), want the second tick", got, err)
	}
	if mr.TTL("mt5:latest") != time.Hour {
		t.Fatalf("ttl not applied")
	}
}
