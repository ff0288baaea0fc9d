package kafka

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingHandler struct {
	failures int
	calls    int
	panics   bool
}

func (h *countingHandler) Topic() string { return "ticks.in" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.panics {
		panic("boom")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestStartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t)
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error without handlers")
	}
}

func TestHandleRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{failures: 2}
	if err := c.handle(context.Background(), h, nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
}

func TestHandleGivesUp(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{failures: 10}
	if err := c.handle(context.Background(), h, nil); err == nil {
		t.Fatalf("expected error after retries")
	}
	if h.calls != 3 {
		t.Fatalf("calls = %d, want 1 + 2 retries", h.calls)
	}
}

func TestHandleRecoversPanic(t *testing.T) {
	c := newTestConsumer(t)
	if err := c.handle(context.Background(), &countingHandler{panics: true}, nil); err == nil {
		t.Fatalf("panic must surface as an error")
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
