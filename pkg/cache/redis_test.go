package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(WithRedisAddr(mr.Addr()), WithRedisPrefix("test"))
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheSetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("test:k"); got != `{"a":1}` {
		t.Fatalf("stored %q", got)
	}
	if ttl := mr.TTL("test:k"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	var out map[string]int
	if err := c.Get(ctx, "k", &out); err != nil || out["a"] != 1 {
		t.Fatalf("get: %v %v", out, err)
	}

	var missing string
	if err := c.Get(ctx, "nope", &missing); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatalf("key should be gone")
	}
}

func TestRedisCacheSetAndPublish(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	sub := c.Client().Subscribe(ctx, "test:ticks")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload := []byte(`{"symbol":"EURUSD"}`)
	if err := c.SetAndPublish(ctx, "latest", "ticks", payload, 0); err != nil {
		t.Fatalf("set and publish: %v", err)
	}

	if got, _ := mr.Get("test:latest"); got != string(payload) {
		t.Fatalf("latest = %q", got)
	}
	if mr.TTL("test:latest") != 0 {
		t.Fatalf("zero expiration must not set a ttl")
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != string(payload) {
			t.Fatalf("published %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message published")
	}
}

func TestNewRedisCacheFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisCache(WithRedisAddr(addr)); err == nil {
		t.Fatalf("expected ping error")
	}
}
