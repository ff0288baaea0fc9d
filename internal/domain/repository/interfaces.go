package repository

import (
	"context"

	"MT5Stream/internal/domain/models"
)

// TickStore holds the most recently accepted tick.
type TickStore interface {
	Replace(t models.Tick)
	Read() (models.Tick, bool)
}

// Subscriber is one open push-channel connection. Deliver reports false
// once the connection can no longer be written to.
type Subscriber interface {
	ID() string
	Deliver(msg []byte) bool
}

type SubscriberRegistry interface {
	Add(s Subscriber) bool
	Remove(s Subscriber) bool
	Lookup(id string) (Subscriber, bool)
	ForEach(fn func(Subscriber))
	Len() int
}

// TickSink receives a copy of every accepted tick outside the request path.
type TickSink interface {
	Name() string
	Mirror(ctx context.Context, t models.Tick, payload []byte) error
	Close() error
}

type Metrics interface {
	RecordTickAccepted(symbol string)
	RecordTickRejected(reason string)
	RecordLastQuote(symbol string, bid, ask float64)
	RecordDelivery(result string, n int)
	SetSubscribers(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
