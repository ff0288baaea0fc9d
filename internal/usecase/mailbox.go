package usecase

import (
	"sync"

	drepo "MT5Stream/internal/domain/repository"
)

const defaultMailboxSize = 64

// mailbox queues messages for one subscriber and writes them from its own
// goroutine, so a slow connection only delays itself. It is what the
// registry holds in place of the subscriber.
type mailbox struct {
	sub   drepo.Subscriber
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func newMailbox(sub drepo.Subscriber, size int) *mailbox {
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &mailbox{
		sub:   sub,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

func (m *mailbox) ID() string { return m.sub.ID() }

// Deliver queues msg without blocking. It reports false once the mailbox is
// closed or its queue is full.
func (m *mailbox) Deliver(msg []byte) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.queue <- msg:
		return true
	default:
		return false
	}
}

// run writes queued messages in order until the mailbox is closed or a
// write fails. onFail runs once on a failed write.
func (m *mailbox) run(onFail func(*mailbox)) {
	for {
		select {
		case <-m.done:
			return
		case msg := <-m.queue:
			if !m.sub.Deliver(msg) {
				onFail(m)
				return
			}
		}
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}
