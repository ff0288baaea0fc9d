package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	drepo "MT5Stream/internal/domain/repository"
	"MT5Stream/pkg/logger"
)

var ErrClosed = errors.New("stream: subscriber closed")

// Subscriber is one push-channel connection. Writes are serialized and each
// one is bounded by writeWait; the first failed write closes the
// connection for good.
type Subscriber struct {
	id   string
	conn *websocket.Conn
	log  *logger.Logger

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Subscriber)

func WithWriteWait(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

func WithPongWait(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.pongWait = d
		}
	}
}

// WithPingPeriod sets the keepalive interval. It must be shorter than the
// pong wait or the read deadline expires between pings.
func WithPingPeriod(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.pingPeriod = d
		}
	}
}

// WithMaxMessageSize limits inbound frames. Inbound messages are discarded
// anyway.
func WithMaxMessageSize(n int64) Option {
	return func(s *Subscriber) {
		if n > 0 {
			s.maxMessageSize = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSubscriber wraps an upgraded connection.
func NewSubscriber(conn *websocket.Conn, opts ...Option) *Subscriber {
	s := &Subscriber{
		id:             uuid.NewString(),
		conn:           conn,
		log:            logger.Nop(),
		writeWait:      5 * time.Second,
		pongWait:       60 * time.Second,
		pingPeriod:     50 * time.Second,
		maxMessageSize: 512,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.String("subscriber", s.id))
	return s
}

func (s *Subscriber) ID() string { return s.id }

// Deliver writes msg as one text frame. It returns false once the
// connection is closed or the write fails.
func (s *Subscriber) Deliver(msg []byte) bool {
	return s.write(websocket.TextMessage, msg) == nil
}

func (s *Subscriber) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.log.Debug("write failed", logger.Error(err))
		s.closeLocked()
		return err
	}
	return nil
}

// Serve runs the keepalive and read loops until the peer goes away or the
// subscriber is closed. Anything the peer sends is discarded.
func (s *Subscriber) Serve() {
	go s.pingLoop()
	s.readLoop()
	s.Close()
}

func (s *Subscriber) readLoop() {
	s.conn.SetReadLimit(s.maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Debug("read loop ended", logger.Error(err))
			}
			return
		}
	}
}

func (s *Subscriber) pingLoop() {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Subscriber) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
		s.closeLocked()
		return err
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (s *Subscriber) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Subscriber) closeLocked() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed once the subscriber has been closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

var _ drepo.Subscriber = (*Subscriber)(nil)
