package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MT5Stream/internal/domain/models"
)

// Watcher is a push-channel client. It connects to the /ws endpoint and
// decodes every text frame into a Tick.
type Watcher struct {
	url          string
	handshake    time.Duration
	pingInterval time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewWatcher creates a watcher for a ws:// or wss:// URL.
func NewWatcher(url string, pingInterval time.Duration) *Watcher {
	return &Watcher{
		url:          url,
		handshake:    10 * time.Second,
		pingInterval: pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (w *Watcher) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.handshake,
	}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("watcher connect: %w", err)
	}
	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	return nil
}

// Read streams ticks until ctx is done or the connection fails. Both
// channels are closed when reading stops; at most one error is sent.
func (w *Watcher) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	ticks := make(chan models.Tick, 256)
	errs := make(chan error, 1)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		errs <- fmt.Errorf("watcher not connected")
		close(ticks)
		close(errs)
		return ticks, errs
	}

	// ping loop
	if w.pingInterval > 0 {
		go func() {
			ticker := time.NewTicker(w.pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						return
					}
				}
			}
		}()
	}

	// unblock the read loop on cancellation
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("watcher read: %w", err)
				}
				return
			}
			var t models.Tick
			if err := json.Unmarshal(b, &t); err != nil {
				errs <- fmt.Errorf("watcher decode: %w", err)
				return
			}
			select {
			case ticks <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ticks, errs
}

// Close closes the WS connection.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (w *Watcher) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}
