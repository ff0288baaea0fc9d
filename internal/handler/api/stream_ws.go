package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MT5Stream/internal/service/stream"
	"MT5Stream/internal/usecase"
	xlogger "MT5Stream/pkg/logger"
)

// StreamHandler upgrades /ws requests into push-channel subscribers.
type StreamHandler struct {
	logger   *xlogger.Logger
	bc       *usecase.Broadcaster
	upgrader websocket.Upgrader
	opts     []stream.Option
}

func NewStreamHandler(logger *xlogger.Logger, bc *usecase.Broadcaster, opts ...stream.Option) *StreamHandler {
	return &StreamHandler{
		logger: logger,
		bc:     bc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browser dashboards connect from any origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		opts: append([]stream.Option{stream.WithLogger(logger)}, opts...),
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Subscribe)
}

// Subscribe holds the connection open until the peer leaves.
func (h *StreamHandler) Subscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Debug("ws upgrade failed", xlogger.Error(err))
		return nil
	}

	sub := stream.NewSubscriber(conn, h.opts...)
	if !h.bc.Join(sub) {
		_ = sub.Close()
		return nil
	}
	defer h.bc.Leave(sub)

	sub.Serve()
	return nil
}
