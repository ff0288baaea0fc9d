package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	models "MT5Stream/internal/domain/models"
	"MT5Stream/internal/usecase"
	xhttp "MT5Stream/pkg/http"
	xlogger "MT5Stream/pkg/logger"
	"MT5Stream/pkg/util"
)

const (
	previewRunes = 200
	bannerText   = "MT5 Stream Server is running. Use /health, /last, POST /tick, WS /ws"
)

// TicksEchoHandler serves tick ingestion and the read-only tick endpoints.
type TicksEchoHandler struct {
	logger       *xlogger.Logger
	bc           *usecase.Broadcaster
	webhookAlias bool
}

func NewTicksEchoHandler(logger *xlogger.Logger, bc *usecase.Broadcaster, webhookAlias bool) *TicksEchoHandler {
	return &TicksEchoHandler{logger: logger, bc: bc, webhookAlias: webhookAlias}
}

func (h *TicksEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/tick", h.Ingest)
	if h.webhookAlias {
		e.POST("/webhook", h.Ingest)
	}
	e.GET("/health", h.Health)
	e.GET("/last", h.Last)
	e.GET("/", h.Banner)
}

// Ingest validates one submitted tick and, if it is acceptable, broadcasts
// it before responding.
func (h *TicksEchoHandler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return xhttp.BadRequestError("could not read body")
	}

	payload := decodePayload(c.Request().Header.Get(echo.HeaderContentType), body)
	in, err := usecase.NormalizeTick(payload)
	if err != nil {
		h.bc.Reject(err.Error())
		h.logger.Debug("tick rejected",
			xlogger.String("reason", err.Error()),
			xlogger.String("got_type", payload.TypeName()),
		)
		return xhttp.JSONResponse(c, http.StatusBadRequest, models.RejectResponse{
			OK:             false,
			Error:          err.Error(),
			GotType:        payload.TypeName(),
			GotBodyPreview: preview(payload),
		})
	}

	saved, err := h.bc.Accept(in)
	if err != nil {
		h.logger.Error("accept tick", xlogger.Error(err))
		return xhttp.InternalError("could not accept tick").WithError(err)
	}
	return xhttp.JSONResponse(c, http.StatusOK, models.IngestResponse{OK: true, Saved: saved})
}

func (h *TicksEchoHandler) Health(c echo.Context) error {
	resp := models.HealthResponse{OK: true}
	if t, ok := h.bc.Latest(); ok {
		resp.LastTick = &t
	}
	return xhttp.JSONResponse(c, http.StatusOK, resp)
}

func (h *TicksEchoHandler) Last(c echo.Context) error {
	t, ok := h.bc.Latest()
	if !ok {
		return xhttp.JSONResponse(c, http.StatusOK, models.StatusResponse{OK: false})
	}
	return xhttp.JSONResponse(c, http.StatusOK, t)
}

func (h *TicksEchoHandler) Banner(c echo.Context) error {
	return c.String(http.StatusOK, bannerText)
}

// decodePayload classifies a request body. A JSON content type that holds
// an object or an array becomes a structured payload; anything else
// non-empty is kept as raw text for the normalizer to parse.
func decodePayload(contentType string, body []byte) models.Payload {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.AbsentPayload()
	}
	if isJSON(contentType) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil && !dec.More() {
			switch x := v.(type) {
			case map[string]any:
				return models.StructuredPayload(x)
			case []any:
				return models.StructuredListPayload(x)
			}
		}
	}
	return models.RawTextPayload(string(body))
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == echo.MIMEApplicationJSON || strings.HasSuffix(mt, "+json")
}

func preview(p models.Payload) any {
	switch p.Kind {
	case models.PayloadRawText:
		return util.TruncateRunes(p.Text, previewRunes)
	case models.PayloadStructured:
		if p.Value != nil {
			return p.Value
		}
		return p.Object
	default:
		return nil
	}
}
