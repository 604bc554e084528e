package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/internal/service/hub"
	"SessionOverlay/internal/usecase"
	xhttp "SessionOverlay/pkg/http"
	xlogger "SessionOverlay/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const maxClientMessage = 4096

// HubEchoHandler serves the marker hub: ingest, history, push channels and health.
type HubEchoHandler struct {
	logger   *xlogger.Logger
	ingest   *usecase.MarkerIngest
	delivery *usecase.MarkerDelivery
	history  *usecase.HistoryUseCase
	flow     *usecase.BuyFlowUseCase
	hub      *hub.Manager
	bars     domrepo.BarStore
	upgrader websocket.Upgrader
}

func NewHubEchoHandler(
	logger *xlogger.Logger,
	ingest *usecase.MarkerIngest,
	delivery *usecase.MarkerDelivery,
	history *usecase.HistoryUseCase,
	flow *usecase.BuyFlowUseCase,
	hub *hub.Manager,
	bars domrepo.BarStore,
) *HubEchoHandler {
	return &HubEchoHandler{
		logger:   logger.Component("hub_http"),
		ingest:   ingest,
		delivery: delivery,
		history:  history,
		flow:     flow,
		hub:      hub,
		bars:     bars,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *HubEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ws/candles", h.Channel)

	g := e.Group("/api")
	g.POST("/markers", h.Markers)
	g.GET("/history/:symbol", h.History)
	g.GET("/flow/:symbol/:date/:timeframe", h.BuyFlow)
	g.GET("/status", h.Status)
}

func (h *HubEchoHandler) Markers(c echo.Context) error {
	req := &models.MarkerBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.ingest.Ingest(c.Request().Context(), *req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, usecase.ErrRateLimited):
		h.logger.Warn("markers rate limited", xlogger.String("symbol", req.Symbol))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError(err.Error()).WithError(err))
	default:
		h.logger.Error("markers ingest error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("failed to broadcast markers for %s", req.Symbol).WithError(err))
	}
}

// History answers with a bare bar array, the shape chart clients consume.
func (h *HubEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bars, err := h.history.Bars(c.Request().Context(), usecase.HistoryParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.Timeframe(req.Timeframe),
		Start:     req.Start,
		End:       req.End,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, bars)
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.logger.Error("history usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to load history").WithError(err))
	}
}

// BuyFlow answers the buy flow lines of one day as a bare array.
func (h *HubEchoHandler) BuyFlow(c echo.Context) error {
	req := &models.BuyFlowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	points, err := h.flow.Lines(c.Request().Context(), req.Symbol, domrepo.Timeframe(req.Timeframe), req.Date)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, points)
	case errors.Is(err, usecase.ErrInvalidDay):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.logger.Error("buy flow usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to build buy flow").WithError(err))
	}
}

// Channel upgrades to a websocket on SYMBOL-TIMEFRAME. Client frames are
// read and discarded; the connection lives until the client goes away.
func (h *HubEchoHandler) Channel(c echo.Context) error {
	req := &models.ChannelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	client := h.hub.Join(req.Symbol, domrepo.Timeframe(req.Timeframe), ws)
	defer h.hub.Leave(client)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	if err := h.delivery.Replay(ctx, req.Symbol, client.Send); err != nil {
		h.logger.Warn("snapshot replay failed", xlogger.String("channel", client.Channel()), xlogger.Error(err))
	}
	cancel()

	ws.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *HubEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"channels": h.hub.Channels(),
	})
}

func (h *HubEchoHandler) Health(c echo.Context) error {
	if h.bars != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.bars.Health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("bar store unavailable").WithError(err))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
