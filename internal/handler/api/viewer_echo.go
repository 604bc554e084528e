package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/internal/usecase"
	xhttp "SessionOverlay/pkg/http"
	xlogger "SessionOverlay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ViewerSession is implemented by usecase.Session.
type ViewerSession interface {
	Status() usecase.SessionStatus
	Redraw(ctx context.Context, w io.Writer) error
	Reload(ctx context.Context, params usecase.ViewParams) error
}

type ViewerEchoHandler struct {
	logger        *xlogger.Logger
	session       ViewerSession
	redrawTimeout time.Duration
}

func NewViewerEchoHandler(logger *xlogger.Logger, session ViewerSession) *ViewerEchoHandler {
	return &ViewerEchoHandler{logger: logger.Component("viewer_http"), session: session, redrawTimeout: 10 * time.Second}
}

func (h *ViewerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/chart.png", h.Chart)

	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/overlays", h.Overlays)
	g.POST("/reload", h.Reload)
}

func (h *ViewerEchoHandler) Chart(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.redrawTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := h.session.Redraw(ctx, &buf); err != nil {
		h.logger.Error("redraw failed", xlogger.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("chart not ready").WithError(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to render chart").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (h *ViewerEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Status())
}

// Overlays returns the summary of the generation on screen.
func (h *ViewerEchoHandler) Overlays(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Status().Generation)
}

func (h *ViewerEchoHandler) Reload(c echo.Context) error {
	req := &models.ReloadRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window, err := time.ParseDuration(req.Window)
	if err != nil {
		appErr := xhttp.NewAppError("ERR_DURATION", "window", "window must be a duration like 24h", http.StatusBadRequest)
		return xhttp.AppErrorResponse(c, appErr.WithParam("value", req.Window).WithError(err))
	}

	err = h.session.Reload(c.Request().Context(), usecase.ViewParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.Timeframe(req.Timeframe),
		Window:    window,
	})
	switch {
	case err == nil:
		return xhttp.AcceptedResponse(c, h.session.Status())
	case errors.Is(err, usecase.ErrInvalidView):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.logger.Error("reload failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to reload view").WithError(err))
	}
}
