package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SessionOverlay/internal/usecase"
	xlogger "SessionOverlay/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	status    usecase.SessionStatus
	png       []byte
	redrawErr error
	reloaded  []usecase.ViewParams
}

func (s *fakeSession) Status() usecase.SessionStatus { return s.status }

func (s *fakeSession) Redraw(_ context.Context, w io.Writer) error {
	if s.redrawErr != nil {
		return s.redrawErr
	}
	_, err := w.Write(s.png)
	return err
}

func (s *fakeSession) Reload(_ context.Context, p usecase.ViewParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.reloaded = append(s.reloaded, p)
	s.status.Symbol, s.status.Timeframe = p.Symbol, string(p.Timeframe)
	return nil
}

func serveViewer(s *fakeSession, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	NewViewerEchoHandler(xlogger.Nop(), s).RegisterRoutes(e)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestViewerEcho_Chart(t *testing.T) {
	s := &fakeSession{png: []byte("\x89PNG fake")}
	rec := serveViewer(s, http.MethodGet, "/chart.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
	assert.Equal(t, s.png, rec.Body.Bytes())

	s.redrawErr = fmt.Errorf("render chart: %w", errors.New("font missing"))
	rec = serveViewer(s, http.MethodGet, "/chart.png", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	s.redrawErr = context.DeadlineExceeded
	rec = serveViewer(s, http.MethodGet, "/chart.png", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestViewerEcho_StatusAndOverlays(t *testing.T) {
	s := &fakeSession{status: usecase.SessionStatus{
		Feed:       usecase.FeedConnected,
		Symbol:     "WIN",
		Timeframe:  "M1",
		Bars:       42,
		State:      "active",
		Generation: usecase.Generation{ID: 3, Zones: 2, Reference: "128500", Overlays: []string{"zone", "channel"}},
	}}

	rec := serveViewer(s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"feed":"connected"`)
	assert.Contains(t, rec.Body.String(), `"bars":42`)

	rec = serveViewer(s, http.MethodGet, "/api/overlays", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reference":"128500"`)
	assert.Contains(t, rec.Body.String(), `"overlays":["zone","channel"]`)
}

func TestViewerEcho_Reload(t *testing.T) {
	s := &fakeSession{}

	rec := serveViewer(s, http.MethodPost, "/api/reload", `{"symbol":"WDOV25","timeframe":"M15","window":"6h"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, s.reloaded, 1)
	assert.Equal(t, "WDOV25", s.reloaded[0].Symbol)
	assert.Equal(t, "M15", string(s.reloaded[0].Timeframe))
	assert.Equal(t, "6h0m0s", s.reloaded[0].Window.String())

	rec = serveViewer(s, http.MethodPost, "/api/reload", `{"symbol":"WIN"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "24h0m0s", s.reloaded[1].Window.String())
	assert.Equal(t, "M1", string(s.reloaded[1].Timeframe))

	assert.Equal(t, http.StatusBadRequest, serveViewer(s, http.MethodPost, "/api/reload", `{"timeframe":"M1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serveViewer(s, http.MethodPost, "/api/reload", `{"symbol":"WIN","window":"soon"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serveViewer(s, http.MethodPost, "/api/reload", `{"symbol":"WIN","window":"-1h"}`).Code)
	assert.Len(t, s.reloaded, 2)
}
