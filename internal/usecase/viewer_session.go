package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	applogger "SessionOverlay/pkg/logger"
)

var ErrInvalidView = errors.New("invalid view parameters")

// FeedStatus is the connectivity of the push channel.
type FeedStatus string

const (
	FeedConnected    FeedStatus = "connected"
	FeedDisconnected FeedStatus = "disconnected"
	FeedError        FeedStatus = "error"
)

// ChartSurface is the surface the viewer session drives.
type ChartSurface interface {
	OverlaySurface
	SetBars(bars []models.Bar)
	UpsertBar(b models.Bar) bool
	SetBarWidth(d time.Duration)
	SetTitle(title string)
	Len() int
	Render(w io.Writer) error
}

// ViewParams selects what the viewer shows.
type ViewParams struct {
	Symbol    string            `json:"symbol"`
	Timeframe domrepo.Timeframe `json:"timeframe"`
	Window    time.Duration     `json:"window"`
}

func (p ViewParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidView)
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return fmt.Errorf("%w: timeframe %q", ErrInvalidView, p.Timeframe)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidView)
	}
	return nil
}

// SessionStatus is a copy of the loop state for readers outside the loop.
type SessionStatus struct {
	Feed       FeedStatus `json:"feed"`
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	Bars       int        `json:"bars"`
	State      string     `json:"state"`
	Generation Generation `json:"generation"`
	LastError  string     `json:"last_error,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type SessionConfig struct {
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
}

type historyResult struct {
	id     int
	params ViewParams
	bars   []models.Bar
	err    error
}

type renderResult struct {
	png []byte
	err error
}

type redrawRequest struct {
	done chan renderResult
}

type reloadRequest struct {
	params ViewParams
	done   chan struct{}
}

// Session runs the viewer event loop. Feed messages, history results,
// redraws and reloads are all handled on the goroutine that calls Run, so
// the overlay manager and the surface are never touched concurrently.
type Session struct {
	stream  domrepo.MarkerStream
	history domrepo.HistoryFetcher
	surface ChartSurface
	manager *OverlayManager
	log     *applogger.Logger
	metrics domrepo.Metrics
	cfg     SessionConfig
	now     func() time.Time

	redraws chan redrawRequest
	reloads chan reloadRequest

	// loop owned
	params     ViewParams
	requestID  int
	cancelFeed context.CancelFunc

	mu     sync.RWMutex
	status SessionStatus
}

func NewSession(stream domrepo.MarkerStream, history domrepo.HistoryFetcher, surface ChartSurface, manager *OverlayManager, params ViewParams, cfg SessionConfig, log *applogger.Logger, metrics domrepo.Metrics) *Session {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Session{
		stream:  stream,
		history: history,
		surface: surface,
		manager: manager,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		redraws: make(chan redrawRequest),
		reloads: make(chan reloadRequest),
		params:  params,
		status: SessionStatus{
			Feed:      FeedDisconnected,
			Symbol:    params.Symbol,
			Timeframe: string(params.Timeframe),
			State:     StateIdle.String(),
		},
	}
}

// Status returns the last published loop state.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Generation.Overlays = append([]string(nil), st.Generation.Overlays...)
	return st
}

// Redraw renders the chart on the loop and writes the PNG to w.
func (s *Session) Redraw(ctx context.Context, w io.Writer) error {
	req := redrawRequest{done: make(chan renderResult, 1)}
	select {
	case s.redraws <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case res := <-req.done:
		if res.err != nil {
			return res.err
		}
		_, err := w.Write(res.png)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload switches the view. History is fetched again and the feed reconnected.
func (s *Session) Reload(ctx context.Context, params ViewParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	req := reloadRequest{params: params, done: make(chan struct{})}
	select {
	case s.reloads <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. The overlays are cleared on exit.
func (s *Session) Run(ctx context.Context) error {
	historyCh := make(chan historyResult, 4)

	s.apply(s.params)
	s.requestHistory(ctx, historyCh)
	msgs, errs, reconnect := s.connect(ctx)

	defer func() {
		s.stopFeed()
		s.manager.Clear()
		s.setFeed(FeedDisconnected, nil)
		s.publish()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.dispatch(msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warn("Feed disconnected", applogger.Error(err), applogger.Duration("retry_in_ms", s.cfg.ReconnectDelay))
			s.metrics.RecordError("feed_read")
			s.setFeed(FeedError, err)
			msgs, errs = nil, nil
			reconnect = time.After(s.cfg.ReconnectDelay)

		case <-reconnect:
			msgs, errs, reconnect = s.connect(ctx)

		case res := <-historyCh:
			s.applyHistory(res)

		case req := <-s.redraws:
			req.done <- s.render()

		case req := <-s.reloads:
			s.log.Info("Reloading view",
				applogger.String("symbol", req.params.Symbol),
				applogger.String("timeframe", string(req.params.Timeframe)),
			)
			s.apply(req.params)
			s.requestHistory(ctx, historyCh)
			msgs, errs, reconnect = s.connect(ctx)
			close(req.done)
		}
	}
}

func (s *Session) apply(p ViewParams) {
	s.params = p
	s.surface.SetBarWidth(p.Timeframe.Duration())
	s.surface.SetTitle(fmt.Sprintf("%s %s", p.Symbol, p.Timeframe))

	s.mu.Lock()
	s.status.Symbol = p.Symbol
	s.status.Timeframe = string(p.Timeframe)
	s.mu.Unlock()
}

// connect opens the feed for the current params. On failure it returns a
// timer for the next attempt.
func (s *Session) connect(ctx context.Context) (<-chan models.FeedMessage, <-chan error, <-chan time.Time) {
	s.stopFeed()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	err := s.stream.Connect(dialCtx, s.params.Symbol, s.params.Timeframe)
	cancel()
	if err != nil {
		s.log.Warn("Feed connect failed", applogger.Error(err), applogger.String("symbol", s.params.Symbol))
		s.metrics.RecordError("feed_connect")
		s.setFeed(FeedError, err)
		return nil, nil, time.After(s.cfg.ReconnectDelay)
	}

	readCtx, cancelRead := context.WithCancel(ctx)
	s.cancelFeed = cancelRead
	msgs, errs := s.stream.Read(readCtx)
	s.setFeed(FeedConnected, nil)
	s.log.Info("Feed connected", applogger.String("symbol", s.params.Symbol), applogger.String("timeframe", string(s.params.Timeframe)))
	return msgs, errs, nil
}

func (s *Session) stopFeed() {
	if s.cancelFeed != nil {
		s.cancelFeed()
		s.cancelFeed = nil
	}
	_ = s.stream.Close()
}

func (s *Session) requestHistory(ctx context.Context, out chan<- historyResult) {
	s.requestID++
	id, p := s.requestID, s.params
	to := s.now()
	from := to.Add(-p.Window)

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		start := time.Now()
		bars, err := s.history.Fetch(fetchCtx, p.Symbol, p.Timeframe, from, to)
		s.metrics.RecordLatency("history_fetch_seconds", time.Since(start).Seconds())
		select {
		case out <- historyResult{id: id, params: p, bars: bars, err: err}:
		case <-ctx.Done():
		}
	}()
}

// applyHistory installs every result in arrival order, stale ones included.
func (s *Session) applyHistory(res historyResult) {
	if res.err != nil {
		s.log.Error("History fetch failed", applogger.Error(res.err), applogger.Int("request", res.id))
		s.metrics.RecordError("history_fetch")
		return
	}
	if res.id < s.requestID {
		s.log.Warn("Applying stale history result",
			applogger.Int("request", res.id),
			applogger.Int("latest", s.requestID),
			applogger.String("symbol", res.params.Symbol),
		)
	}
	s.surface.SetBars(res.bars)
	s.publish()
}

func (s *Session) dispatch(msg models.FeedMessage) {
	switch msg.Type {
	case models.MessageMarkers:
		if _, err := s.manager.ApplyRaw(msg.Data); err != nil {
			s.log.Warn("Dropping marker batch", applogger.Error(err))
			return
		}
	case models.MessageCandle:
		var b models.Bar
		if err := json.Unmarshal(msg.Data, &b); err != nil {
			s.log.Warn("Dropping malformed candle", applogger.Error(err))
			s.metrics.RecordError("candle_decode")
			return
		}
		if !s.surface.UpsertBar(b) {
			s.log.Debug("Ignoring out of order candle", applogger.Int64("time", b.Time))
			return
		}
	default:
		s.log.Debug("Ignoring feed message", applogger.String("type", msg.Type))
		return
	}
	s.publish()
}

func (s *Session) render() renderResult {
	start := time.Now()
	var buf bytes.Buffer
	if err := s.surface.Render(&buf); err != nil {
		s.metrics.RecordError("render")
		return renderResult{err: err}
	}
	s.metrics.RecordLatency("render_seconds", time.Since(start).Seconds())
	return renderResult{png: buf.Bytes()}
}

func (s *Session) setFeed(st FeedStatus, err error) {
	s.metrics.RecordFeedStatus(string(st))
	s.mu.Lock()
	s.status.Feed = st
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.status.UpdatedAt = s.now()
	s.mu.Unlock()
}

func (s *Session) publish() {
	gen := s.manager.Current()
	gen.Overlays = append([]string(nil), gen.Overlays...)
	s.mu.Lock()
	s.status.Bars = s.surface.Len()
	s.status.State = s.manager.State().String()
	s.status.Generation = gen
	s.status.UpdatedAt = s.now()
	s.mu.Unlock()
}
