package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	applogger "SessionOverlay/pkg/logger"
)

// CandlePoller pushes the newest bar of a channel at a fixed interval.
type CandlePoller struct {
	store    domrepo.BarStore
	interval time.Duration
	backoff  time.Duration
	log      *applogger.Logger
	metrics  domrepo.Metrics
}

func NewCandlePoller(store domrepo.BarStore, interval, backoff time.Duration, log *applogger.Logger, metrics domrepo.Metrics) *CandlePoller {
	if interval <= 0 {
		interval = time.Second
	}
	if backoff <= 0 {
		backoff = 10 * time.Second
	}
	return &CandlePoller{
		store:    store,
		interval: interval,
		backoff:  backoff,
		log:      log.Component("poller"),
		metrics:  metrics,
	}
}

// Poll runs until ctx is done. The current bar is re-sent on every tick
// while it is still forming; older bars are never sent.
func (p *CandlePoller) Poll(ctx context.Context, symbol string, tf domrepo.Timeframe, emit func(models.FeedMessage)) {
	var last int64
	p.log.Debug("Polling started", applogger.String("symbol", symbol), applogger.String("timeframe", string(tf)))
	defer p.log.Debug("Polling stopped", applogger.String("symbol", symbol), applogger.String("timeframe", string(tf)))

	for {
		wait := p.interval
		bar, err := p.store.Latest(ctx, symbol, tf)
		switch {
		case err == nil:
			if bar.Time >= last {
				last = bar.Time
				if data, err := json.Marshal(bar); err == nil {
					emit(models.FeedMessage{Type: models.MessageCandle, Data: data})
				}
			}
		case errors.Is(err, domrepo.ErrNoBars):
		case ctx.Err() != nil:
			return
		default:
			p.metrics.RecordError("poll_latest")
			p.log.Warn("Latest bar failed",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
			wait = p.backoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
