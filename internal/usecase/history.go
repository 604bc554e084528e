package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/pkg/cache"
	applogger "SessionOverlay/pkg/logger"
	"SessionOverlay/pkg/util"
)

var ErrInvalidRange = errors.New("invalid history range")

// HistoryParams are the raw query values of a history request. Timestamps
// without an offset are read in the exchange time zone.
type HistoryParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Start     string
	End       string
}

// HistoryUseCase serves bars for a time range, memoised in a cache.
type HistoryUseCase struct {
	store   domrepo.BarStore
	cache   cache.Service
	ttl     time.Duration
	loc     *time.Location
	log     *applogger.Logger
	metrics domrepo.Metrics
}

func NewHistoryUseCase(store domrepo.BarStore, c cache.Service, ttl time.Duration, loc *time.Location, log *applogger.Logger, metrics domrepo.Metrics) *HistoryUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryUseCase{store: store, cache: c, ttl: ttl, loc: loc, log: log.Component("history"), metrics: metrics}
}

// Bars returns the bars of [start, end) in ascending order, never nil.
func (uc *HistoryUseCase) Bars(ctx context.Context, p HistoryParams) ([]models.Bar, error) {
	from, ok := util.ParseTimeIn(p.Start, uc.loc)
	if !ok {
		return nil, fmt.Errorf("%w: start %q is not ISO-8601", ErrInvalidRange, p.Start)
	}
	to, ok := util.ParseTimeIn(p.End, uc.loc)
	if !ok {
		return nil, fmt.Errorf("%w: end %q is not ISO-8601", ErrInvalidRange, p.End)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidRange)
	}

	load := func(ctx context.Context) ([]models.Bar, error) {
		start := time.Now()
		bars, err := uc.store.Range(ctx, p.Symbol, p.Timeframe, from, to)
		uc.metrics.RecordLatency("history_query_seconds", time.Since(start).Seconds())
		if err != nil {
			uc.metrics.RecordError("history_query")
			return nil, fmt.Errorf("history %s %s: %w", p.Symbol, p.Timeframe, err)
		}
		if bars == nil {
			bars = []models.Bar{}
		}
		return bars, nil
	}

	if uc.cache == nil {
		return load(ctx)
	}
	key := cache.GenerateKeyWithParams("history", p.Symbol, p.Timeframe, from.Unix(), to.Unix())
	bars, hit, err := cache.GetOrLoad(ctx, uc.cache, key, uc.ttl, load)
	if err != nil {
		return nil, err
	}
	if hit {
		uc.log.Debug("History served from cache", applogger.String("key", key), applogger.Int("bars", len(bars)))
	}
	if bars == nil {
		bars = []models.Bar{}
	}
	return bars, nil
}
