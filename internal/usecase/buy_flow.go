package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	applogger "SessionOverlay/pkg/logger"
)

var ErrInvalidDay = errors.New("invalid buy flow day")

// BuyFlowUseCase turns the buy flow events of a day into lines aligned to
// the session bars.
type BuyFlowUseCase struct {
	bars    domrepo.BarStore
	events  domrepo.FlowEventStore
	loc     *time.Location
	open    time.Duration
	end     time.Duration
	log     *applogger.Logger
	metrics domrepo.Metrics
}

func NewBuyFlowUseCase(bars domrepo.BarStore, events domrepo.FlowEventStore, loc *time.Location, sessionOpen, sessionClose time.Duration, log *applogger.Logger, metrics domrepo.Metrics) *BuyFlowUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &BuyFlowUseCase{
		bars:    bars,
		events:  events,
		loc:     loc,
		open:    sessionOpen,
		end:     sessionClose,
		log:     log.Component("buy_flow"),
		metrics: metrics,
	}
}

// Lines returns one point per bar inside every on/off range of the day,
// never nil. A range still on after the last bar ends there.
func (uc *BuyFlowUseCase) Lines(ctx context.Context, symbol string, tf domrepo.Timeframe, date string) ([]models.FlowPoint, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDay, date)
	}
	day := models.CivilDate{Year: d.Year(), Month: d.Month(), Day: d.Day()}

	bars, err := uc.bars.Range(ctx, symbol, tf, day.In(uc.open, uc.loc), day.In(uc.end, uc.loc))
	if err != nil {
		uc.metrics.RecordError("buy_flow_bars")
		return nil, fmt.Errorf("buy flow bars %s %s: %w", symbol, tf, err)
	}
	if len(bars) == 0 {
		return []models.FlowPoint{}, nil
	}
	events, err := uc.events.Events(ctx, symbol, day)
	if err != nil {
		uc.metrics.RecordError("buy_flow_events")
		return nil, fmt.Errorf("buy flow events %s %s: %w", symbol, day, err)
	}

	points := BuyFlowLines(bars, events)
	uc.log.Debug("Buy flow built",
		applogger.String("symbol", symbol),
		applogger.String("day", day.String()),
		applogger.Int("events", len(events)),
		applogger.Int("points", len(points)),
	)
	return points, nil
}

// BuyFlowLines pairs each on with the next off. Repeated signals of the
// same kind are ignored and events after the last bar never open a range.
func BuyFlowLines(bars []models.Bar, events []models.FlowEvent) []models.FlowPoint {
	out := []models.FlowPoint{}
	if len(bars) == 0 {
		return out
	}
	bars = append([]models.Bar(nil), bars...)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	events = append([]models.FlowEvent(nil), events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	last := bars[len(bars)-1].At()

	segment := func(from, to time.Time) {
		var first *models.Bar
		for i := range bars {
			at := bars[i].At()
			if at.Before(from) || at.After(to) {
				continue
			}
			if first == nil {
				first = &bars[i]
			}
			out = append(out, models.FlowPoint{Time: bars[i].Time, Value: first.Close})
		}
	}

	var start time.Time
	active := false
	for _, ev := range events {
		if ev.At.After(last) {
			break
		}
		switch {
		case ev.Signal == models.FlowBuyOn && !active:
			active, start = true, ev.At
		case ev.Signal == models.FlowBuyOff && active:
			active = false
			segment(start, ev.At)
		}
	}
	if active {
		segment(start, last)
	}
	return out
}
