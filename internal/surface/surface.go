// Package surface is the chart the overlays are drawn on: a candlestick view
// rendered with go-chart plus an overlay layer that re-projects every
// attached primitive on each render.
package surface

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"time"

	"SessionOverlay/internal/domain/models"
	"SessionOverlay/internal/overlay"

	"github.com/wcharczuk/go-chart/v2"
)

var (
	ErrAlreadyAttached = errors.New("overlay already attached")
	ErrNotAttached     = errors.New("overlay not attached")
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultWindow = 240
)

// Surface keeps bars and attached overlays. It is owned by a single goroutine.
type Surface struct {
	width    int
	height   int
	window   int
	barWidth time.Duration
	loc      *time.Location
	title    string

	bars     []models.Bar
	overlays []overlay.Primitive
}

type Option func(*Surface)

func WithSize(width, height int) Option {
	return func(s *Surface) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithWindow sets how many of the newest bars are visible.
func WithWindow(n int) Option {
	return func(s *Surface) {
		if n > 0 {
			s.window = n
		}
	}
}

func WithBarWidth(d time.Duration) Option {
	return func(s *Surface) {
		if d > 0 {
			s.barWidth = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Surface) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithTitle(title string) Option {
	return func(s *Surface) { s.title = title }
}

func New(opts ...Option) *Surface {
	s := &Surface{
		width:    defaultWidth,
		height:   defaultHeight,
		window:   defaultWindow,
		barWidth: time.Minute,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBars replaces the bar history. Input order does not matter.
func (s *Surface) SetBars(bars []models.Bar) {
	s.bars = slices.Clone(bars)
	sort.SliceStable(s.bars, func(i, j int) bool { return s.bars[i].Time < s.bars[j].Time })
}

// UpsertBar updates the bar with the same time or appends a newer one.
// Bars older than the last one are ignored and reported as false.
func (s *Surface) UpsertBar(b models.Bar) bool {
	n := len(s.bars)
	switch {
	case n == 0 || b.Time > s.bars[n-1].Time:
		s.bars = append(s.bars, b)
	case b.Time == s.bars[n-1].Time:
		s.bars[n-1] = b
	default:
		return false
	}
	return true
}

func (s *Surface) Bars() []models.Bar { return slices.Clone(s.bars) }

func (s *Surface) Len() int { return len(s.bars) }

// SetBarWidth changes the timeframe the bars are drawn with.
func (s *Surface) SetBarWidth(d time.Duration) {
	if d > 0 {
		s.barWidth = d
	}
}

func (s *Surface) SetTitle(title string) { s.title = title }

func (s *Surface) Attach(p overlay.Primitive) error {
	if slices.Contains(s.overlays, p) {
		return fmt.Errorf("%s: %w", p.Name(), ErrAlreadyAttached)
	}
	s.overlays = append(s.overlays, p)
	return nil
}

func (s *Surface) Detach(p overlay.Primitive) error {
	i := slices.Index(s.overlays, p)
	if i < 0 {
		return fmt.Errorf("%s: %w", p.Name(), ErrNotAttached)
	}
	s.overlays = slices.Delete(s.overlays, i, i+1)
	return nil
}

// Overlays returns the attached primitives in attach order.
func (s *Surface) Overlays() []overlay.Primitive { return slices.Clone(s.overlays) }

func (s *Surface) visibleBars() []models.Bar {
	if len(s.bars) > s.window {
		return s.bars[len(s.bars)-s.window:]
	}
	return s.bars
}

// VisibleRange spans the open times of the first and last visible bar.
func (s *Surface) VisibleRange() (models.TimeRange, bool) {
	vb := s.visibleBars()
	if len(vb) == 0 {
		return models.TimeRange{}, false
	}
	return models.TimeRange{From: vb[0].At(), To: vb[len(vb)-1].At()}, true
}

// Render draws bars and overlays as PNG.
func (s *Surface) Render(w io.Writer) error {
	if err := s.chart().Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func (s *Surface) chart() chart.Chart {
	vb := s.visibleBars()
	vr, ok := s.VisibleRange()

	var xr, yr *chart.ContinuousRange
	if ok {
		lo, hi := math.MaxFloat64, -math.MaxFloat64
		for _, b := range vb {
			lo, hi = math.Min(lo, b.Low), math.Max(hi, b.High)
		}
		if hi <= lo {
			lo, hi = lo-1, hi+1
		}
		pad := (hi - lo) * 0.05
		xr = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(vr.From),
			Max: chart.TimeToFloat64(vr.To.Add(s.barWidth)),
		}
		yr = &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	} else {
		now := time.Now().Truncate(time.Hour)
		xr = &chart.ContinuousRange{Min: chart.TimeToFloat64(now), Max: chart.TimeToFloat64(now.Add(time.Hour))}
		yr = &chart.ContinuousRange{Min: 0, Max: 1}
	}

	loc := s.loc
	return chart.Chart{
		Title:  s.title,
		Width:  s.width,
		Height: s.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Range: xr,
			ValueFormatter: func(v interface{}) string {
				if f, isFloat := v.(float64); isFloat {
					return time.Unix(0, int64(f)).In(loc).Format("01-02 15:04")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Range: yr,
			ValueFormatter: func(v interface{}) string {
				if f, isFloat := v.(float64); isFloat {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			&candleSeries{name: "bars", bars: vb, width: s.barWidth},
			&overlayLayer{overlays: s.overlays, visible: models.TimeRange{From: vr.From, To: vr.To.Add(s.barWidth)}, ready: ok},
		},
	}
}
