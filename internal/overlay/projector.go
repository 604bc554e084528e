// Package overlay holds the drawable primitives laid over the price chart and
// the projection from domain coordinates (instant, price) to pixels.
package overlay

import (
	"math"
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Axes is the current view of the chart surface. Any method may report false
// when the value is off-screen or the axis is not initialised yet.
type Axes interface {
	TimeToPixel(t time.Time) (float64, bool)
	PriceToPixel(price float64) (float64, bool)
	VisibleRange() (models.TimeRange, bool)
	PriceRange() (lo, hi float64, ok bool)
}

// Point is a pixel position.
type Point struct {
	X, Y int
}

// Projector maps domain anchors through the Axes of one redraw.
type Projector struct {
	axes Axes
}

func NewProjector(axes Axes) Projector { return Projector{axes: axes} }

// Project maps a single anchor.
func (p Projector) Project(t time.Time, price decimal.Decimal) (Point, bool) {
	if p.axes == nil {
		return Point{}, false
	}
	x, ok := p.axes.TimeToPixel(t)
	if !ok || !finite(x) {
		return Point{}, false
	}
	y, ok := p.axes.PriceToPixel(price.InexactFloat64())
	if !ok || !finite(y) {
		return Point{}, false
	}
	return Point{X: int(math.Round(x)), Y: int(math.Round(y))}, true
}

// Clip narrows [from, to] to the visible time range. It reports false when the
// range is unknown or nothing of the interval is visible.
func (p Projector) Clip(from, to time.Time) (time.Time, time.Time, bool) {
	if p.axes == nil {
		return from, to, false
	}
	vr, ok := p.axes.VisibleRange()
	if !ok {
		return from, to, false
	}
	if from.Before(vr.From) {
		from = vr.From
	}
	if to.After(vr.To) {
		to = vr.To
	}
	if !from.Before(to) {
		return from, to, false
	}
	return from, to, true
}

// ClipPrice narrows [low, high] to the visible price range. It reports false
// when the range is unknown or the band is entirely off-screen.
func (p Projector) ClipPrice(high, low decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool) {
	if p.axes == nil {
		return high, low, false
	}
	lo, hi, ok := p.axes.PriceRange()
	if !ok || !finite(lo) || !finite(hi) {
		return high, low, false
	}
	if high.LessThan(low) {
		high, low = low, high
	}
	vlo, vhi := decimal.NewFromFloat(lo), decimal.NewFromFloat(hi)
	if high.LessThan(vlo) || low.GreaterThan(vhi) {
		return high, low, false
	}
	return decimal.Min(high, vhi), decimal.Max(low, vlo), true
}

// Rect projects the two corners of a time/price box after clipping it to the
// view. The result is normalised so that Min is the top-left corner.
func (p Projector) Rect(from, to time.Time, high, low decimal.Decimal) (Rect, bool) {
	from, to, ok := p.Clip(from, to)
	if !ok {
		return Rect{}, false
	}
	high, low, ok = p.ClipPrice(high, low)
	if !ok {
		return Rect{}, false
	}
	a, ok := p.Project(from, high)
	if !ok {
		return Rect{}, false
	}
	b, ok := p.Project(to, low)
	if !ok {
		return Rect{}, false
	}
	return Rect{
		Min: Point{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
		Max: Point{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
	}, true
}

// HLine projects a horizontal segment at price between two instants.
func (p Projector) HLine(from, to time.Time, price decimal.Decimal) (Segment, bool) {
	from, to, ok := p.Clip(from, to)
	if !ok {
		return Segment{}, false
	}
	a, ok := p.Project(from, price)
	if !ok {
		return Segment{}, false
	}
	b, ok := p.Project(to, price)
	if !ok {
		return Segment{}, false
	}
	return Segment{A: a, B: b}, true
}

// Rect is a pixel box.
type Rect struct {
	Min, Max Point
}

func (r Rect) Width() int  { return r.Max.X - r.Min.X }
func (r Rect) Height() int { return r.Max.Y - r.Min.Y }

// Empty reports a box with no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Segment is a pixel line.
type Segment struct {
	A, B Point
}

// Empty reports a zero-length line.
func (s Segment) Empty() bool { return s.A == s.B }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

