package surface

import (
	"time"

	"SessionOverlay/internal/domain/models"
	"SessionOverlay/internal/overlay"

	"github.com/wcharczuk/go-chart/v2"
)

var (
	_ chart.Series = &overlayLayer{}
	_ overlay.Axes = renderAxes{}
)

// overlayLayer is the last series of the chart; it projects and renders the
// attached overlays against the ranges of the current render. visible spans
// the whole x axis, through the close of the last bar.
type overlayLayer struct {
	overlays []overlay.Primitive
	visible  models.TimeRange
	ready    bool
}

func (l *overlayLayer) GetName() string           { return "overlays" }
func (l *overlayLayer) GetStyle() chart.Style     { return chart.Style{StrokeWidth: 1.0} }
func (l *overlayLayer) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (l *overlayLayer) Validate() error           { return nil }

func (l *overlayLayer) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	axes := renderAxes{box: box, xr: xrange, yr: yrange, visible: l.visible, ready: l.ready}
	for _, p := range l.overlays {
		p.Project(axes)
		p.Render(r)
	}
}

// renderAxes maps domain values through the ranges go-chart computed for one
// render. Values outside the ranges are unmapped.
type renderAxes struct {
	box     chart.Box
	xr, yr  chart.Range
	visible models.TimeRange
	ready   bool
}

func (a renderAxes) TimeToPixel(t time.Time) (float64, bool) {
	if !a.ready || a.xr == nil || a.xr.GetDelta() == 0 {
		return 0, false
	}
	v := chart.TimeToFloat64(t)
	if v < a.xr.GetMin() || v > a.xr.GetMax() {
		return 0, false
	}
	return float64(a.box.Left + a.xr.Translate(v)), true
}

func (a renderAxes) PriceToPixel(price float64) (float64, bool) {
	if !a.ready || a.yr == nil || a.yr.GetDelta() == 0 {
		return 0, false
	}
	if price < a.yr.GetMin() || price > a.yr.GetMax() {
		return 0, false
	}
	return float64(a.box.Bottom - a.yr.Translate(price)), true
}

func (a renderAxes) PriceRange() (float64, float64, bool) {
	if !a.ready || a.yr == nil || a.yr.GetDelta() == 0 {
		return 0, 0, false
	}
	return a.yr.GetMin(), a.yr.GetMax(), true
}

func (a renderAxes) VisibleRange() (models.TimeRange, bool) {
	return a.visible, a.ready
}
