package surface

import (
	"math"
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	_ chart.Series = &candleSeries{}

	colorUp   = drawing.Color{R: 38, G: 166, B: 154, A: 255}
	colorDown = drawing.Color{R: 239, G: 83, B: 80, A: 255}
)

// candleSeries draws OHLC bars. Range computation is left to the surface,
// which sets explicit axis ranges.
type candleSeries struct {
	name  string
	bars  []models.Bar
	width time.Duration
}

func (cs *candleSeries) GetName() string { return cs.name }

func (cs *candleSeries) GetStyle() chart.Style {
	return chart.Style{StrokeWidth: 1.0}
}

func (cs *candleSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }

func (cs *candleSeries) Validate() error { return nil }

func (cs *candleSeries) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	if len(cs.bars) == 0 || xrange.GetDelta() == 0 || yrange.GetDelta() == 0 {
		return
	}
	// body width is 70% of the bar slot, at least one pixel
	slot := float64(xrange.GetDomain()) * float64(cs.width) / xrange.GetDelta()
	half := int(math.Max(1, slot*0.35))

	for _, b := range cs.bars {
		x := box.Left + xrange.Translate(chart.TimeToFloat64(b.At().Add(cs.width/2)))
		yHigh := box.Bottom - yrange.Translate(b.High)
		yLow := box.Bottom - yrange.Translate(b.Low)
		yOpen := box.Bottom - yrange.Translate(b.Open)
		yClose := box.Bottom - yrange.Translate(b.Close)

		color := colorUp
		if b.Close < b.Open {
			color = colorDown
		}

		r.ResetStyle()
		r.SetStrokeColor(color)
		r.SetStrokeWidth(1)
		r.MoveTo(x, yHigh)
		r.LineTo(x, yLow)
		r.Stroke()

		top, bottom := min(yOpen, yClose), max(yOpen, yClose)
		if bottom == top {
			bottom = top + 1
		}
		r.ResetStyle()
		r.SetFillColor(color)
		r.SetStrokeColor(color)
		r.SetStrokeWidth(1)
		r.MoveTo(x-half, top)
		r.LineTo(x+half, top)
		r.LineTo(x+half, bottom)
		r.LineTo(x-half, bottom)
		r.Close()
		r.FillStroke()
	}
}
