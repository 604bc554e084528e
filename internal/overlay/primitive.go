package overlay

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Canvas is the subset of a chart renderer the overlays draw with.
// go-chart's chart.Renderer satisfies it.
type Canvas interface {
	ResetStyle()
	SetStrokeColor(c drawing.Color)
	SetFillColor(c drawing.Color)
	SetStrokeWidth(width float64)
	SetStrokeDashArray(dashArray []float64)
	MoveTo(x, y int)
	LineTo(x, y int)
	Close()
	Stroke()
	Fill()
	FillStroke()
	Circle(radius float64, x, y int)
}

// Primitive is a drawable overlay. Project re-derives pixel coordinates from
// the domain anchors for the current view; Render draws the last projection
// and draws nothing when it was unmapped or degenerate.
type Primitive interface {
	Name() string
	Project(axes Axes)
	Render(c Canvas)
}

// LineStyle describes a stroked segment.
type LineStyle struct {
	Color drawing.Color
	Width float64
	Dash  []float64
}

func (s LineStyle) apply(c Canvas) {
	c.ResetStyle()
	c.SetStrokeColor(s.Color)
	c.SetStrokeWidth(s.Width)
	c.SetStrokeDashArray(s.Dash)
}

func drawSegment(c Canvas, s Segment, style LineStyle) {
	if s.Empty() {
		return
	}
	style.apply(c)
	c.MoveTo(s.A.X, s.A.Y)
	c.LineTo(s.B.X, s.B.Y)
	c.Stroke()
}

// rgba builds a color from CSS-like components, alpha in [0,1].
func rgba(r, g, b uint8, a float64) drawing.Color {
	return drawing.Color{R: r, G: g, B: b, A: uint8(a*255 + 0.5)}
}

var (
	ColorSell        = rgba(255, 0, 0, 1)
	ColorBuy         = rgba(16, 253, 8, 1)
	ColorCenterLevel = rgba(255, 255, 16, 1)
	ColorLevel       = rgba(200, 162, 200, 0.45)
	ColorLevelEdge   = rgba(255, 0, 255, 1)
	ColorSignalUp    = rgba(16, 253, 8, 1)
	ColorSignalDown  = rgba(255, 0, 0, 1)
)

const (
	zoneFillAlpha = 0.18
	signalRadius  = 4
)
