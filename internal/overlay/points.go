package overlay

import (
	"fmt"

	"SessionOverlay/internal/domain/models"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PointSeriesOverlay draws one direction's signal points as filled markers with no connecting line.
type PointSeriesOverlay struct {
	direction models.Direction
	points    []models.SignalPoint
	color     drawing.Color

	pixels []Point
}

func NewPointSeriesOverlay(dir models.Direction, points []models.SignalPoint) *PointSeriesOverlay {
	color := ColorSignalUp
	if dir == models.DirectionDown {
		color = ColorSignalDown
	}
	cp := make([]models.SignalPoint, len(points))
	copy(cp, points)
	return &PointSeriesOverlay{direction: dir, points: cp, color: color}
}

func (o *PointSeriesOverlay) Name() string {
	return fmt.Sprintf("signals/%s", o.direction)
}

// Points returns the series in insertion order.
func (o *PointSeriesOverlay) Points() []models.SignalPoint { return o.points }

func (o *PointSeriesOverlay) Project(axes Axes) {
	p := NewProjector(axes)
	o.pixels = o.pixels[:0]
	vr, haveRange := models.TimeRange{}, false
	if axes != nil {
		vr, haveRange = axes.VisibleRange()
	}
	for _, sp := range o.points {
		if haveRange && (sp.Instant.Before(vr.From) || sp.Instant.After(vr.To)) {
			continue
		}
		pt, ok := p.Project(sp.Instant, sp.Price)
		if !ok {
			continue
		}
		o.pixels = append(o.pixels, pt)
	}
}

func (o *PointSeriesOverlay) Render(c Canvas) {
	if len(o.pixels) == 0 {
		return
	}
	c.ResetStyle()
	c.SetFillColor(o.color)
	c.SetStrokeColor(o.color)
	c.SetStrokeWidth(1)
	for _, pt := range o.pixels {
		c.Circle(signalRadius, pt.X, pt.Y)
		c.FillStroke()
	}
}
