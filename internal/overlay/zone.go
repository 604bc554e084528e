package overlay

import (
	"fmt"

	"SessionOverlay/internal/domain/models"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ZoneOverlay draws one resolved zone: a low-alpha box plus a dashed midline.
type ZoneOverlay struct {
	zone  models.ResolvedZone
	color drawing.Color

	rect   Rect
	mapped bool
}

func NewZoneOverlay(z models.ResolvedZone) *ZoneOverlay {
	color := ColorBuy
	if z.Kind == models.KindZoneSell {
		color = ColorSell
	}
	return &ZoneOverlay{zone: z, color: color}
}

func (o *ZoneOverlay) Name() string {
	return fmt.Sprintf("zone/%s/%d", o.zone.Kind, o.zone.Seq)
}

// Zone returns the domain definition.
func (o *ZoneOverlay) Zone() models.ResolvedZone { return o.zone }

func (o *ZoneOverlay) Project(axes Axes) {
	o.rect, o.mapped = NewProjector(axes).Rect(o.zone.Start, o.zone.End, o.zone.PriceHigh, o.zone.PriceLow)
}

func (o *ZoneOverlay) Render(c Canvas) {
	if !o.mapped || o.rect.Empty() {
		return
	}
	r := o.rect

	c.ResetStyle()
	c.SetFillColor(rgba(o.color.R, o.color.G, o.color.B, zoneFillAlpha))
	c.MoveTo(r.Min.X, r.Min.Y)
	c.LineTo(r.Max.X, r.Min.Y)
	c.LineTo(r.Max.X, r.Max.Y)
	c.LineTo(r.Min.X, r.Max.Y)
	c.Close()
	c.Fill()

	mid := r.Min.Y + r.Height()/2
	drawSegment(c, Segment{A: Point{X: r.Min.X, Y: mid}, B: Point{X: r.Max.X, Y: mid}}, LineStyle{
		Color: o.color,
		Width: 1,
		Dash:  []float64{4, 3},
	})
}
