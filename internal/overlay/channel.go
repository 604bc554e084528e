package overlay

import (
	"fmt"

	"SessionOverlay/internal/domain/models"
)

var (
	centerStyle = LineStyle{Color: ColorCenterLevel, Width: 2, Dash: []float64{6, 4}}
	levelStyle  = LineStyle{Color: ColorLevel, Width: 1}
	edgeStyle   = LineStyle{Color: ColorLevelEdge, Width: 1}
)

type levelSegments struct {
	center, top, bottom Segment
	ok                  [3]bool
}

// ChannelOverlay draws the levels of one reference channel as horizontal segments.
type ChannelOverlay struct {
	channel models.Channel

	segments []levelSegments
}

func NewChannelOverlay(ch models.Channel) *ChannelOverlay {
	return &ChannelOverlay{channel: ch}
}

func (o *ChannelOverlay) Name() string {
	return fmt.Sprintf("channel/%s/%s", o.channel.Date, o.channel.Reference.StringFixed(2))
}

// Channel returns the domain definition.
func (o *ChannelOverlay) Channel() models.Channel { return o.channel }

func (o *ChannelOverlay) Project(axes Axes) {
	p := NewProjector(axes)
	o.segments = o.segments[:0]
	for _, lvl := range o.channel.Levels {
		var s levelSegments
		s.center, s.ok[0] = p.HLine(o.channel.From, o.channel.To, lvl.Center)
		s.top, s.ok[1] = p.HLine(o.channel.From, o.channel.To, lvl.Top)
		s.bottom, s.ok[2] = p.HLine(o.channel.From, o.channel.To, lvl.Bottom)
		o.segments = append(o.segments, s)
	}
}

func (o *ChannelOverlay) Render(c Canvas) {
	for i, s := range o.segments {
		style := levelStyle
		if o.channel.Levels[i].OffsetIndex == 0 {
			style = centerStyle
		}
		if s.ok[1] {
			drawSegment(c, s.top, edgeStyle)
		}
		if s.ok[2] {
			drawSegment(c, s.bottom, edgeStyle)
		}
		if s.ok[0] {
			drawSegment(c, s.center, style)
		}
	}
}
