package surface

import (
	"bytes"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"
	"SessionOverlay/internal/overlay"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	pngMagic = []byte{0x89, 'P', 'N', 'G'}
	t0       = time.Unix(1_700_000_000, 0)
)

func bars(n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := 5000 + float64(i%7)
		out = append(out, models.Bar{
			Time:  t0.Add(time.Duration(i) * time.Minute).Unix(),
			Open:  p,
			High:  p + 3,
			Low:   p - 3,
			Close: p + 1,
		})
	}
	return out
}

func TestSurface_RenderWithoutBars(t *testing.T) {
	s := New(WithSize(320, 200))
	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	_, ok := s.VisibleRange()
	assert.False(t, ok)
}

func TestSurface_RenderIsIdempotent(t *testing.T) {
	s := New(WithSize(320, 200))
	s.SetBars(bars(30))
	require.NoError(t, s.Attach(overlay.NewZoneOverlay(models.ResolvedZone{
		Kind:      models.KindZoneSell,
		Start:     t0.Add(5 * time.Minute),
		End:       t0.Add(20 * time.Minute),
		PriceHigh: decimal.NewFromInt(5004),
		PriceLow:  decimal.NewFromInt(5000),
	})))
	require.NoError(t, s.Attach(overlay.NewPointSeriesOverlay(models.DirectionUp, []models.SignalPoint{
		{Instant: t0.Add(10 * time.Minute), Price: decimal.NewFromInt(5001)},
	})))

	var first, second bytes.Buffer
	require.NoError(t, s.Render(&first))
	require.NoError(t, s.Render(&second))
	assert.True(t, bytes.HasPrefix(first.Bytes(), pngMagic))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestSurface_AttachDetach(t *testing.T) {
	s := New()
	p := overlay.NewPointSeriesOverlay(models.DirectionDown, nil)

	require.NoError(t, s.Attach(p))
	assert.ErrorIs(t, s.Attach(p), ErrAlreadyAttached)
	assert.Len(t, s.Overlays(), 1)

	require.NoError(t, s.Detach(p))
	assert.ErrorIs(t, s.Detach(p), ErrNotAttached)
	assert.Empty(t, s.Overlays())
}

func TestSurface_UpsertBar(t *testing.T) {
	s := New()
	s.SetBars([]models.Bar{{Time: 120, Close: 2}, {Time: 60, Close: 1}})

	assert.True(t, s.UpsertBar(models.Bar{Time: 120, Close: 3}), "same time replaces")
	assert.True(t, s.UpsertBar(models.Bar{Time: 180, Close: 4}), "newer appends")
	assert.False(t, s.UpsertBar(models.Bar{Time: 60, Close: 9}), "older is ignored")

	got := s.Bars()
	require.Len(t, got, 3)
	assert.Equal(t, []int64{60, 120, 180}, []int64{got[0].Time, got[1].Time, got[2].Time})
	assert.Equal(t, 3.0, got[1].Close)
}

func TestSurface_VisibleRangeFollowsWindow(t *testing.T) {
	s := New(WithWindow(10))
	s.SetBars(bars(30))

	vr, ok := s.VisibleRange()
	require.True(t, ok)
	assert.Equal(t, t0.Add(20*time.Minute).Unix(), vr.From.Unix())
	assert.Equal(t, t0.Add(29*time.Minute).Unix(), vr.To.Unix())
}

func TestRenderAxes(t *testing.T) {
	axes := renderAxes{
		box: chart.Box{Top: 0, Left: 10, Right: 110, Bottom: 110},
		xr: &chart.ContinuousRange{
			Min:    chart.TimeToFloat64(t0),
			Max:    chart.TimeToFloat64(t0.Add(100 * time.Minute)),
			Domain: 100,
		},
		yr:    &chart.ContinuousRange{Min: 0, Max: 100, Domain: 100},
		ready: true,
	}

	x, ok := axes.TimeToPixel(t0.Add(50 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 60.0, x)

	_, ok = axes.TimeToPixel(t0.Add(-time.Minute))
	assert.False(t, ok)

	y, ok := axes.PriceToPixel(25)
	require.True(t, ok)
	assert.Equal(t, 85.0, y)

	_, ok = axes.PriceToPixel(200)
	assert.False(t, ok, "above the plot is unmapped")

	lo, hi, ok := axes.PriceRange()
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 100}, [2]float64{lo, hi})

	axes.ready = false
	_, ok = axes.PriceToPixel(25)
	assert.False(t, ok)
}

// strokeCounter counts what the overlays would put on the chart.
type strokeCounter struct {
	strokes, circles int
}

func (c *strokeCounter) ResetStyle()                  {}
func (c *strokeCounter) SetStrokeColor(drawing.Color) {}
func (c *strokeCounter) SetFillColor(drawing.Color)   {}
func (c *strokeCounter) SetStrokeWidth(float64)       {}
func (c *strokeCounter) SetStrokeDashArray([]float64) {}
func (c *strokeCounter) MoveTo(int, int)              {}
func (c *strokeCounter) LineTo(int, int)              {}
func (c *strokeCounter) Close()                       {}
func (c *strokeCounter) Stroke()                      { c.strokes++ }
func (c *strokeCounter) Fill()                        {}
func (c *strokeCounter) FillStroke()                  {}
func (c *strokeCounter) Circle(float64, int, int)     { c.circles++ }

func TestRenderAxes_OffScreenPricesDrawNothing(t *testing.T) {
	from := t0
	to := t0.Add(100 * time.Minute)
	axes := renderAxes{
		box:     chart.Box{Top: 10, Left: 10, Right: 590, Bottom: 390},
		xr:      &chart.ContinuousRange{Min: chart.TimeToFloat64(from), Max: chart.TimeToFloat64(to), Domain: 580},
		yr:      &chart.ContinuousRange{Min: 4990, Max: 5015, Domain: 380},
		visible: models.TimeRange{From: from, To: to},
		ready:   true,
	}
	level := func(center int64) models.ChannelLevel {
		return models.ChannelLevel{
			Center: decimal.NewFromInt(center),
			Top:    decimal.NewFromInt(center + 5),
			Bottom: decimal.NewFromInt(center - 5),
		}
	}
	channel := overlay.NewChannelOverlay(models.Channel{
		Reference: decimal.NewFromInt(5000),
		From:      from,
		To:        to,
		Levels:    []models.ChannelLevel{level(5050), level(4950)},
	})
	points := overlay.NewPointSeriesOverlay(models.DirectionUp, []models.SignalPoint{
		{Instant: t0.Add(10 * time.Minute), Price: decimal.NewFromInt(7000)},
	})

	c := &strokeCounter{}
	for _, p := range []overlay.Primitive{channel, points} {
		p.Project(axes)
		p.Render(c)
	}
	assert.Zero(t, c.strokes, "channel levels outside the price axis")
	assert.Zero(t, c.circles, "signal outside the price axis")
}

func TestSurface_OverlaysSpanTheLastBar(t *testing.T) {
	s := New(WithWindow(10), WithBarWidth(5*time.Minute))
	s.SetBars(bars(30))

	vr, ok := s.VisibleRange()
	require.True(t, ok)

	c := s.chart()
	layer, isLayer := c.Series[len(c.Series)-1].(*overlayLayer)
	require.True(t, isLayer)
	assert.Equal(t, vr.From, layer.visible.From)
	assert.Equal(t, vr.To.Add(5*time.Minute), layer.visible.To)
	assert.Equal(t, chart.TimeToFloat64(layer.visible.To), c.XAxis.Range.GetMax())
}
