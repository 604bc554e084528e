// Package fiborange derives the parallel channel levels of a reference price.
package fiborange

import (
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Offsets are the level positions in emission order; 0 is the centre level.
var Offsets = []int{0, 1, 2, -1, -2}

var (
	defaultStepRatio = decimal.RequireFromString("0.005")
	defaultHalfRatio = decimal.RequireFromString("0.001")
)

const (
	DefaultPrecision    = 2
	DefaultSessionOpen  = 9 * time.Hour
	DefaultSessionClose = 18*time.Hour + 30*time.Minute
)

type Calculator struct {
	stepRatio decimal.Decimal
	halfRatio decimal.Decimal
	places    int32
	open      time.Duration
	close     time.Duration
	loc       *time.Location
}

type Option func(*Calculator)

// WithPrecision sets the number of decimals levels are rounded to.
func WithPrecision(places int32) Option {
	return func(c *Calculator) {
		if places >= 0 {
			c.places = places
		}
	}
}

// WithSession sets the wall clock span a channel is drawn over.
func WithSession(open, close time.Duration) Option {
	return func(c *Calculator) {
		if close > open {
			c.open, c.close = open, close
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Calculator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		stepRatio: defaultStepRatio,
		halfRatio: defaultHalfRatio,
		places:    DefaultPrecision,
		open:      DefaultSessionOpen,
		close:     DefaultSessionClose,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Levels computes the five levels of ref. Only the final values are rounded,
// half away from zero.
func (c *Calculator) Levels(ref decimal.Decimal) []models.ChannelLevel {
	step := ref.Mul(c.stepRatio)
	half := ref.Mul(c.halfRatio)

	levels := make([]models.ChannelLevel, 0, len(Offsets))
	for _, k := range Offsets {
		center := ref.Add(step.Mul(decimal.NewFromInt(int64(k))))
		levels = append(levels, models.ChannelLevel{
			OffsetIndex: k,
			Center:      center.Round(c.places),
			Top:         center.Add(half).Round(c.places),
			Bottom:      center.Sub(half).Round(c.places),
		})
	}
	return levels
}

// Channel builds the channel of a Reference marker spanning the session of its date.
func (c *Calculator) Channel(m models.Marker) models.Channel {
	return models.Channel{
		Reference: m.Price,
		Date:      m.Date,
		From:      m.Date.In(c.open, c.loc),
		To:        m.Date.In(c.close, c.loc),
		Levels:    c.Levels(m.Price),
	}
}
