// Package zones resolves zone markers into the time spans they are drawn over.
package zones

import (
	"slices"
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultMargin        = 2
	DefaultFallbackClock = 18 * time.Hour
	DefaultMinimumSpan   = time.Hour
)

// Resolver turns an unordered batch of zone markers into ResolvedZones.
// It holds configuration only and is safe for concurrent use.
type Resolver struct {
	loc      *time.Location
	margin   decimal.Decimal
	fallback time.Duration
	minSpan  time.Duration
}

type Option func(*Resolver)

// WithLocation sets the exchange time zone markers are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithMargin sets the half height of a zone box around its price.
func WithMargin(m decimal.Decimal) Option {
	return func(r *Resolver) { r.margin = m }
}

// WithFallbackClock sets the local wall clock used as end when nothing else applies.
func WithFallbackClock(d time.Duration) Option {
	return func(r *Resolver) { r.fallback = d }
}

// WithMinimumSpan sets the duration used to repair empty or inverted spans.
func WithMinimumSpan(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.minSpan = d
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		loc:      time.UTC,
		margin:   decimal.NewFromInt(DefaultMargin),
		fallback: DefaultFallbackClock,
		minSpan:  DefaultMinimumSpan,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the exchange time zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve emits one zone per zone marker in (date, time) order. Non-zone
// markers are ignored. visible is the chart's current visible range, nil when
// unknown.
func (r *Resolver) Resolve(markers []models.Marker, visible *models.TimeRange) []models.ResolvedZone {
	sorted := make([]models.Marker, 0, len(markers))
	for _, m := range markers {
		if m.Kind.IsZone() {
			sorted = append(sorted, m)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	// stable: duplicate timestamps keep batch order
	slices.SortStableFunc(sorted, models.CompareWallClock)

	out := make([]models.ResolvedZone, 0, len(sorted))
	for lo := 0; lo < len(sorted); {
		hi := lo + 1
		for hi < len(sorted) && sorted[hi].Date == sorted[lo].Date {
			hi++
		}
		out = r.resolveDay(out, sorted[lo:hi], visible)
		lo = hi
	}
	return out
}

func (r *Resolver) resolveDay(out []models.ResolvedZone, day []models.Marker, visible *models.TimeRange) []models.ResolvedZone {
	for i, m := range day {
		start := m.Date.In(m.Clock, r.loc)
		end, found := time.Time{}, false
		for j := i + 1; j < len(day); j++ {
			if day[j].Kind == m.Kind {
				end, found = day[j].Date.In(day[j].Clock, r.loc), true
				break
			}
		}
		if !found {
			end = r.fallbackEnd(m, visible)
		}
		if !end.After(start) {
			end = start.Add(r.minSpan)
		}
		out = append(out, models.ResolvedZone{
			Kind:      m.Kind,
			Start:     start,
			End:       end,
			PriceHigh: m.Price.Add(r.margin),
			PriceLow:  m.Price.Sub(r.margin),
			Reference: m.Price,
			Seq:       m.Seq,
		})
	}
	return out
}

func (r *Resolver) fallbackEnd(m models.Marker, visible *models.TimeRange) time.Time {
	if visible != nil && models.DateOf(visible.To, r.loc) == m.Date {
		return visible.To
	}
	return m.Date.In(r.fallback, r.loc)
}
