package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Preco is a JSON number on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	ErrMalformedMarker = errors.New("malformed marker")
	ErrUnknownKind     = errors.New("unknown marker kind")
)

// MarkerKind is the marker type as produced upstream.
type MarkerKind string

const (
	KindZoneSell   MarkerKind = "POC_VENDA"
	KindZoneBuy    MarkerKind = "POC_COMPRA"
	KindReference  MarkerKind = "AJUSTE"
	KindSignalUp   MarkerKind = "JABULANI_C"
	KindSignalDown MarkerKind = "JABULANI_V"
)

// ParseMarkerKind validates a raw kind string.
func ParseMarkerKind(s string) (MarkerKind, error) {
	k := MarkerKind(strings.TrimSpace(s))
	switch k {
	case KindZoneSell, KindZoneBuy, KindReference, KindSignalUp, KindSignalDown:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// IsZone reports whether the kind needs a resolved time span.
func (k MarkerKind) IsZone() bool { return k == KindZoneSell || k == KindZoneBuy }

// IsSignal reports whether the kind is a reversal point.
func (k MarkerKind) IsSignal() bool { return k == KindSignalUp || k == KindSignalDown }

// CivilDate is a calendar date with no zone attached.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before orders dates chronologically.
func (d CivilDate) Before(o CivilDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// In returns the instant of the given wall clock on this date in loc.
func (d CivilDate) In(clock time.Duration, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).Add(clock)
}

// DateOf returns the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) CivilDate {
	y, m, d := t.In(loc).Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// Marker is one event of a batch after ingestion. Clock is the wall-clock offset
// from local midnight; Instant is Date+Clock in the exchange zone.
type Marker struct {
	Kind    MarkerKind
	Date    CivilDate
	Clock   time.Duration
	Price   decimal.Decimal
	Instant time.Time
	Seq     int // position in the received batch
}

// CompareWallClock orders markers by (date, wall clock).
func CompareWallClock(a, b Marker) int {
	if a.Date != b.Date {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	switch {
	case a.Clock < b.Clock:
		return -1
	case a.Clock > b.Clock:
		return 1
	}
	return 0
}

// WireMarker is the on-the-wire shape of a marker.
type WireMarker struct {
	Data  string          `json:"Data" validate:"required"`
	Hora  string          `json:"Hora" validate:"required"`
	Preco decimal.Decimal `json:"Preco"`
	Tipo  string          `json:"Tipo" validate:"required,oneof=POC_VENDA POC_COMPRA AJUSTE JABULANI_C JABULANI_V"`
}

// ParseMarker converts a wire marker to a Marker anchored in loc.
func ParseMarker(w WireMarker, seq int, loc *time.Location) (Marker, error) {
	kind, err := ParseMarkerKind(w.Tipo)
	if err != nil {
		return Marker{}, err
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(w.Data), loc)
	if err != nil {
		return Marker{}, fmt.Errorf("%w: date %q", ErrMalformedMarker, w.Data)
	}
	clock, err := ParseClock(w.Hora)
	if err != nil {
		return Marker{}, err
	}
	d := CivilDate{Year: date.Year(), Month: date.Month(), Day: date.Day()}
	return Marker{
		Kind:    kind,
		Date:    d,
		Clock:   clock,
		Price:   w.Preco,
		Instant: d.In(clock, loc),
		Seq:     seq,
	}, nil
}

// ParseClock parses HH:MM or HH:MM:SS into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"15:04:05", "15:04"}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%w: time %q", ErrMalformedMarker, s)
}

// DecodeMarkers decodes each raw element on its own. Malformed elements are
// reported in skipped and do not stop the rest of the batch.
func DecodeMarkers(raw []json.RawMessage, loc *time.Location) (markers []Marker, skipped []error) {
	markers = make([]Marker, 0, len(raw))
	for i, r := range raw {
		var w WireMarker
		if err := json.Unmarshal(r, &w); err != nil {
			skipped = append(skipped, fmt.Errorf("marker %d: %w: %v", i, ErrMalformedMarker, err))
			continue
		}
		if !hasPrice(r) {
			skipped = append(skipped, fmt.Errorf("marker %d: %w: price missing", i, ErrMalformedMarker))
			continue
		}
		m, err := ParseMarker(w, i, loc)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("marker %d: %w", i, err))
			continue
		}
		markers = append(markers, m)
	}
	return markers, skipped
}

func hasPrice(raw json.RawMessage) bool {
	var probe struct {
		Preco json.RawMessage `json:"Preco"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.Preco) > 0 && string(probe.Preco) != "null"
}
