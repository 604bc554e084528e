// Package signals accumulates reversal points per direction.
package signals

import (
	"SessionOverlay/internal/domain/models"
)

// Accumulator holds the up and down point sequences of one generation.
// Points keep insertion order and are never re-sorted.
type Accumulator struct {
	up   []models.SignalPoint
	down []models.SignalPoint
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends a signal marker to its direction. Other kinds are ignored and
// reported as false.
func (a *Accumulator) Add(m models.Marker) bool {
	switch m.Kind {
	case models.KindSignalUp:
		a.up = append(a.up, models.SignalPoint{Instant: m.Instant, Price: m.Price, Direction: models.DirectionUp})
	case models.KindSignalDown:
		a.down = append(a.down, models.SignalPoint{Instant: m.Instant, Price: m.Price, Direction: models.DirectionDown})
	default:
		return false
	}
	return true
}

// Reset clears both sequences; called when a new batch starts.
func (a *Accumulator) Reset() {
	a.up = a.up[:0]
	a.down = a.down[:0]
}

// Series returns the sequence of dir. The slice aliases internal storage
// until the next Reset.
func (a *Accumulator) Series(dir models.Direction) []models.SignalPoint {
	if dir == models.DirectionUp {
		return a.up
	}
	return a.down
}

func (a *Accumulator) Len(dir models.Direction) int { return len(a.Series(dir)) }
