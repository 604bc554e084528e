package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedZone is the concrete span of a zone marker. Start is always before End.
type ResolvedZone struct {
	Kind      MarkerKind
	Start     time.Time
	End       time.Time
	PriceHigh decimal.Decimal
	PriceLow  decimal.Decimal
	Reference decimal.Decimal
	Seq       int
}

// ChannelLevel is one of the parallel levels derived from a Reference marker.
type ChannelLevel struct {
	OffsetIndex int
	Center      decimal.Decimal
	Top         decimal.Decimal
	Bottom      decimal.Decimal
}

// Channel is the full set of levels of one Reference marker and the span it is drawn over.
type Channel struct {
	Reference decimal.Decimal
	Date      CivilDate
	From      time.Time
	To        time.Time
	Levels    []ChannelLevel
}

// Direction of a reversal signal.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// SignalPoint is a single reversal point.
type SignalPoint struct {
	Instant   time.Time
	Price     decimal.Decimal
	Direction Direction
}

// TimeRange is a closed range of instants.
type TimeRange struct {
	From time.Time
	To   time.Time
}
