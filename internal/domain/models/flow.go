package models

import "time"

// FlowSignal is one row kind of the buy flow event file.
type FlowSignal string

const (
	FlowBuyOn  FlowSignal = "LIGA_COMPRA"
	FlowBuyOff FlowSignal = "DESLIGA_COMPRA"
)

// FlowEvent switches the buy flow on or off at an instant.
type FlowEvent struct {
	At     time.Time
	Signal FlowSignal
}

// FlowPoint is one bar of a buy flow line. Value is the close of the first
// bar of the range it belongs to.
type FlowPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// BuyFlowRequest are the path parameters of the buy flow endpoint.
type BuyFlowRequest struct {
	Symbol    string `param:"symbol" validate:"required"`
	Date      string `param:"date" validate:"required"`
	Timeframe string `param:"timeframe" validate:"required,oneof=M1 M5 M15 M30 H1"`
}
