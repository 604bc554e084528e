package models

import (
	"encoding/json"
	"time"
)

// Bar represents one OHLC record in the JSON shape the chart feed uses.
type Bar struct {
	Time  int64   `json:"time"` // unix seconds
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// At returns the bar open instant.
func (b Bar) At() time.Time { return time.Unix(b.Time, 0) }

const (
	MessageMarkers = "markers"
	MessageCandle  = "candle"
)

// FeedMessage is the push-channel envelope. Data holds either a marker array or a bar.
type FeedMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarkerBatchRequest is the body accepted by the marker ingest endpoint.
type MarkerBatchRequest struct {
	Symbol  string       `json:"symbol" validate:"required"`
	Markers []WireMarker `json:"markers" validate:"dive"`
}

// MarkerBatch is a batch routed to the channels of one symbol.
type MarkerBatch struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Markers    []WireMarker `json:"markers"`
	ReceivedAt time.Time    `json:"received_at"`
}

// HistoryRequest are the query parameters of the history endpoint.
type HistoryRequest struct {
	Symbol    string `param:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" default:"M1" validate:"oneof=M1 M5 M15 M30 H1"`
	Start     string `query:"start" validate:"required"`
	End       string `query:"end" validate:"required"`
}

// Message converts the batch to the push channel envelope.
func (b MarkerBatch) Message() (FeedMessage, error) {
	markers := b.Markers
	if markers == nil {
		markers = []WireMarker{}
	}
	data, err := json.Marshal(markers)
	if err != nil {
		return FeedMessage{}, err
	}
	return FeedMessage{Type: MessageMarkers, Data: data}, nil
}

// ChannelRequest are the query parameters of the push channel endpoint.
type ChannelRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" validate:"required,oneof=M1 M5 M15 M30 H1"`
}

// ReloadRequest switches what the viewer shows.
type ReloadRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe string `json:"timeframe" default:"M1" validate:"oneof=M1 M5 M15 M30 H1"`
	Window    string `json:"window" default:"24h"`
}
