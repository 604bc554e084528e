package repository

import (
	"context"
	"errors"
	"time"

	"SessionOverlay/internal/domain/models"
)

var ErrNoBars = errors.New("no bars")

// BarStore reads bars for history and live polling.
type BarStore interface {
	Range(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Bar, error)
	Latest(ctx context.Context, symbol string, tf Timeframe) (models.Bar, error)
	Health(ctx context.Context) error
}

// FlowEventStore reads the buy flow events of one trading day. A day with
// no events is not an error.
type FlowEventStore interface {
	Events(ctx context.Context, symbol string, day models.CivilDate) ([]models.FlowEvent, error)
}

// MarkerBroker carries marker batches from ingest to the channel fan-out.
type MarkerBroker interface {
	Publish(ctx context.Context, batch models.MarkerBatch) error
	Close() error
}

// BatchDeliverer receives batches on the fan-out side of the broker.
type BatchDeliverer interface {
	Deliver(ctx context.Context, batch models.MarkerBatch) error
}

// SnapshotStore remembers the last batch per symbol.
type SnapshotStore interface {
	Save(ctx context.Context, batch models.MarkerBatch) error
	Load(ctx context.Context, symbol string) (models.MarkerBatch, bool, error)
}

// MarkerStream is the viewer's push channel to the hub.
type MarkerStream interface {
	Connect(ctx context.Context, symbol string, tf Timeframe) error
	Read(ctx context.Context) (<-chan models.FeedMessage, <-chan error)
	Close() error
	IsConnected() bool
}

// HistoryFetcher loads the bars shown under the overlays.
type HistoryFetcher interface {
	Fetch(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Bar, error)
}

// Metrics is implemented by pkg/metrics.
type Metrics interface {
	RecordBatch(component string, markers int)
	RecordSkipped(reason string)
	RecordOverlays(attached, detached int)
	RecordBroadcast(symbol string, clients int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordFeedStatus(status string)
}
