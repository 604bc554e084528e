package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/internal/service/ratelimit"
	applogger "SessionOverlay/pkg/logger"

	"github.com/google/uuid"
)

var ErrRateLimited = errors.New("too many marker batches")

// ChannelHub is the part of hub.Manager the marker flow needs.
type ChannelHub interface {
	ChannelsFor(symbol string) []string
	BroadcastSymbol(symbol string, msg models.FeedMessage) (channels, clients int)
}

// IngestResult is returned to the marker producer.
type IngestResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	BatchID string `json:"batch_id"`
}

// MarkerIngest accepts batches from producers and hands them to the broker.
type MarkerIngest struct {
	broker  domrepo.MarkerBroker
	hub     ChannelHub
	limiter *ratelimit.Limiter
	log     *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewMarkerIngest(broker domrepo.MarkerBroker, hub ChannelHub, limiter *ratelimit.Limiter, log *applogger.Logger, metrics domrepo.Metrics) *MarkerIngest {
	return &MarkerIngest{
		broker:  broker,
		hub:     hub,
		limiter: limiter,
		log:     log.Component("ingest"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Ingest publishes one batch. The batch is published even when nobody is
// listening so the snapshot of the symbol stays current.
func (uc *MarkerIngest) Ingest(ctx context.Context, req models.MarkerBatchRequest) (IngestResult, error) {
	if uc.limiter != nil && !uc.limiter.Allow(req.Symbol) {
		uc.metrics.RecordError("ingest_rate_limited")
		return IngestResult{}, fmt.Errorf("%s: %w", req.Symbol, ErrRateLimited)
	}

	batch := models.MarkerBatch{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Markers:    req.Markers,
		ReceivedAt: uc.now().UTC(),
	}
	listening := len(uc.hub.ChannelsFor(req.Symbol))

	if err := uc.broker.Publish(ctx, batch); err != nil {
		uc.metrics.RecordError("ingest_publish")
		return IngestResult{}, fmt.Errorf("ingest %s: %w", req.Symbol, err)
	}
	uc.metrics.RecordBatch("ingest", len(batch.Markers))
	uc.log.Debug("Batch accepted",
		applogger.String("batch", batch.ID),
		applogger.String("symbol", batch.Symbol),
		applogger.Int("markers", len(batch.Markers)),
		applogger.Int("channels", listening),
	)

	res := IngestResult{Status: "ok", BatchID: batch.ID}
	if listening == 0 {
		res.Message = fmt.Sprintf("no clients listening for %s", req.Symbol)
	} else {
		res.Message = fmt.Sprintf("markers for %s sent to %d channels", req.Symbol, listening)
	}
	return res, nil
}

// MarkerDelivery is the fan-out side: it stores the snapshot of a batch and
// broadcasts it to every channel of the symbol. Deliver and Replay of one
// symbol are serialised so a joining client never gets a snapshot older than
// a batch it was already sent.
type MarkerDelivery struct {
	hub       ChannelHub
	snapshots domrepo.SnapshotStore
	log       *applogger.Logger
	metrics   domrepo.Metrics

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// symbolState guards one symbol and remembers its last delivered batch.
type symbolState struct {
	mu   sync.Mutex
	last models.MarkerBatch
	seen bool
}

var _ domrepo.BatchDeliverer = (*MarkerDelivery)(nil)

func NewMarkerDelivery(hub ChannelHub, snapshots domrepo.SnapshotStore, log *applogger.Logger, metrics domrepo.Metrics) *MarkerDelivery {
	return &MarkerDelivery{
		hub:       hub,
		snapshots: snapshots,
		log:       log.Component("delivery"),
		metrics:   metrics,
		symbols:   make(map[string]*symbolState),
	}
}

func (d *MarkerDelivery) state(symbol string) *symbolState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.symbols[symbol]
	if !ok {
		st = &symbolState{}
		d.symbols[symbol] = st
	}
	return st
}

// Deliver never fails on a snapshot error; the live channels still get the batch.
func (d *MarkerDelivery) Deliver(ctx context.Context, batch models.MarkerBatch) error {
	msg, err := batch.Message()
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", batch.ID, err)
	}

	st := d.state(batch.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := d.snapshots.Save(ctx, batch); err != nil {
		d.metrics.RecordError("snapshot_save")
		d.log.Warn("Snapshot not saved", applogger.String("symbol", batch.Symbol), applogger.Error(err))
	}

	channels, clients := d.hub.BroadcastSymbol(batch.Symbol, msg)
	st.last, st.seen = batch, true

	d.metrics.RecordBroadcast(batch.Symbol, clients)
	d.log.Info("Markers broadcast",
		applogger.String("batch", batch.ID),
		applogger.String("symbol", batch.Symbol),
		applogger.Int("channels", channels),
		applogger.Int("clients", clients),
	)
	return nil
}

// Replay sends the current batch of symbol to one newly joined client. The
// stored snapshot is used unless this process delivered a newer batch.
func (d *MarkerDelivery) Replay(ctx context.Context, symbol string, send func(models.FeedMessage) error) error {
	st := d.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	batch, ok, err := d.snapshots.Load(ctx, symbol)
	if err != nil {
		d.metrics.RecordError("snapshot_load")
		if !st.seen {
			return err
		}
		d.log.Warn("Snapshot not loaded, replaying last delivered batch", applogger.String("symbol", symbol), applogger.Error(err))
	}
	if st.seen && (!ok || st.last.ReceivedAt.After(batch.ReceivedAt)) {
		batch, ok = st.last, true
	}
	if !ok {
		return nil
	}
	msg, err := batch.Message()
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", symbol, err)
	}
	return send(msg)
}
