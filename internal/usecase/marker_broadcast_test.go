package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"
	"SessionOverlay/internal/repository"
	"SessionOverlay/internal/service/ratelimit"
	"SessionOverlay/pkg/cache"
	applogger "SessionOverlay/pkg/logger"
	"SessionOverlay/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu       sync.Mutex
	channels map[string][]string
	sent     []models.FeedMessage
}

func (h *fakeHub) ChannelsFor(symbol string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[symbol]
}

func (h *fakeHub) BroadcastSymbol(symbol string, msg models.FeedMessage) (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.channels[symbol])
	if n > 0 {
		h.sent = append(h.sent, msg)
	}
	return n, n
}

type failingBroker struct{}

func (failingBroker) Publish(context.Context, models.MarkerBatch) error { return errors.New("broker down") }
func (failingBroker) Close() error                                      { return nil }

func newMarkerFlow(t *testing.T, hub *fakeHub, limiter *ratelimit.Limiter) (*MarkerIngest, *MarkerDelivery) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	delivery := NewMarkerDelivery(hub, repository.NewCacheSnapshotStore(mc, time.Hour), applogger.Nop(), metrics.Noop{})
	ingest := NewMarkerIngest(repository.NewMemoryBroker(delivery), hub, limiter, applogger.Nop(), metrics.Noop{})
	return ingest, delivery
}

func ingestRequest(symbol string) models.MarkerBatchRequest {
	return models.MarkerBatchRequest{
		Symbol: symbol,
		Markers: []models.WireMarker{
			{Data: "2025-09-01", Hora: "10:00", Preco: decimal.RequireFromString("5510.5"), Tipo: "AJUSTE"},
		},
	}
}

func TestMarkerIngest_BroadcastsToSymbolChannels(t *testing.T) {
	hub := &fakeHub{channels: map[string][]string{"WDOV25": {"WDOV25-M1", "WDOV25-M5"}}}
	ingest, _ := newMarkerFlow(t, hub, nil)

	res, err := ingest.Ingest(context.Background(), ingestRequest("WDOV25"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "markers for WDOV25 sent to 2 channels", res.Message)
	assert.NotEmpty(t, res.BatchID)

	require.Len(t, hub.sent, 1)
	assert.Equal(t, models.MessageMarkers, hub.sent[0].Type)
	assert.JSONEq(t, `[{"Data":"2025-09-01","Hora":"10:00","Preco":5510.5,"Tipo":"AJUSTE"}]`, string(hub.sent[0].Data))
}

func TestMarkerIngest_NobodyListening(t *testing.T) {
	hub := &fakeHub{}
	ingest, delivery := newMarkerFlow(t, hub, nil)

	res, err := ingest.Ingest(context.Background(), ingestRequest("WINV25"))
	require.NoError(t, err)
	assert.Equal(t, "no clients listening for WINV25", res.Message)
	assert.Empty(t, hub.sent)

	// the snapshot is kept for whoever connects next
	var replayed []models.FeedMessage
	require.NoError(t, delivery.Replay(context.Background(), "WINV25", func(m models.FeedMessage) error {
		replayed = append(replayed, m)
		return nil
	}))
	require.Len(t, replayed, 1)

	var markers []models.WireMarker
	require.NoError(t, json.Unmarshal(replayed[0].Data, &markers))
	require.Len(t, markers, 1)
	assert.Equal(t, "AJUSTE", markers[0].Tipo)
}

func TestMarkerIngest_RateLimited(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	hub := &fakeHub{}
	ingest, _ := newMarkerFlow(t, hub, ratelimit.New(1, 0.5, ratelimit.WithClock(func() time.Time { return now })))

	_, err := ingest.Ingest(context.Background(), ingestRequest("WIN"))
	require.NoError(t, err)

	_, err = ingest.Ingest(context.Background(), ingestRequest("WIN"))
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = ingest.Ingest(context.Background(), ingestRequest("WDO"))
	assert.NoError(t, err, "buckets are per symbol")

	now = now.Add(2 * time.Second)
	_, err = ingest.Ingest(context.Background(), ingestRequest("WIN"))
	assert.NoError(t, err)
}

func TestMarkerIngest_PublishError(t *testing.T) {
	ingest := NewMarkerIngest(failingBroker{}, &fakeHub{}, nil, applogger.Nop(), metrics.Noop{})

	_, err := ingest.Ingest(context.Background(), ingestRequest("WIN"))
	assert.ErrorContains(t, err, "broker down")
}

func TestMarkerDelivery_ReplayWithoutSnapshot(t *testing.T) {
	_, delivery := newMarkerFlow(t, &fakeHub{}, nil)

	called := false
	require.NoError(t, delivery.Replay(context.Background(), "WIN", func(models.FeedMessage) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

// gatedSnapshots holds Load until release is closed.
type gatedSnapshots struct {
	stored  models.MarkerBatch
	loading chan struct{}
	release chan struct{}
	saveErr error
}

func (s *gatedSnapshots) Save(context.Context, models.MarkerBatch) error { return s.saveErr }

func (s *gatedSnapshots) Load(context.Context, string) (models.MarkerBatch, bool, error) {
	if s.loading != nil {
		close(s.loading)
		<-s.release
	}
	return s.stored, true, nil
}

// orderedHub records broadcasts and replays on one timeline.
type orderedHub struct {
	mu  sync.Mutex
	got []string
}

func (h *orderedHub) record(msg models.FeedMessage) {
	var markers []models.WireMarker
	_ = json.Unmarshal(msg.Data, &markers)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, markers[0].Hora)
}

func (h *orderedHub) timeline() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.got...)
}

func (h *orderedHub) ChannelsFor(string) []string { return []string{"WIN-M1"} }

func (h *orderedHub) BroadcastSymbol(_ string, msg models.FeedMessage) (int, int) {
	h.record(msg)
	return 1, 1
}

func batchAt(hora string, at time.Time) models.MarkerBatch {
	return models.MarkerBatch{
		ID:         hora,
		Symbol:     "WIN",
		Markers:    []models.WireMarker{{Data: "2025-09-01", Hora: hora, Preco: decimal.NewFromInt(5000), Tipo: "AJUSTE"}},
		ReceivedAt: at,
	}
}

func TestMarkerDelivery_DeliverDuringReplayArrivesAfterSnapshot(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0).UTC()
	store := &gatedSnapshots{
		stored:  batchAt("10:00", t0),
		loading: make(chan struct{}),
		release: make(chan struct{}),
	}
	hub := &orderedHub{}
	delivery := NewMarkerDelivery(hub, store, applogger.Nop(), metrics.Noop{})

	replayed := make(chan error, 1)
	go func() {
		replayed <- delivery.Replay(context.Background(), "WIN", func(m models.FeedMessage) error {
			hub.record(m)
			return nil
		})
	}()
	<-store.loading

	delivered := make(chan error, 1)
	go func() { delivered <- delivery.Deliver(context.Background(), batchAt("11:00", t0.Add(time.Minute))) }()

	assert.Never(t, func() bool { return len(hub.timeline()) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"delivery waits for the replay in progress")
	close(store.release)

	require.NoError(t, <-replayed)
	require.NoError(t, <-delivered)
	assert.Equal(t, []string{"10:00", "11:00"}, hub.timeline(), "the newest batch is processed last")
}

func TestMarkerDelivery_ReplayPrefersNewerDeliveredBatch(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0).UTC()
	store := &gatedSnapshots{stored: batchAt("10:00", t0), saveErr: errors.New("redis down")}
	hub := &orderedHub{}
	delivery := NewMarkerDelivery(hub, store, applogger.Nop(), metrics.Noop{})

	require.NoError(t, delivery.Deliver(context.Background(), batchAt("11:00", t0.Add(time.Minute))))

	var replayed []string
	require.NoError(t, delivery.Replay(context.Background(), "WIN", func(m models.FeedMessage) error {
		var markers []models.WireMarker
		require.NoError(t, json.Unmarshal(m.Data, &markers))
		replayed = append(replayed, markers[0].Hora)
		return nil
	}))
	assert.Equal(t, []string{"11:00"}, replayed, "a stale stored snapshot is not replayed")
}
