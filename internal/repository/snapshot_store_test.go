package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"
	"SessionOverlay/pkg/cache"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() models.MarkerBatch {
	return models.MarkerBatch{
		ID:     "b-1",
		Symbol: "WINJ24",
		Markers: []models.WireMarker{
			{Data: "2024-03-04", Hora: "09:00", Preco: decimal.NewFromInt(128500), Tipo: "AJUSTE"},
		},
		ReceivedAt: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestCacheSnapshotStore_Redis(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewCacheSnapshotStore(cache.NewRedisCacheFromClient(rdb, "overlay"), time.Hour)
	ctx := context.Background()

	b := sampleBatch()
	payload, err := json.Marshal(b)
	require.NoError(t, err)

	mock.ExpectSet("overlay:snapshot:WINJ24", payload, time.Hour).SetVal("OK")
	mock.ExpectGet("overlay:snapshot:WINJ24").SetVal(string(payload))
	mock.ExpectGet("overlay:snapshot:WDOJ24").RedisNil()

	require.NoError(t, s.Save(ctx, b))

	got, ok, err := s.Load(ctx, "WINJ24")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b-1", got.ID)
	require.Len(t, got.Markers, 1)
	assert.True(t, got.Markers[0].Preco.Equal(decimal.NewFromInt(128500)))
	assert.True(t, got.ReceivedAt.Equal(b.ReceivedAt))

	_, ok, err = s.Load(ctx, "WDOJ24")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheSnapshotStore_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewCacheSnapshotStore(cache.NewRedisCacheFromClient(rdb, "overlay"), time.Hour)

	mock.ExpectGet("overlay:snapshot:WIN").SetErr(errors.New("connection refused"))

	_, ok, err := s.Load(context.Background(), "WIN")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "load snapshot WIN")
}

func TestCacheSnapshotStore_MemoryLastWins(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	s := NewCacheSnapshotStore(mc, time.Minute)
	ctx := context.Background()

	first := sampleBatch()
	second := sampleBatch()
	second.ID = "b-2"
	second.Markers = nil

	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	got, ok, err := s.Load(ctx, "WINJ24")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b-2", got.ID)
	assert.Empty(t, got.Markers)
}
