package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	"SessionOverlay/pkg/cache"
	applogger "SessionOverlay/pkg/logger"
	"SessionOverlay/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeStore struct {
	bars     []models.Bar
	err      error
	calls    int
	from, to time.Time
}

func (s *rangeStore) Range(_ context.Context, _ string, _ domrepo.Timeframe, from, to time.Time) ([]models.Bar, error) {
	s.calls++
	s.from, s.to = from, to
	return s.bars, s.err
}

func (s *rangeStore) Latest(context.Context, string, domrepo.Timeframe) (models.Bar, error) {
	return models.Bar{}, domrepo.ErrNoBars
}

func (s *rangeStore) Health(context.Context) error { return nil }

func TestHistoryUseCase_NaiveTimesUseExchangeZone(t *testing.T) {
	store := &rangeStore{bars: []models.Bar{{Time: 1, Close: 2}}}
	uc := NewHistoryUseCase(store, nil, 0, utc3, applogger.Nop(), metrics.Noop{})

	bars, err := uc.Bars(context.Background(), HistoryParams{
		Symbol: "WIN", Timeframe: domrepo.TFM5,
		Start: "2024-03-04T09:00:00", End: "2024-03-04T18:00:00Z",
	})
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.True(t, store.from.Equal(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)))
	assert.True(t, store.to.Equal(time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)))
}

func TestHistoryUseCase_InvalidRange(t *testing.T) {
	uc := NewHistoryUseCase(&rangeStore{}, nil, 0, utc3, applogger.Nop(), metrics.Noop{})

	tests := []struct {
		name       string
		start, end string
	}{
		{"start after end", "2024-03-04T10:00:00", "2024-03-04T09:00:00"},
		{"start equals end", "2024-03-04T10:00:00", "2024-03-04T10:00:00"},
		{"garbage start", "yesterday", "2024-03-04T09:00:00"},
		{"garbage end", "2024-03-04T09:00:00", "04/03/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Bars(context.Background(), HistoryParams{Symbol: "WIN", Timeframe: domrepo.TFM1, Start: tt.start, End: tt.end})
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestHistoryUseCase_EmptyIsNotNil(t *testing.T) {
	uc := NewHistoryUseCase(&rangeStore{}, nil, 0, utc3, applogger.Nop(), metrics.Noop{})

	bars, err := uc.Bars(context.Background(), HistoryParams{Symbol: "WIN", Timeframe: domrepo.TFM1, Start: "2024-03-04", End: "2024-03-05"})
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestHistoryUseCase_Cached(t *testing.T) {
	store := &rangeStore{bars: []models.Bar{{Time: 60}, {Time: 120}}}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	uc := NewHistoryUseCase(store, mc, time.Minute, utc3, applogger.Nop(), metrics.Noop{})

	p := HistoryParams{Symbol: "WIN", Timeframe: domrepo.TFM1, Start: "2024-03-04T09:00", End: "2024-03-04T10:00"}
	first, err := uc.Bars(context.Background(), p)
	require.NoError(t, err)
	second, err := uc.Bars(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls)
}

func TestHistoryUseCase_StoreError(t *testing.T) {
	store := &rangeStore{err: errors.New("clickhouse down")}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	uc := NewHistoryUseCase(store, mc, time.Minute, utc3, applogger.Nop(), metrics.Noop{})

	p := HistoryParams{Symbol: "WIN", Timeframe: domrepo.TFM1, Start: "2024-03-04T09:00", End: "2024-03-04T10:00"}
	_, err := uc.Bars(context.Background(), p)
	assert.ErrorContains(t, err, "clickhouse down")

	ok, _ := mc.Exists(context.Background(), "history:WIN:M1:1709553600:1709557200")
	assert.False(t, ok, "failures are not cached")
}
