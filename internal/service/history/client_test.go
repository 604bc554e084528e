package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "SessionOverlay/internal/domain/repository"
	apphttp "SessionOverlay/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"time":60,"open":1,"high":2,"low":0.5,"close":1.5}]`))
	}))
	t.Cleanup(srv.Close)

	loc := time.FixedZone("BRT", -3*3600)
	from := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	to := from.Add(9 * time.Hour)

	bars, err := New(srv.URL+"/").Fetch(context.Background(), "WIN", drepo.TFM5, from, to)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int64(60), bars[0].Time)
	assert.Equal(t, 1.5, bars[0].Close)

	assert.Equal(t, "/api/history/WIN", gotPath)
	assert.Equal(t, []string{"M5"}, gotQuery["timeframe"])
	assert.Equal(t, []string{"2024-03-01T09:00:00-03:00"}, gotQuery["start"])
	assert.Equal(t, []string{"2024-03-01T18:00:00-03:00"}, gotQuery["end"])
}

func TestClient_FetchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	bars, err := New(srv.URL).Fetch(context.Background(), "WIN", drepo.TFM1, time.Unix(0, 0), time.Unix(60, 0))
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestClient_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"start must be before end"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).Fetch(context.Background(), "WIN", drepo.TFM1, time.Unix(60, 0), time.Unix(0, 0))
	require.Error(t, err)

	var se *apphttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
}
