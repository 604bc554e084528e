package zones

import (
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saoPaulo = mustLoad("America/Sao_Paulo")
	march4   = models.CivilDate{Year: 2024, Month: time.March, Day: 4}
	march5   = models.CivilDate{Year: 2024, Month: time.March, Day: 5}
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*3600)
	}
	return loc
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func marker(kind models.MarkerKind, d models.CivilDate, h, m int, price string, seq int) models.Marker {
	c := clock(h, m)
	return models.Marker{
		Kind:    kind,
		Date:    d,
		Clock:   c,
		Price:   decimal.RequireFromString(price),
		Instant: d.In(c, saoPaulo),
		Seq:     seq,
	}
}

func TestResolve_SameKindPairing(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneBuy, march4, 9, 0, "5000", 0),
		marker(models.KindZoneSell, march4, 9, 5, "5010", 1),
		marker(models.KindZoneBuy, march4, 9, 10, "4990", 2),
	}

	zones := r.Resolve(batch, nil)
	require.Len(t, zones, 3)

	assert.Equal(t, march4.In(clock(9, 0), saoPaulo), zones[0].Start)
	assert.Equal(t, march4.In(clock(9, 10), saoPaulo), zones[0].End)

	// the only sell and the last buy fall back to 18:00
	assert.Equal(t, march4.In(clock(18, 0), saoPaulo), zones[1].End)
	assert.Equal(t, march4.In(clock(18, 0), saoPaulo), zones[2].End)

	assert.True(t, zones[0].PriceHigh.Equal(decimal.NewFromInt(5002)))
	assert.True(t, zones[0].PriceLow.Equal(decimal.NewFromInt(4998)))
	assert.Equal(t, models.KindZoneSell, zones[1].Kind)
}

func TestResolve_UnorderedInput(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneBuy, march4, 9, 10, "4990", 0),
		marker(models.KindZoneBuy, march4, 9, 0, "5000", 1),
	}

	zones := r.Resolve(batch, nil)
	require.Len(t, zones, 2)
	assert.Equal(t, 1, zones[0].Seq)
	assert.Equal(t, march4.In(clock(9, 10), saoPaulo), zones[0].End)
}

func TestResolve_StableForEqualTimestamps(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneSell, march4, 10, 0, "1", 0),
		marker(models.KindZoneBuy, march4, 9, 0, "2", 1),
		marker(models.KindZoneBuy, march4, 10, 0, "3", 2),
		marker(models.KindZoneSell, march4, 10, 0, "4", 3),
	}

	zones := r.Resolve(batch, nil)
	require.Len(t, zones, 4)
	seqs := []int{zones[0].Seq, zones[1].Seq, zones[2].Seq, zones[3].Seq}
	assert.Equal(t, []int{1, 0, 2, 3}, seqs)

	// duplicate same-kind timestamps pair to an empty span that gets repaired
	assert.Equal(t, zones[1].Start.Add(time.Hour), zones[1].End)
}

func TestResolve_NeverCrossesDays(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneBuy, march4, 17, 0, "1", 0),
		marker(models.KindZoneBuy, march5, 9, 0, "1", 1),
	}

	zones := r.Resolve(batch, nil)
	require.Len(t, zones, 2)
	assert.Equal(t, march4.In(clock(18, 0), saoPaulo), zones[0].End)
	assert.Equal(t, march5.In(clock(18, 0), saoPaulo), zones[1].End)
}

func TestResolve_VisibleRangeFallback(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneSell, march4, 11, 0, "1", 0),
	}

	tests := []struct {
		name    string
		visible *models.TimeRange
		want    time.Time
	}{
		{
			name:    "visible range ends the same day",
			visible: &models.TimeRange{From: march4.In(clock(9, 0), saoPaulo), To: march4.In(clock(15, 30), saoPaulo)},
			want:    march4.In(clock(15, 30), saoPaulo),
		},
		{
			name:    "visible range ends another day",
			visible: &models.TimeRange{From: march4.In(clock(9, 0), saoPaulo), To: march5.In(clock(12, 0), saoPaulo)},
			want:    march4.In(clock(18, 0), saoPaulo),
		},
		{
			name: "no visible range",
			want: march4.In(clock(18, 0), saoPaulo),
		},
		{
			name:    "visible range ends before the marker",
			visible: &models.TimeRange{From: march4.In(clock(9, 0), saoPaulo), To: march4.In(clock(10, 0), saoPaulo)},
			want:    march4.In(clock(12, 0), saoPaulo),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zones := r.Resolve(batch, tt.visible)
			require.Len(t, zones, 1)
			assert.Equal(t, tt.want, zones[0].End)
		})
	}
}

func TestResolve_AlwaysNonEmpty(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindZoneBuy, march4, 19, 0, "1", 0),
		marker(models.KindZoneSell, march4, 23, 30, "1", 1),
		marker(models.KindZoneSell, march4, 23, 30, "1", 2),
		marker(models.KindZoneBuy, march4, 18, 0, "1", 3),
		marker(models.KindZoneBuy, march5, 0, 0, "1", 4),
	}

	for _, z := range r.Resolve(batch, nil) {
		assert.True(t, z.End.After(z.Start), "zone %d: %s !> %s", z.Seq, z.End, z.Start)
	}
}

func TestResolve_IgnoresNonZoneMarkers(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo))
	batch := []models.Marker{
		marker(models.KindReference, march4, 9, 0, "5000", 0),
		marker(models.KindSignalUp, march4, 9, 0, "5000", 1),
	}
	assert.Empty(t, r.Resolve(batch, nil))
}

func TestResolve_CustomMargin(t *testing.T) {
	r := NewResolver(WithLocation(saoPaulo), WithMargin(decimal.RequireFromString("0.5")))
	zones := r.Resolve([]models.Marker{marker(models.KindZoneBuy, march4, 9, 0, "10", 0)}, nil)
	require.Len(t, zones, 1)
	assert.Equal(t, "10.5", zones[0].PriceHigh.String())
	assert.Equal(t, "9.5", zones[0].PriceLow.String())
}
