package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flowDay = models.CivilDate{Year: 2025, Month: time.September, Day: 1}

func writeFlowFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestFileFlowEventStore_Events(t *testing.T) {
	dir := t.TempDir()
	writeFlowFile(t, dir, "WDO_FC_2025-09-01.csv",
		"DATA\tHORA\tSINAL\n"+
			"2025.09.01\t10:05:00\tLIGA_COMPRA\n"+
			"2025.09.01\t11:30:15\tDESLIGA_COMPRA\n")
	loc := time.FixedZone("BRT", -3*3600)

	events, err := NewFileFlowEventStore(dir, loc).Events(context.Background(), "WDO", flowDay)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.FlowBuyOn, events[0].Signal)
	assert.Equal(t, time.Date(2025, 9, 1, 13, 5, 0, 0, time.UTC), events[0].At.UTC())
	assert.Equal(t, models.FlowBuyOff, events[1].Signal)
	assert.Equal(t, time.Date(2025, 9, 1, 14, 30, 15, 0, time.UTC), events[1].At.UTC())
}

func TestFileFlowEventStore_MissingFile(t *testing.T) {
	events, err := NewFileFlowEventStore(t.TempDir(), nil).Events(context.Background(), "WDO", flowDay)
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestFileFlowEventStore_Errors(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		body   string
	}{
		{"missing column", "WDO", "DATA\tHORA\n2025.09.01\t10:00:00\n"},
		{"bad timestamp", "WDO", "DATA\tHORA\tSINAL\n01/09/2025\t10:00:00\tLIGA_COMPRA\n"},
		{"short row", "WDO", "DATA\tHORA\tSINAL\n2025.09.01\t10:00:00\n"},
		{"path in symbol", "../WDO", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.body != "" {
				writeFlowFile(t, dir, tt.symbol+"_FC_2025-09-01.csv", tt.body)
			}
			_, err := NewFileFlowEventStore(dir, nil).Events(context.Background(), tt.symbol, flowDay)
			assert.Error(t, err)
		})
	}
}
