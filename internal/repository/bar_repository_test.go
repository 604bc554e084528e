package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	pkgch "SessionOverlay/pkg/clickhouse"
	applogger "SessionOverlay/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*CHBarStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCHBarStore(pkgch.NewFromDB(db), "", applogger.Nop()), mock
}

func TestCHBarStore_Range(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery(`SELECT toUnixTimestamp\(time\), open, high, low, close\s+FROM bars FINAL`).
		WithArgs("WIN", "M5", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"t", "open", "high", "low", "close"}).
			AddRow(int64(1709553600), 1.0, 2.0, 0.5, 1.5).
			AddRow(int64(1709553900), 1.5, 2.5, 1.0, 2.0))

	bars, err := s.Range(context.Background(), "WIN", domrepo.TFM5, from, to)
	require.NoError(t, err)
	assert.Equal(t, []models.Bar{
		{Time: 1709553600, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: 1709553900, Open: 1.5, High: 2.5, Low: 1, Close: 2},
	}, bars)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHBarStore_RangeEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM bars FINAL`).
		WillReturnRows(sqlmock.NewRows([]string{"t", "open", "high", "low", "close"}))

	bars, err := s.Range(context.Background(), "WIN", domrepo.TFM1, time.Unix(0, 0), time.Unix(60, 0))
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestCHBarStore_Latest(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`ORDER BY time DESC\s+LIMIT 1`).
		WithArgs("WIN", "M1").
		WillReturnRows(sqlmock.NewRows([]string{"t", "open", "high", "low", "close"}).
			AddRow(int64(120), 1.0, 1.0, 1.0, 1.0))
	mock.ExpectQuery(`ORDER BY time DESC\s+LIMIT 1`).
		WithArgs("WDO", "M1").
		WillReturnRows(sqlmock.NewRows([]string{"t", "open", "high", "low", "close"}))
	mock.ExpectQuery(`ORDER BY time DESC\s+LIMIT 1`).
		WithArgs("PETR4", "M1").
		WillReturnError(errors.New("connection refused"))

	b, err := s.Latest(context.Background(), "WIN", domrepo.TFM1)
	require.NoError(t, err)
	assert.Equal(t, int64(120), b.Time)

	_, err = s.Latest(context.Background(), "WDO", domrepo.TFM1)
	assert.ErrorIs(t, err, domrepo.ErrNoBars)

	_, err = s.Latest(context.Background(), "PETR4", domrepo.TFM1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domrepo.ErrNoBars)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHBarStore_Schema(t *testing.T) {
	s, _ := newMockStore(t)
	stmts := s.SchemaStatements()
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS bars")
	assert.Contains(t, stmts[0], "ORDER BY (symbol, timeframe, time)")
}
