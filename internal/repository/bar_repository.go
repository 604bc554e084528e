package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	pkgch "SessionOverlay/pkg/clickhouse"
	applogger "SessionOverlay/pkg/logger"
)

var _ domrepo.BarStore = (*CHBarStore)(nil)

// CHBarStore reads OHLC bars from a ClickHouse table keyed by symbol,
// timeframe and bar open time.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHBarStore {
	if table == "" {
		table = "bars"
	}
	return &CHBarStore{db: ch.DB(), table: table, l: l}
}

// SchemaStatements returns the DDL of the bars table.
func (s *CHBarStore) SchemaStatements() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol    LowCardinality(String),
            timeframe LowCardinality(String),
            time      DateTime('UTC'),
            open      Float64,
            high      Float64,
            low       Float64,
            close     Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, timeframe, time)
    `, s.table)}
}

// Range returns bars with from <= time < to in ascending order.
func (s *CHBarStore) Range(ctx context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT toUnixTimestamp(time), open, high, low, close
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ? AND time >= ? AND time < ?
        ORDER BY time ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		s.logErr("query", symbol, tf, err)
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			s.logErr("scan", symbol, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("rows", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Latest returns the newest bar, or ErrNoBars.
func (s *CHBarStore) Latest(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT toUnixTimestamp(time), open, high, low, close
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY time DESC
        LIMIT 1
    `, s.table)
	var b models.Bar
	err := s.db.QueryRowContext(ctx, q, symbol, string(tf)).Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bar{}, domrepo.ErrNoBars
	}
	if err != nil {
		s.logErr("latest", symbol, tf, err)
		return models.Bar{}, fmt.Errorf("latest bar: %w", err)
	}
	return b, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) logErr(stage, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse bars "+stage+" error",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}
