package repository

import (
	"context"
	"fmt"
	"time"

	"TradeSynth/internal/domain/models"
	domrepo "TradeSynth/internal/domain/repository"
	pkgch "TradeSynth/pkg/clickhouse"
	applogger "TradeSynth/pkg/logger"
	"TradeSynth/pkg/util"
)

// CHBarStore implements BarStore backed by ClickHouse. Minute and
// five-minute tables receive completed bars only.
type CHBarStore struct {
	ch       *pkgch.Client
	database string
	start    time.Time
	l        *applogger.Logger
}

// NewCHBarStore stores day n at the n-th trading day on or after start.
func NewCHBarStore(ch *pkgch.Client, database string, start time.Time) *CHBarStore {
	return &CHBarStore{ch: ch, database: database, start: start}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) table(tf domrepo.Timeframe) string {
	return fmt.Sprintf("%s.bars_%s", s.database, tf)
}

// SchemaStatements returns the idempotent DDL for the bar tables.
func (s *CHBarStore) SchemaStatements() []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)}
	for _, tf := range domrepo.Timeframes {
		stmts = append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol  LowCardinality(String),
            day_id  Int64,
            bucket  DateTime,
            session LowCardinality(String),
            trend   LowCardinality(String),
            open    Float64,
            high    Float64,
            low     Float64,
            close   Float64,
            vwap    Float64,
            volume  Int64,
            stddev  Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, bucket)`, s.table(tf)))
	}
	return stmts
}

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, s.SchemaStatements())
}

// BarRow is one bar ready for insertion, stamped with its period start.
type BarRow struct {
	Bucket  time.Time
	Session models.DaySession
	Trend   models.Trend
	Bar     models.Bar
}

// CompletedBars picks the completed bar of every period of tf from a day.
// The trailing partial period, if any, is included.
func CompletedBars(day models.DayBars, tf domrepo.Timeframe, dayStart time.Time) []BarRow {
	period := tf.Seconds()
	src := day.Minute
	switch tf {
	case domrepo.TF1s:
		src = nil
	case domrepo.TF5m:
		src = day.FiveMinute
	}
	n := len(day.Seconds)
	out := make([]BarRow, 0, n/period+1)
	for i := 0; i < n; i++ {
		if (i+1)%period != 0 && i != n-1 {
			continue
		}
		sec := day.Seconds[i]
		b := sec.Bar
		if src != nil {
			b = src[i]
		}
		first := i - i%period
		out = append(out, BarRow{
			Bucket:  dayStart.Add(time.Duration(first) * time.Second),
			Session: day.Seconds[first].Session,
			Trend:   day.Seconds[first].Trend,
			Bar:     b,
		})
	}
	return out
}

var barColumnsCH = []string{
	"symbol", "day_id", "bucket", "session", "trend",
	"open", "high", "low", "close", "vwap", "volume", "stddev",
}

// StoreDay inserts one resolution of a day.
func (s *CHBarStore) StoreDay(ctx context.Context, symbol string, day models.DayBars, tf domrepo.Timeframe) error {
	start := time.Now()
	table := s.table(tf)
	rows := CompletedBars(day, tf, util.TradingDay(s.start, day.DayID))
	err := s.ch.InsertBatch(ctx, table, barColumnsCH, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			symbol, day.DayID, r.Bucket, r.Session.String(), r.Trend.String(),
			r.Bar.Open, r.Bar.High, r.Bar.Low, r.Bar.Close, r.Bar.VWAP, r.Bar.Volume, r.Bar.StdDev,
		}
	})
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_day insert error",
				applogger.String("table", table),
				applogger.Int64("day_id", day.DayID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store day %d: %w", day.DayID, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse store_day ok",
			applogger.String("table", table),
			applogger.Int64("day_id", day.DayID),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close releases the underlying client.
func (s *CHBarStore) Close() error {
	if s.ch == nil {
		return nil
	}
	return s.ch.Close()
}
