package repository

import (
	"context"
	"time"

	"TradeSynth/internal/domain/models"
	"TradeSynth/pkg/columnar"
)

// RowGroupWriter appends row groups to a dataset file. Implementations are
// owned by a single writer goroutine.
type RowGroupWriter interface {
	WriteRowGroup(g *columnar.RowGroup) (int, error)
	SetMetadata(key, value string)
	Close() error
}

// RowGroupReader gives random access to the row groups of a dataset file.
// ReadRowGroup must be safe for concurrent use.
type RowGroupReader interface {
	Schema() *columnar.Schema
	Metadata() map[string]string
	NumRowGroups() int
	ReadRowGroup(i int) (*columnar.RowGroup, error)
	Close() error
}

// BarStore persists generated bars to an analytical store.
type BarStore interface {
	Init(ctx context.Context) error
	StoreDay(ctx context.Context, symbol string, day models.DayBars, tf Timeframe) error
	Health(ctx context.Context) error
	Close() error
}

// TradePublisher streams synthetic trades as ticks.
type TradePublisher interface {
	PublishTrades(ctx context.Context, symbol string, dayStart time.Time, trades []models.Trade) error
	Close() error
}

type Metrics interface {
	RecordDayGenerated()
	RecordRowGroup(stage string)
	RecordError(stage string)
	RecordLatency(op string, seconds float64)
	SetPending(stage string, n int)
}
