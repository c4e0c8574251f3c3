package usecase

import (
	"context"
	"time"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/pkg/logger"
	"TradeSynth/pkg/util"
)

// TradeFeed regenerates days from the seed and streams their trades, one
// trading day at a time in day order.
type TradeFeed struct {
	gen    *DayGenerator
	pub    drepo.TradePublisher
	symbol string
	start  time.Time
	opts   pipelineOptions
}

// NewTradeFeed creates a new TradeFeed. Day 0 is the first weekday on or
// after start.
func NewTradeFeed(gen *DayGenerator, pub drepo.TradePublisher, symbol string, start time.Time, opts ...PipelineOption) *TradeFeed {
	return &TradeFeed{gen: gen, pub: pub, symbol: symbol, start: start, opts: newPipelineOptions(opts)}
}

// Run publishes days firstDay..firstDay+numDays-1 and returns the number of
// trades sent.
func (f *TradeFeed) Run(ctx context.Context, firstDay int64, numDays int) (int, error) {
	m := f.opts.metrics
	f.opts.progress.Begin(StagePublish, numDays)
	var sent int
	for k := range numDays {
		if err := ctx.Err(); err != nil {
			f.opts.progress.End(err)
			return sent, err
		}
		id := firstDay + int64(k)
		t0 := time.Now()
		day := f.gen.Simulate(id)
		dayStart := util.TradingDay(f.start, id)
		if err := f.pub.PublishTrades(ctx, f.symbol, dayStart, day.Trades); err != nil {
			m.RecordError(StagePublish)
			err = stageErr(StagePublish, id, err)
			f.opts.progress.End(err)
			return sent, err
		}
		sent += len(day.Trades)
		m.RecordLatency("publish_day", time.Since(t0).Seconds())
		f.opts.progress.Advance()
		f.opts.log.Info("day published",
			logger.Int64("day_id", id),
			logger.String("date", dayStart.Format(time.DateOnly)),
			logger.Int("trades", len(day.Trades)),
		)
	}
	f.opts.progress.End(nil)
	return sent, nil
}
