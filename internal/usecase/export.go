package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/repository"
	"TradeSynth/pkg/logger"
)

// Exporter copies dataset days into a BarStore.
type Exporter struct {
	store      drepo.BarStore
	symbol     string
	timeframes []drepo.Timeframe
	opts       pipelineOptions
}

// NewExporter creates a new Exporter. An empty timeframe list exports all.
func NewExporter(store drepo.BarStore, symbol string, timeframes []drepo.Timeframe, opts ...PipelineOption) *Exporter {
	if len(timeframes) == 0 {
		timeframes = drepo.Timeframes
	}
	return &Exporter{store: store, symbol: symbol, timeframes: timeframes, opts: newPipelineOptions(opts)}
}

// Run exports up to maxDays row groups (all when maxDays <= 0) and returns
// the number of days stored.
func (e *Exporter) Run(ctx context.Context, r drepo.RowGroupReader, maxDays int) (int, error) {
	if err := e.store.Init(ctx); err != nil {
		return 0, err
	}
	days := r.NumRowGroups()
	if maxDays > 0 {
		days = min(days, maxDays)
	}
	start := time.Now()
	m := e.opts.metrics

	e.opts.progress.Begin(StageExport, days)
	e.opts.log.Info("exporting bars",
		logger.String("symbol", e.symbol),
		logger.Int("days", days),
		logger.Int("workers", e.opts.poolSize(days)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.poolSize(days))
	for i := range days {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rg, err := r.ReadRowGroup(i)
			if err != nil {
				m.RecordError(StageExport)
				return stageErr(StageExport, int64(i), err)
			}
			day, err := repository.DayFromRowGroup(rg)
			if err != nil {
				m.RecordError(StageExport)
				return stageErr(StageExport, int64(i), err)
			}
			for _, tf := range e.timeframes {
				if err := e.store.StoreDay(gctx, e.symbol, day, tf); err != nil {
					m.RecordError(StageExport)
					return stageErr(StageExport, day.DayID, err)
				}
			}
			m.RecordRowGroup(StageExport)
			e.opts.progress.Advance()
			return nil
		})
	}

	err := g.Wait()
	e.opts.progress.End(err)
	if err != nil {
		e.opts.log.Error("export failed", logger.Error(err))
		return 0, err
	}
	m.RecordLatency("export", time.Since(start).Seconds())
	e.opts.log.Info("bars exported", logger.Int("days", days), logger.Duration("elapsed", time.Since(start)))
	return days, nil
}
