package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/repository"
	"TradeSynth/pkg/columnar"
	"TradeSynth/pkg/logger"
)

// DatasetStats summarizes a generation run.
type DatasetStats struct {
	Days    int
	Rows    int64
	Elapsed time.Duration
}

// DatasetPipeline generates days on a worker pool and appends one row group
// per day through a single writer. Row groups land in completion order; the
// day_id column identifies them.
type DatasetPipeline struct {
	gen  *DayGenerator
	opts pipelineOptions
}

// NewDatasetPipeline creates a new DatasetPipeline.
func NewDatasetPipeline(gen *DayGenerator, opts ...PipelineOption) *DatasetPipeline {
	return &DatasetPipeline{gen: gen, opts: newPipelineOptions(opts)}
}

type generatedDay struct {
	id    int64
	group *columnar.RowGroup
}

// Run generates numDays days into w. The caller closes w.
func (p *DatasetPipeline) Run(ctx context.Context, w drepo.RowGroupWriter, numDays int) (DatasetStats, error) {
	start := time.Now()
	workers := p.opts.poolSize(numDays)
	log := p.opts.log
	m := p.opts.metrics

	p.opts.progress.Begin(StageGenerate, numDays)
	log.Info("generating dataset",
		logger.Int("days", numDays),
		logger.Int("workers", workers),
		logger.Uint64("base_seed", p.gen.BaseSeed()),
		logger.Float64("day_minutes", p.gen.DayMinutes()),
	)

	g, gctx := errgroup.WithContext(ctx)
	out := make(chan generatedDay, 2*workers)

	var producers sync.WaitGroup
	for wi := range workers {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			for id := int64(wi); id < int64(numDays); id += int64(workers) {
				if err := gctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				day := p.gen.Generate(id)
				rg := repository.DayRowGroup(day.Bars)
				m.RecordLatency("generate_day", time.Since(t0).Seconds())
				m.RecordDayGenerated()
				log.Debug("day generated",
					logger.Int64("day_id", id),
					logger.Int("trades", len(day.Trades)),
					logger.Int("episodes", len(day.Spans)),
				)

				select {
				case out <- generatedDay{id: id, group: rg}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		producers.Wait()
		close(out)
	}()

	var stats DatasetStats
	g.Go(func() error {
		for d := range out {
			if _, err := w.WriteRowGroup(d.group); err != nil {
				m.RecordError(StageWrite)
				return stageErr(StageWrite, d.id, err)
			}
			m.RecordRowGroup(StageWrite)
			p.opts.progress.Advance()
			stats.Days++
			stats.Rows += int64(d.group.NumRows())
		}
		return nil
	})

	err := g.Wait()
	stats.Elapsed = time.Since(start)
	p.opts.progress.End(err)
	if err != nil {
		log.Error("dataset generation failed", logger.Error(err), logger.Int("days_written", stats.Days))
		return stats, err
	}
	m.RecordLatency("generate_dataset", stats.Elapsed.Seconds())
	log.Info("dataset generated",
		logger.Int("days", stats.Days),
		logger.Int64("rows", stats.Rows),
		logger.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}
