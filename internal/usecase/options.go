package usecase

import (
	"context"
	"runtime"
	"time"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/pkg/columnar"
	"TradeSynth/pkg/logger"
	"TradeSynth/pkg/metrics"
)

const defaultStallTimeout = 2 * time.Minute

type pipelineOptions struct {
	workers      int
	metrics      drepo.Metrics
	log          *logger.Logger
	progress     *Progress
	stallTimeout time.Duration
}

type PipelineOption func(*pipelineOptions)

// WithWorkers sets the worker pool size. Non-positive values keep the default
// of one worker per CPU.
func WithWorkers(n int) PipelineOption {
	return func(o *pipelineOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithMetrics(m drepo.Metrics) PipelineOption {
	return func(o *pipelineOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(o *pipelineOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithProgress reports stage progress to p.
func WithProgress(p *Progress) PipelineOption {
	return func(o *pipelineOptions) { o.progress = p }
}

// WithStallTimeout bounds how long the ordered writer waits for the next row
// group while later ones are pending.
func WithStallTimeout(d time.Duration) PipelineOption {
	return func(o *pipelineOptions) {
		if d > 0 {
			o.stallTimeout = d
		}
	}
}

func newPipelineOptions(opts []PipelineOption) pipelineOptions {
	o := pipelineOptions{
		workers:      runtime.NumCPU(),
		metrics:      metrics.Nop{},
		log:          logger.Nop(),
		stallTimeout: defaultStallTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// poolSize caps the worker count at the amount of work available.
func (o pipelineOptions) poolSize(units int) int {
	return max(1, min(o.workers, units))
}

type indexedGroup struct {
	index int
	group *columnar.RowGroup
}

// readGroups feeds every row group of r, in file order, into out.
func readGroups(ctx context.Context, r drepo.RowGroupReader, out chan<- indexedGroup, stage string, m drepo.Metrics) error {
	for i := range r.NumRowGroups() {
		g, err := r.ReadRowGroup(i)
		if err != nil {
			m.RecordError(stage)
			return stageErr(stage, int64(i), err)
		}
		select {
		case out <- indexedGroup{index: i, group: g}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
