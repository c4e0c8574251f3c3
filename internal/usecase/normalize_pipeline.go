package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/services/features"
	"TradeSynth/internal/services/sketch"
	"TradeSynth/pkg/columnar"
	"TradeSynth/pkg/logger"
)

// MetaFeatures lists the normalized features in the output footer.
const MetaFeatures = "cdf_features"

// Normalizer adds a cdf_<feature> column to every row group using shared
// read-only lookup tables. Output row groups keep input order.
type Normalizer struct {
	specs  []features.Spec
	tables map[string]*sketch.LookupTable
	opts   pipelineOptions
}

// NewNormalizer creates a new Normalizer. Every spec needs a table.
func NewNormalizer(specs []features.Spec, tables map[string]*sketch.LookupTable, opts ...PipelineOption) (*Normalizer, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no features to normalize")
	}
	for _, s := range specs {
		if tables[s.Name] == nil {
			return nil, fmt.Errorf("feature %s: no lookup table", s.Name)
		}
	}
	return &Normalizer{specs: specs, tables: tables, opts: newPipelineOptions(opts)}, nil
}

// OutputSchema is in plus one float64 column per feature.
func (n *Normalizer) OutputSchema(in *columnar.Schema) (*columnar.Schema, error) {
	extra := make([]columnar.Field, len(n.specs))
	for i, s := range n.specs {
		extra[i] = columnar.Field{Name: s.OutputColumn(), Type: columnar.Float64}
	}
	return in.With(extra...)
}

// Run streams r through the worker pool into w, which must have been created
// with OutputSchema(r.Schema()). The caller closes w.
func (n *Normalizer) Run(ctx context.Context, r drepo.RowGroupReader, w drepo.RowGroupWriter) error {
	if err := features.Validate(n.specs, schemaLookup(r.Schema())); err != nil {
		return err
	}
	start := time.Now()
	total := r.NumRowGroups()
	workers := n.opts.poolSize(total)
	m := n.opts.metrics

	names := make([]string, len(n.specs))
	for i, s := range n.specs {
		names[i] = s.Name
	}
	for k, v := range r.Metadata() {
		w.SetMetadata(k, v)
	}
	w.SetMetadata(MetaFeatures, strings.Join(names, ","))

	n.opts.progress.Begin(StageNormalize, total)
	n.opts.log.Info("normalizing dataset",
		logger.Int("row_groups", total),
		logger.Strings("features", names),
		logger.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan indexedGroup, 2*workers)
	results := make(chan indexedGroup, 2*workers)

	g.Go(func() error {
		defer close(in)
		return readGroups(gctx, r, in, StageNormalizeRead, m)
	})

	var workersDone sync.WaitGroup
	for range workers {
		workersDone.Add(1)
		g.Go(func() error {
			defer workersDone.Done()
			for item := range in {
				if err := n.apply(item.group); err != nil {
					m.RecordError(StageNormalize)
					return stageErr(StageNormalize, int64(item.index), err)
				}
				m.RecordRowGroup(StageNormalize)
				select {
				case results <- item:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workersDone.Wait()
		close(results)
	}()

	g.Go(func() error {
		return n.write(gctx, w, results, total)
	})

	err := g.Wait()
	n.opts.progress.End(err)
	if err != nil {
		n.opts.log.Error("normalization failed", logger.Error(err))
		return err
	}
	m.RecordLatency("normalize_dataset", time.Since(start).Seconds())
	n.opts.log.Info("dataset normalized",
		logger.Int("row_groups", total),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (n *Normalizer) apply(g *columnar.RowGroup) error {
	for _, spec := range n.specs {
		vals, err := features.Extract(g, spec)
		if err != nil {
			return err
		}
		out := make([]float64, len(vals))
		n.tables[spec.Name].Apply(out, vals)
		g.SetFloat64(spec.OutputColumn(), out)
	}
	return nil
}

// write owns w and the reassembly buffer. Row groups are written strictly in
// index order; a gap that outlives the stall timeout while later row groups
// wait is fatal.
func (n *Normalizer) write(ctx context.Context, w drepo.RowGroupWriter, results <-chan indexedGroup, total int) error {
	m := n.opts.metrics
	buf := newReorderBuffer[*columnar.RowGroup]()
	stall := time.NewTimer(n.opts.stallTimeout)
	defer stall.Stop()

	for buf.Next() < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-results:
			if !ok {
				return stageErr(StageNormalizeWrite, int64(buf.Next()),
					fmt.Errorf("workers finished with %d row groups unwritten", total-buf.Next()))
			}
			if err := buf.Push(item.index, item.group); err != nil {
				return stageErr(StageNormalizeWrite, int64(item.index), err)
			}
			for {
				i, g, ready := buf.Pop()
				if !ready {
					break
				}
				if _, err := w.WriteRowGroup(g); err != nil {
					m.RecordError(StageNormalizeWrite)
					return stageErr(StageNormalizeWrite, int64(i), err)
				}
				m.RecordRowGroup(StageNormalizeWrite)
				n.opts.progress.Advance()
			}
			m.SetPending(StageNormalizeWrite, buf.Pending())
			stall.Reset(n.opts.stallTimeout)
		case <-stall.C:
			if buf.Pending() > 0 {
				m.RecordError(StageNormalizeWrite)
				n.opts.log.Error("reassembly stalled",
					logger.Int("next_row_group", buf.Next()),
					logger.Int("pending", buf.Pending()),
				)
				return stageErr(StageNormalizeWrite, int64(buf.Next()), ErrReassemblyStalled)
			}
			stall.Reset(n.opts.stallTimeout)
		}
	}
	return nil
}
