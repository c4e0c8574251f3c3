package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/services/features"
	"TradeSynth/internal/services/sketch"
	"TradeSynth/pkg/columnar"
	"TradeSynth/pkg/logger"
)

// SketchBuilder scans a dataset once and builds one digest per feature.
// Workers keep private digests that are merged after the scan.
type SketchBuilder struct {
	specs       []features.Spec
	compression float64
	opts        pipelineOptions
}

// NewSketchBuilder creates a new SketchBuilder.
func NewSketchBuilder(specs []features.Spec, compression float64, opts ...PipelineOption) *SketchBuilder {
	if compression <= 0 {
		compression = sketch.DefaultCompression
	}
	return &SketchBuilder{specs: specs, compression: compression, opts: newPipelineOptions(opts)}
}

func (b *SketchBuilder) newSet() *sketch.Set {
	s := sketch.NewSet()
	for _, spec := range b.specs {
		s.Put(spec.Name, sketch.New(b.compression))
	}
	return s
}

// Build returns the merged digests of every configured feature over r.
func (b *SketchBuilder) Build(ctx context.Context, r drepo.RowGroupReader) (*sketch.Set, error) {
	if err := features.Validate(b.specs, schemaLookup(r.Schema())); err != nil {
		return nil, err
	}
	start := time.Now()
	groups := r.NumRowGroups()
	workers := b.opts.poolSize(groups)
	m := b.opts.metrics

	b.opts.progress.Begin(StageSketch, groups)
	b.opts.log.Info("building sketches",
		logger.Int("row_groups", groups),
		logger.Int("features", len(b.specs)),
		logger.Int("workers", workers),
		logger.Float64("compression", b.compression),
	)

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan indexedGroup, 2*workers)
	g.Go(func() error {
		defer close(in)
		return readGroups(gctx, r, in, StageSketchRead, m)
	})

	partials := make([]*sketch.Set, workers)
	for wi := range workers {
		g.Go(func() error {
			local := b.newSet()
			for item := range in {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := b.accumulate(local, item.group); err != nil {
					m.RecordError(StageSketch)
					return stageErr(StageSketch, int64(item.index), err)
				}
				m.RecordRowGroup(StageSketch)
				b.opts.progress.Advance()
			}
			partials[wi] = local
			return nil
		})
	}

	err := g.Wait()
	b.opts.progress.End(err)
	if err != nil {
		b.opts.log.Error("sketch build failed", logger.Error(err))
		return nil, err
	}

	merged := b.newSet()
	for _, p := range partials {
		merged.MergeFrom(p)
	}
	for _, name := range merged.Names() {
		d, _ := merged.Get(name)
		d.Compress()
		if d.Count() == 0 {
			return nil, fmt.Errorf("feature %s: %w", name, sketch.ErrEmptyDigest)
		}
		b.opts.log.Debug("feature sketched",
			logger.String("feature", name),
			logger.Float64("count", d.Count()),
			logger.Int("centroids", len(d.Centroids())),
		)
	}
	m.RecordLatency("build_sketch", time.Since(start).Seconds())
	return merged, nil
}

func (b *SketchBuilder) accumulate(set *sketch.Set, g *columnar.RowGroup) error {
	for _, spec := range b.specs {
		vals, err := features.Extract(g, spec)
		if err != nil {
			return err
		}
		d, _ := set.Get(spec.Name)
		for _, v := range vals {
			d.Add(v)
		}
	}
	return nil
}

func schemaLookup(s *columnar.Schema) features.Lookup {
	return func(name string) bool {
		_, ok := s.Lookup(name)
		return ok
	}
}
