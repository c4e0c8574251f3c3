package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSynth/internal/domain/models"
	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/repository"
	"TradeSynth/internal/services/features"
	"TradeSynth/internal/services/sketch"
	"TradeSynth/pkg/columnar"
)

var errBoom = errors.New("boom")

// memDataset is an in-memory RowGroupReader and RowGroupWriter.
type memDataset struct {
	mu       sync.Mutex
	schema   *columnar.Schema
	meta     map[string]string
	groups   []*columnar.RowGroup
	failRead int
	failAt   int
}

func newMemDataset(schema *columnar.Schema) *memDataset {
	return &memDataset{schema: schema, meta: map[string]string{}, failRead: -1, failAt: -1}
}

func (d *memDataset) Schema() *columnar.Schema { return d.schema }

func (d *memDataset) Metadata() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.meta))
	for k, v := range d.meta {
		out[k] = v
	}
	return out
}

func (d *memDataset) NumRowGroups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.groups)
}

func (d *memDataset) ReadRowGroup(i int) (*columnar.RowGroup, error) {
	if i == d.failRead {
		return nil, errBoom
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.groups[i], nil
}

func (d *memDataset) SetMetadata(k, v string) {
	d.mu.Lock()
	d.meta[k] = v
	d.mu.Unlock()
}

func (d *memDataset) WriteRowGroup(g *columnar.RowGroup) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.groups) == d.failAt {
		return 0, errBoom
	}
	if err := g.Conform(d.schema); err != nil {
		return 0, err
	}
	d.groups = append(d.groups, g)
	return len(d.groups) - 1, nil
}

func (d *memDataset) Close() error { return nil }

var xSchema = columnar.MustSchema(
	columnar.Field{Name: repository.ColDayID, Type: columnar.Int64},
	columnar.Field{Name: "x", Type: columnar.Float64},
)

// unevenDataset has row groups of very different sizes so that workers
// finish out of order.
func unevenDataset(groups int) *memDataset {
	d := newMemDataset(xSchema)
	r := rand.New(rand.NewPCG(7, 7))
	for i := range groups {
		rows := 200 + (i*7919%5)*3000
		g := columnar.NewRowGroup(rows)
		ids := make([]int64, rows)
		xs := make([]float64, rows)
		for k := range ids {
			ids[k] = int64(i)
			xs[k] = r.NormFloat64()
		}
		g.SetInt64(repository.ColDayID, ids)
		g.SetFloat64("x", xs)
		d.groups = append(d.groups, g)
	}
	return d
}

var xSpecs = []features.Spec{{Name: "x", Column: "x"}}

func TestReorderBuffer(t *testing.T) {
	b := newReorderBuffer[string]()
	require.NoError(t, b.Push(2, "c"))
	_, _, ok := b.Pop()
	assert.False(t, ok)

	require.NoError(t, b.Push(0, "a"))
	assert.Error(t, b.Push(0, "a"))
	require.NoError(t, b.Push(1, "b"))
	assert.Equal(t, 3, b.Pending())

	var got []string
	for {
		i, v, ok := b.Pop()
		if !ok {
			break
		}
		assert.Equal(t, len(got), i)
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 3, b.Next())
	assert.Error(t, b.Push(1, "late"))
}

func TestDatasetPipelineWritesEveryDay(t *testing.T) {
	gen := quickGenerator(t, 5)
	out := newMemDataset(repository.DatasetSchema())
	progress := NewProgress()

	stats, err := NewDatasetPipeline(gen, WithWorkers(3), WithProgress(progress)).Run(context.Background(), out, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Days)
	assert.Equal(t, int64(8*300), stats.Rows)

	seen := map[int64]bool{}
	for _, g := range out.groups {
		day, err := repository.DayFromRowGroup(g)
		require.NoError(t, err)
		assert.False(t, seen[day.DayID], "day %d written twice", day.DayID)
		seen[day.DayID] = true
		assert.Len(t, day.Seconds, 300)
	}
	assert.Len(t, seen, 8)

	snap := progress.Snapshot()
	assert.Equal(t, StageGenerate, snap.Stage)
	assert.Equal(t, int64(8), snap.Done)
	assert.False(t, snap.Running)
}

func TestDatasetPipelineMatchesSequentialGeneration(t *testing.T) {
	gen := quickGenerator(t, 3)
	out := newMemDataset(repository.DatasetSchema())
	_, err := NewDatasetPipeline(gen, WithWorkers(4)).Run(context.Background(), out, 6)
	require.NoError(t, err)

	for _, g := range out.groups {
		got, err := repository.DayFromRowGroup(g)
		require.NoError(t, err)
		want := gen.Generate(got.DayID).Bars
		assert.Equal(t, want.Seconds, got.Seconds)
	}
}

func TestDatasetPipelineWriterError(t *testing.T) {
	gen := quickGenerator(t, 3)
	out := newMemDataset(repository.DatasetSchema())
	out.failAt = 1

	_, err := NewDatasetPipeline(gen, WithWorkers(2)).Run(context.Background(), out, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageWrite, se.Stage)
}

func TestDatasetPipelineCancelled(t *testing.T) {
	gen := quickGenerator(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDatasetPipeline(gen, WithWorkers(2)).Run(ctx, newMemDataset(repository.DatasetSchema()), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func buildTables(t *testing.T, in *memDataset, workers int) map[string]*sketch.LookupTable {
	t.Helper()
	set, err := NewSketchBuilder(xSpecs, 200, WithWorkers(workers)).Build(context.Background(), in)
	require.NoError(t, err)
	tables, err := set.LookupTables(4096)
	require.NoError(t, err)
	return tables
}

func TestSketchBuilderCountsEveryValue(t *testing.T) {
	in := unevenDataset(12)
	var rows int
	for _, g := range in.groups {
		rows += g.NumRows()
	}
	set, err := NewSketchBuilder(xSpecs, 200, WithWorkers(4)).Build(context.Background(), in)
	require.NoError(t, err)
	d, ok := set.Get("x")
	require.True(t, ok)
	assert.Equal(t, float64(rows), d.Count())
	assert.InDelta(t, 0.5, d.CDF(0), 0.02)
}

func TestSketchBuilderRejectsUnknownColumn(t *testing.T) {
	_, err := NewSketchBuilder([]features.Spec{{Name: "y", Column: "y"}}, 100).Build(context.Background(), unevenDataset(1))
	assert.Error(t, err)
}

func TestSketchBuilderEmptyDataset(t *testing.T) {
	_, err := NewSketchBuilder(xSpecs, 100).Build(context.Background(), newMemDataset(xSchema))
	assert.ErrorIs(t, err, sketch.ErrEmptyDigest)
}

func TestSketchBuilderReadError(t *testing.T) {
	in := unevenDataset(10)
	in.failRead = 4
	_, err := NewSketchBuilder(xSpecs, 100, WithWorkers(3)).Build(context.Background(), in)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSketchRead, se.Stage)
	assert.Equal(t, int64(4), se.Index)
	assert.ErrorIs(t, err, errBoom)
}

func TestNormalizePreservesRowGroupOrder(t *testing.T) {
	const groups = 24
	tables := buildTables(t, unevenDataset(groups), 4)

	for run := range 10 {
		in := unevenDataset(groups)
		norm, err := NewNormalizer(xSpecs, tables, WithWorkers(6))
		require.NoError(t, err)
		schema, err := norm.OutputSchema(in.Schema())
		require.NoError(t, err)
		out := newMemDataset(schema)

		require.NoError(t, norm.Run(context.Background(), in, out), "run %d", run)
		require.Len(t, out.groups, groups)
		for i, g := range out.groups {
			ids, err := g.Int64(repository.ColDayID)
			require.NoError(t, err)
			require.Equal(t, int64(i), ids[0], "run %d position %d", run, i)

			cdf, err := g.Float64("cdf_x")
			require.NoError(t, err)
			require.Len(t, cdf, g.NumRows())
			for _, v := range cdf {
				require.True(t, v >= -1 && v <= 1, "value %v out of range", v)
			}
		}
		assert.Equal(t, "x", out.meta[MetaFeatures])
	}
}

func TestNormalizeReadError(t *testing.T) {
	in := unevenDataset(20)
	tables := buildTables(t, in, 2)
	in.failRead = 5

	norm, err := NewNormalizer(xSpecs, tables, WithWorkers(4))
	require.NoError(t, err)
	schema, err := norm.OutputSchema(in.Schema())
	require.NoError(t, err)

	err = norm.Run(context.Background(), in, newMemDataset(schema))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageNormalizeRead, se.Stage)
	assert.Equal(t, int64(5), se.Index)
}

func TestNormalizeWriteError(t *testing.T) {
	in := unevenDataset(20)
	tables := buildTables(t, in, 2)

	norm, err := NewNormalizer(xSpecs, tables, WithWorkers(4))
	require.NoError(t, err)
	schema, err := norm.OutputSchema(in.Schema())
	require.NoError(t, err)
	out := newMemDataset(schema)
	out.failAt = 3

	err = norm.Run(context.Background(), in, out)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageNormalizeWrite, se.Stage)
	assert.Equal(t, int64(3), se.Index)
}

func TestNormalizerNeedsTables(t *testing.T) {
	_, err := NewNormalizer(xSpecs, map[string]*sketch.LookupTable{})
	assert.Error(t, err)
	_, err = NewNormalizer(nil, nil)
	assert.Error(t, err)
}

func TestWriterFailsWhenReassemblyStalls(t *testing.T) {
	n := &Normalizer{opts: newPipelineOptions([]PipelineOption{WithStallTimeout(50 * time.Millisecond)})}
	results := make(chan indexedGroup, 2)
	results <- indexedGroup{index: 1, group: columnar.NewRowGroup(0)}
	results <- indexedGroup{index: 2, group: columnar.NewRowGroup(0)}

	out := newMemDataset(columnar.MustSchema())
	err := n.write(context.Background(), out, results, 3)
	assert.ErrorIs(t, err, ErrReassemblyStalled)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(0), se.Index)
	assert.Empty(t, out.groups)
}

func TestWriterWaitsWithoutPendingGroups(t *testing.T) {
	n := &Normalizer{opts: newPipelineOptions([]PipelineOption{WithStallTimeout(20 * time.Millisecond)})}
	results := make(chan indexedGroup)
	go func() {
		time.Sleep(100 * time.Millisecond)
		results <- indexedGroup{index: 0, group: columnar.NewRowGroup(0)}
	}()
	out := newMemDataset(columnar.MustSchema())
	require.NoError(t, n.write(context.Background(), out, results, 1))
	assert.Len(t, out.groups, 1)
}

func TestFilePipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	gen := quickGenerator(t, 2)
	meta := repository.DatasetMeta{RunID: "run-1", BaseSeed: gen.BaseSeed(), DayMinutes: gen.DayMinutes()}

	w, err := repository.CreateDataset(filepath.Join(dir, "ds.parquet"), meta, 1)
	require.NoError(t, err)
	_, err = NewDatasetPipeline(gen, WithWorkers(3)).Run(context.Background(), w, 5)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := repository.OpenDataset(filepath.Join(dir, "ds.parquet"))
	require.NoError(t, err)
	defer r.Close()

	rep, err := VerifyDataset(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.RowGroups)
	assert.Equal(t, int64(5*120), rep.Rows)
	assert.Equal(t, int64(0), rep.MinDayID)
	assert.Equal(t, int64(4), rep.MaxDayID)
	assert.Equal(t, "run-1", rep.RunID)

	specs := features.DefaultSpecs()
	set, err := NewSketchBuilder(specs, 100, WithWorkers(2)).Build(context.Background(), r)
	require.NoError(t, err)
	sketchPath := filepath.Join(dir, "sketch.bin")
	require.NoError(t, set.SaveFile(sketchPath))
	loaded, err := sketch.LoadFile(sketchPath)
	require.NoError(t, err)
	tables, err := loaded.LookupTables(1024)
	require.NoError(t, err)

	norm, err := NewNormalizer(specs, tables, WithWorkers(3))
	require.NoError(t, err)
	schema, err := norm.OutputSchema(r.Schema())
	require.NoError(t, err)
	nw, err := columnar.Create(filepath.Join(dir, "cdf.parquet"), schema)
	require.NoError(t, err)
	require.NoError(t, norm.Run(context.Background(), r, nw))
	require.NoError(t, nw.Close())

	nr, err := columnar.Open(filepath.Join(dir, "cdf.parquet"))
	require.NoError(t, err)
	defer nr.Close()
	require.Equal(t, r.NumRowGroups(), nr.NumRowGroups())
	assert.Equal(t, "run-1", nr.Metadata()[repository.MetaRunID])

	_, err = VerifyDataset(context.Background(), nr)
	require.NoError(t, err)
	for i := range nr.NumRowGroups() {
		src, err := r.ReadRowGroup(i)
		require.NoError(t, err)
		dst, err := nr.ReadRowGroup(i)
		require.NoError(t, err)
		a, _ := src.Int64(repository.ColDayID)
		b, _ := dst.Int64(repository.ColDayID)
		require.Equal(t, a, b)
		for _, s := range specs {
			vals, err := dst.Float64(s.OutputColumn())
			require.NoError(t, err)
			for _, v := range vals {
				require.True(t, v >= -1 && v <= 1)
			}
		}
	}
}

func TestVerifyDatasetRejectsWrongRowCount(t *testing.T) {
	gen := quickGenerator(t, 2)
	ds := newMemDataset(repository.DatasetSchema())
	ds.meta = map[string]string{
		repository.MetaRunID:      "x",
		repository.MetaBaseSeed:   "42",
		repository.MetaDayMinutes: "3",
	}
	ds.groups = append(ds.groups, repository.DayRowGroup(gen.Generate(0).Bars))

	_, err := VerifyDataset(context.Background(), ds)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageVerify, se.Stage)
}

func TestVerifyDatasetRejectsDuplicateDay(t *testing.T) {
	gen := quickGenerator(t, 2)
	ds := newMemDataset(repository.DatasetSchema())
	ds.meta = map[string]string{
		repository.MetaRunID:      "x",
		repository.MetaBaseSeed:   "42",
		repository.MetaDayMinutes: "2",
	}
	g := repository.DayRowGroup(gen.Generate(0).Bars)
	ds.groups = append(ds.groups, g, g)

	_, err := VerifyDataset(context.Background(), ds)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(1), se.Index)
}

type storedDay struct {
	symbol string
	day    int64
	tf     drepo.Timeframe
}

type fakeStore struct {
	mu      sync.Mutex
	inited  bool
	stored  []storedDay
	failDay int64
}

func (s *fakeStore) Init(context.Context) error { s.inited = true; return nil }

func (s *fakeStore) StoreDay(_ context.Context, symbol string, day models.DayBars, tf drepo.Timeframe) error {
	if day.DayID == s.failDay {
		return errBoom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, storedDay{symbol, day.DayID, tf})
	return nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func generatedDataset(t *testing.T, days int) *memDataset {
	gen := quickGenerator(t, 2)
	ds := newMemDataset(repository.DatasetSchema())
	_, err := NewDatasetPipeline(gen, WithWorkers(2)).Run(context.Background(), ds, days)
	require.NoError(t, err)
	return ds
}

func TestExporterStoresEveryTimeframe(t *testing.T) {
	ds := generatedDataset(t, 4)
	store := &fakeStore{failDay: -1}

	n, err := NewExporter(store, "SYN", nil, WithWorkers(2)).Run(context.Background(), ds, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, store.inited)
	assert.Len(t, store.stored, 3*len(drepo.Timeframes))
	for _, s := range store.stored {
		assert.Equal(t, "SYN", s.symbol)
	}
}

func TestExporterPropagatesStoreError(t *testing.T) {
	ds := generatedDataset(t, 4)
	store := &fakeStore{failDay: 2}

	_, err := NewExporter(store, "SYN", []drepo.Timeframe{drepo.TF1m}).Run(context.Background(), ds, 0)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExport, se.Stage)
	assert.Equal(t, int64(2), se.Index)
}

type fakePublisher struct {
	starts []time.Time
	counts []int
	fail   bool
}

func (p *fakePublisher) PublishTrades(_ context.Context, _ string, dayStart time.Time, trades []models.Trade) error {
	if p.fail {
		return errBoom
	}
	p.starts = append(p.starts, dayStart)
	p.counts = append(p.counts, len(trades))
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestTradeFeedPublishesDaysInOrder(t *testing.T) {
	gen := quickGenerator(t, 2)
	pub := &fakePublisher{}
	start := time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC) // Friday

	sent, err := NewTradeFeed(gen, pub, "SYN", start).Run(context.Background(), 0, 3)
	require.NoError(t, err)
	require.Len(t, pub.starts, 3)
	assert.Equal(t, start, pub.starts[0])
	assert.Equal(t, time.Date(2024, 1, 8, 14, 30, 0, 0, time.UTC), pub.starts[1])
	assert.Equal(t, time.Date(2024, 1, 9, 14, 30, 0, 0, time.UTC), pub.starts[2])

	var total int
	for i, c := range pub.counts {
		assert.Equal(t, len(gen.Simulate(int64(i)).Trades), c)
		total += c
	}
	assert.Equal(t, total, sent)
}

func TestTradeFeedStopsOnError(t *testing.T) {
	gen := quickGenerator(t, 2)
	_, err := NewTradeFeed(gen, &fakePublisher{fail: true}, "SYN", time.Now()).Run(context.Background(), 4, 2)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePublish, se.Stage)
	assert.Equal(t, int64(4), se.Index)
}

func TestStageErrorFormatting(t *testing.T) {
	err := stageErr(StageWrite, 12, errBoom)
	assert.Equal(t, "write [12]: boom", err.Error())
	assert.ErrorIs(t, err, errBoom)
}

func TestNilProgressIsSafe(t *testing.T) {
	var p *Progress
	p.Begin("x", 1)
	p.Advance()
	p.End(errBoom)
	assert.Equal(t, ProgressSnapshot{}, p.Snapshot())

	q := NewProgress()
	q.SetRunID("r")
	q.Begin(StageSketch, 2)
	q.Advance()
	s := q.Snapshot()
	assert.True(t, s.Running)
	assert.Equal(t, int64(1), s.Done)
	q.End(errBoom)
	s = q.Snapshot()
	assert.False(t, s.Running)
	assert.Equal(t, "boom", s.Error)
	assert.Equal(t, "r", s.RunID)
}
