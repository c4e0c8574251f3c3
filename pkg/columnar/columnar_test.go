package columnar

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = MustSchema(
	Field{Name: "day_id", Type: Int64},
	Field{Name: "time", Type: Int32},
	Field{Name: "vwap", Type: Float64},
)

func testGroup(day int64, rows int) *RowGroup {
	g := NewRowGroup(rows)
	ids := make([]int64, rows)
	times := make([]int32, rows)
	vwap := make([]float64, rows)
	for i := range ids {
		ids[i] = day
		times[i] = int32(i)
		vwap[i] = 100 + float64(i)*0.01 - float64(day)
	}
	g.SetInt64("day_id", ids)
	g.SetInt32("time", times)
	g.SetFloat64("vwap", vwap)
	return g
}

func writeFile(t *testing.T, groups int, opts ...WriterOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.parquet")
	w, err := Create(path, testSchema, opts...)
	require.NoError(t, err)
	for i := 0; i < groups; i++ {
		idx, err := w.WriteRowGroup(testGroup(int64(i), 100+i))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	require.NoError(t, w.Close())
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := writeFile(t, 5, WithLevel(3), WithMetadata("run_id", "abc"), WithMetadata("base_seed", "42"))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 5, r.NumRowGroups())
	assert.Equal(t, int64(100+101+102+103+104), r.NumRows())
	assert.Equal(t, map[string]string{"run_id": "abc", "base_seed": "42"}, r.Metadata())
	assert.Equal(t, testSchema.Fields(), r.Schema().Fields())

	for i := 0; i < 5; i++ {
		assert.Equal(t, 100+i, r.RowGroupRows(i))
		g, err := r.ReadRowGroup(i)
		require.NoError(t, err)
		want := testGroup(int64(i), 100+i)
		for _, name := range []string{"day_id", "time", "vwap"} {
			got, err := g.Numeric(name)
			require.NoError(t, err)
			exp, _ := want.Numeric(name)
			assert.Equal(t, exp, got, "group %d column %s", i, name)
		}
	}

	_, err = r.ReadRowGroup(5)
	assert.Error(t, err)
}

func TestEmptyFileAndEmptyGroup(t *testing.T) {
	path := writeFile(t, 0)
	r, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, r.NumRowGroups())
	assert.Zero(t, r.NumRows())
	require.NoError(t, r.Close())

	w, err := Create(filepath.Join(t.TempDir(), "empty.parquet"), testSchema)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.WriteRowGroup(testGroup(0, 0))
	assert.ErrorIs(t, err, ErrEmptyGroup)
	assert.Zero(t, w.NumRowGroups())
}

func TestLargeGroupAndFieldOrder(t *testing.T) {
	schema := MustSchema(
		Field{Name: "vwap", Type: Float64},
		Field{Name: "close", Type: Float64},
		Field{Name: "day_id", Type: Int64},
	)
	const rows = 3*rowBatch + 17
	g := NewRowGroup(rows)
	vwap := make([]float64, rows)
	closes := make([]float64, rows)
	ids := make([]int64, rows)
	for i := range vwap {
		vwap[i] = float64(i) / 4
		closes[i] = -float64(i)
		ids[i] = 7
	}
	g.SetFloat64("vwap", vwap)
	g.SetFloat64("close", closes)
	g.SetInt64("day_id", ids)

	path := filepath.Join(t.TempDir(), "order.parquet")
	w, err := Create(path, schema, WithLevel(1))
	require.NoError(t, err)
	_, err = w.WriteRowGroup(g)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []Field{
		{Name: "close", Type: Float64},
		{Name: "day_id", Type: Int64},
		{Name: "vwap", Type: Float64},
	}, r.Schema().Fields())

	got, err := r.ReadRowGroup(0)
	require.NoError(t, err)
	assert.Equal(t, rows, got.NumRows())
	v, err := got.Float64("vwap")
	require.NoError(t, err)
	assert.Equal(t, vwap, v)
	c, err := got.Float64("close")
	require.NoError(t, err)
	assert.Equal(t, closes, c)
	d, err := got.Int64("day_id")
	require.NoError(t, err)
	assert.Equal(t, ids, d)
}

func TestWriteRejectsNonConformingGroup(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "bad.parquet"), testSchema)
	require.NoError(t, err)
	defer w.Close()

	g := testGroup(1, 10)
	g.SetFloat64("vwap", make([]float64, 9))
	_, err = w.WriteRowGroup(g)
	assert.ErrorIs(t, err, ErrSchema)

	g = NewRowGroup(1)
	g.SetInt64("day_id", []int64{1})
	_, err = w.WriteRowGroup(g)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestWriteAfterClose(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "closed.parquet"), testSchema)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err = w.WriteRowGroup(testGroup(0, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sums.parquet")
	w, err := Create(path, testSchema)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = w.WriteRowGroup(testGroup(int64(i), 10))
		require.NoError(t, err)
	}
	w.sums[0] ^= 1
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadRowGroup(0)
	assert.ErrorIs(t, err, ErrChecksum)
	_, err = r.ReadRowGroup(1)
	assert.NoError(t, err)
}

func TestCorruptionDetected(t *testing.T) {
	path := writeFile(t, 2)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	dir := t.TempDir()

	corrupt := func(name string, mutate func([]byte) []byte) error {
		t.Helper()
		b := mutate(append([]byte(nil), raw...))
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, b, 0o644))
		r, err := Open(p)
		if err == nil {
			r.Close()
		}
		return err
	}

	err = corrupt("magic.parquet", func(b []byte) []byte { copy(b, "NOPE"); return b })
	assert.ErrorIs(t, err, ErrBadMagic)

	err = corrupt("short.parquet", func(b []byte) []byte { return b[:8] })
	assert.ErrorIs(t, err, ErrBadMagic)

	err = corrupt("truncated.parquet", func(b []byte) []byte { return b[:len(b)/2] })
	assert.ErrorIs(t, err, ErrBadMagic)

	// footer length far beyond the file must fail without allocating it
	var e error
	require.NotPanics(t, func() {
		e = corrupt("footer-len.parquet", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[len(b)-8:], 0xffffffff)
			return b
		})
	})
	assert.ErrorIs(t, e, ErrCorrupt)

	err = corrupt("footer-zero.parquet", func(b []byte) []byte {
		binary.LittleEndian.PutUint32(b[len(b)-8:], 0)
		return b
	})
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NotPanics(t, func() {
		e = corrupt("footer-garbage.parquet", func(b []byte) []byte {
			n := int(binary.LittleEndian.Uint32(b[len(b)-8:]))
			footer := b[len(b)-8-n : len(b)-8]
			for i := range footer {
				footer[i] = 0xff
			}
			return b
		})
	})
	assert.Error(t, e)
}

func TestSchemaValidation(t *testing.T) {
	_, err := NewSchema(Field{Name: "a", Type: Int32}, Field{Name: "a", Type: Int64})
	assert.ErrorIs(t, err, ErrSchema)
	_, err = NewSchema(Field{Name: "a", Type: Type(9)})
	assert.ErrorIs(t, err, ErrSchema)

	ext, err := testSchema.With(Field{Name: "cdf_vwap", Type: Float64}, Field{Name: "vwap", Type: Float64})
	require.NoError(t, err)
	assert.Equal(t, 4, ext.Len())
	_, err = testSchema.With(Field{Name: "vwap", Type: Int32})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestRowGroupAccessors(t *testing.T) {
	g := testGroup(3, 4)
	_, err := g.Float64("time")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = g.Numeric("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	times, err := g.Numeric("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, times)
}
