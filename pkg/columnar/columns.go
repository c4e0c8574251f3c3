package columnar

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/parquet-go/parquet-go"
)

const (
	magic = "PAR1"

	// ChecksumKey holds the comma separated hex xxhash64 of every row group.
	ChecksumKey = "columnar.xxhash64"

	// rowBatch is the number of rows converted per WriteRows/ReadRows call.
	rowBatch = 1024
)

func (t Type) node() parquet.Node {
	switch t {
	case Int32:
		return parquet.Leaf(parquet.Int32Type)
	case Int64:
		return parquet.Leaf(parquet.Int64Type)
	default:
		return parquet.Leaf(parquet.DoubleType)
	}
}

func typeOfKind(k parquet.Kind) (Type, bool) {
	switch k {
	case parquet.Int32:
		return Int32, true
	case parquet.Int64:
		return Int64, true
	case parquet.Double:
		return Float64, true
	}
	return 0, false
}

func (s *Schema) parquetSchema() *parquet.Schema {
	g := make(parquet.Group, len(s.fields))
	for _, f := range s.fields {
		g[f.Name] = f.Type.node()
	}
	return parquet.NewSchema("tradesynth", g)
}

// schemaOf reads a flat parquet schema back into a Schema.
func schemaOf(ps *parquet.Schema) (*Schema, error) {
	fields := make([]Field, 0, len(ps.Fields()))
	for _, f := range ps.Fields() {
		if !f.Leaf() || f.Repeated() {
			return nil, fmt.Errorf("%w: column %s is not a flat leaf", ErrSchema, f.Name())
		}
		t, ok := typeOfKind(f.Type().Kind())
		if !ok {
			return nil, fmt.Errorf("%w: column %s has unsupported type %s", ErrSchema, f.Name(), f.Type())
		}
		fields = append(fields, Field{Name: f.Name(), Type: t})
	}
	return NewSchema(fields...)
}

// column binds a field to its leaf index in a parquet schema.
type column struct {
	Field
	index int
}

// columnsOf returns the fields of s in leaf order.
func columnsOf(s *Schema, ps *parquet.Schema) ([]column, error) {
	cols := make([]column, 0, s.Len())
	for _, f := range s.fields {
		leaf, ok := ps.Lookup(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, f.Name)
		}
		cols = append(cols, column{Field: f, index: leaf.ColumnIndex})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].index < cols[j].index })
	return cols, nil
}

// valueFuncs returns, per column, the parquet value of a row of g.
func valueFuncs(g *RowGroup, cols []column) []func(row int) parquet.Value {
	fns := make([]func(int) parquet.Value, len(cols))
	for k, c := range cols {
		idx := c.index
		switch c.Type {
		case Int32:
			v := g.int32s[c.Name]
			fns[k] = func(i int) parquet.Value { return parquet.Int32Value(v[i]).Level(0, 0, idx) }
		case Int64:
			v := g.int64s[c.Name]
			fns[k] = func(i int) parquet.Value { return parquet.Int64Value(v[i]).Level(0, 0, idx) }
		default:
			v := g.float64s[c.Name]
			fns[k] = func(i int) parquet.Value { return parquet.DoubleValue(v[i]).Level(0, 0, idx) }
		}
	}
	return fns
}

// sinkFuncs allocates the columns of g and returns, indexed by leaf, the
// function storing a value at a row. Nulls read as zero, or NaN for doubles.
func sinkFuncs(g *RowGroup, cols []column) []func(row int, v parquet.Value) {
	n := g.rows
	width := 0
	for _, c := range cols {
		width = max(width, c.index+1)
	}
	sinks := make([]func(int, parquet.Value), width)
	for _, c := range cols {
		switch c.Type {
		case Int32:
			v := make([]int32, n)
			g.int32s[c.Name] = v
			sinks[c.index] = func(i int, x parquet.Value) { v[i] = x.Int32() }
		case Int64:
			v := make([]int64, n)
			g.int64s[c.Name] = v
			sinks[c.index] = func(i int, x parquet.Value) { v[i] = x.Int64() }
		default:
			v := make([]float64, n)
			g.float64s[c.Name] = v
			sinks[c.index] = func(i int, x parquet.Value) {
				if x.IsNull() {
					v[i] = math.NaN()
					return
				}
				v[i] = x.Double()
			}
		}
	}
	return sinks
}

// checksum hashes the values of g column by column in leaf order.
func checksum(g *RowGroup, cols []column) uint64 {
	h := xxhash.New()
	var b [8]byte
	le := binary.LittleEndian
	for _, c := range cols {
		switch c.Type {
		case Int32:
			for _, v := range g.int32s[c.Name] {
				le.PutUint32(b[:4], uint32(v))
				_, _ = h.Write(b[:4])
			}
		case Int64:
			for _, v := range g.int64s[c.Name] {
				le.PutUint64(b[:], uint64(v))
				_, _ = h.Write(b[:])
			}
		default:
			for _, v := range g.float64s[c.Name] {
				le.PutUint64(b[:], math.Float64bits(v))
				_, _ = h.Write(b[:])
			}
		}
	}
	return h.Sum64()
}

func formatChecksums(sums []uint64) string {
	parts := make([]string, len(sums))
	for i, s := range sums {
		parts[i] = strconv.FormatUint(s, 16)
	}
	return strings.Join(parts, ",")
}

func parseChecksums(s string, groups int) ([]uint64, error) {
	if groups == 0 && s == "" {
		return []uint64{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != groups {
		return nil, fmt.Errorf("%w: %d checksums for %d row groups", ErrCorrupt, len(parts), groups)
	}
	sums := make([]uint64, groups)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: checksum %d: %v", ErrCorrupt, i, err)
		}
		sums[i] = v
	}
	return sums, nil
}
