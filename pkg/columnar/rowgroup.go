package columnar

import "fmt"

// RowGroup is an in-memory set of equally long columns.
type RowGroup struct {
	rows     int
	int32s   map[string][]int32
	int64s   map[string][]int64
	float64s map[string][]float64
}

func NewRowGroup(rows int) *RowGroup {
	return &RowGroup{
		rows:     rows,
		int32s:   make(map[string][]int32),
		int64s:   make(map[string][]int64),
		float64s: make(map[string][]float64),
	}
}

func (g *RowGroup) NumRows() int { return g.rows }

func (g *RowGroup) SetInt32(name string, v []int32) { g.int32s[name] = v }

func (g *RowGroup) SetInt64(name string, v []int64) { g.int64s[name] = v }

func (g *RowGroup) SetFloat64(name string, v []float64) { g.float64s[name] = v }

func (g *RowGroup) Int32(name string) ([]int32, error) {
	v, ok := g.int32s[name]
	if !ok {
		return nil, fmt.Errorf("%w: int32 %s", ErrUnknownColumn, name)
	}
	return v, nil
}

func (g *RowGroup) Int64(name string) ([]int64, error) {
	v, ok := g.int64s[name]
	if !ok {
		return nil, fmt.Errorf("%w: int64 %s", ErrUnknownColumn, name)
	}
	return v, nil
}

func (g *RowGroup) Float64(name string) ([]float64, error) {
	v, ok := g.float64s[name]
	if !ok {
		return nil, fmt.Errorf("%w: float64 %s", ErrUnknownColumn, name)
	}
	return v, nil
}

// Numeric returns any column widened to float64.
func (g *RowGroup) Numeric(name string) ([]float64, error) {
	if v, ok := g.float64s[name]; ok {
		return v, nil
	}
	if v, ok := g.int64s[name]; ok {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	}
	if v, ok := g.int32s[name]; ok {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
}

// Conform checks that every schema field is present with the right length.
func (g *RowGroup) Conform(s *Schema) error {
	for _, f := range s.fields {
		var n int
		var ok bool
		switch f.Type {
		case Int32:
			var v []int32
			v, ok = g.int32s[f.Name]
			n = len(v)
		case Int64:
			var v []int64
			v, ok = g.int64s[f.Name]
			n = len(v)
		case Float64:
			var v []float64
			v, ok = g.float64s[f.Name]
			n = len(v)
		}
		if !ok {
			return fmt.Errorf("%w: missing %s column %s", ErrSchema, f.Type, f.Name)
		}
		if n != g.rows {
			return fmt.Errorf("%w: column %s has %d rows, want %d", ErrSchema, f.Name, n, g.rows)
		}
	}
	return nil
}
