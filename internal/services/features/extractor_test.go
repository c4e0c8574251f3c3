package features

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string][]float64

func (m mapSource) Numeric(name string) ([]float64, error) {
	v, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no column %s", name)
	}
	return v, nil
}

func (m mapSource) has(name string) bool {
	_, ok := m[name]
	return ok
}

var src = mapSource{
	"open_1s":  {100, 101, 102},
	"high_1s":  {101, 101, 104},
	"close_1s": {100.5, 100, 103},
}

func TestExtractPlainColumnCopies(t *testing.T) {
	out, err := Extract(src, Spec{Name: "c", Column: "close_1s"})
	require.NoError(t, err)
	assert.Equal(t, src["close_1s"], out)
	out[0] = -1
	assert.Equal(t, 100.5, src["close_1s"][0])
}

func TestExtractSubAndLogRatio(t *testing.T) {
	out, err := Extract(src, Spec{Name: "h", Column: "high_1s", Base: "open_1s", Transform: Sub})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2}, out)

	out, err = Extract(src, Spec{Name: "h", Column: "high_1s", Base: "open_1s", Transform: LogRatio})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.01), out[0], 1e-15)
	assert.Equal(t, 0.0, out[1])
}

func TestExtractDiff(t *testing.T) {
	out, err := Extract(src, Spec{Name: "d", Column: "close_1s", Diff: true})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, []float64{-0.5, 3}, out[1:])
}

func TestExtractMissingColumns(t *testing.T) {
	_, err := Extract(src, Spec{Name: "x", Column: "nope"})
	assert.Error(t, err)
	_, err = Extract(src, Spec{Name: "x", Column: "close_1s", Base: "nope"})
	assert.Error(t, err)
}

func TestComputeLogReturns(t *testing.T) {
	assert.Nil(t, ComputeLogReturns([]float64{1}))
	r := ComputeLogReturns([]float64{100, 110, 0, 5})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-15)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
}

func TestExtractLogReturn(t *testing.T) {
	out, err := Extract(src, Spec{Name: "r", Column: "close_1s", Transform: LogReturn})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, math.Log(100/100.5), out[1], 1e-15)
	assert.InDelta(t, math.Log(103/100.0), out[2], 1e-15)

	out, err = Extract(mapSource{"x": {}}, Spec{Name: "r", Column: "x", Transform: LogReturn})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDefaultSpecs(t *testing.T) {
	specs := DefaultSpecs()
	require.Len(t, specs, 9)
	assert.Equal(t, "cdf_high_1s", specs[0].OutputColumn())
	assert.Equal(t, "high", specs[0].Column)
	assert.Equal(t, "open", specs[0].Base)
	assert.Equal(t, "close_5m", specs[8].Column)
	assert.Equal(t, "open_5m", specs[8].Base)
}

func TestValidate(t *testing.T) {
	ok := []Spec{{Name: "h", Column: "high_1s", Base: "open_1s"}}
	assert.NoError(t, Validate(ok, src.has))

	assert.Error(t, Validate(append(ok, ok[0]), src.has))
	assert.Error(t, Validate([]Spec{{Name: "h", Column: "high_5m"}}, src.has))
	assert.Error(t, Validate([]Spec{{Name: "h", Column: "high_1s", Base: "open_5m"}}, src.has))
	assert.Error(t, Validate([]Spec{{Name: "h", Column: "high_1s", Transform: "sqrt"}}, src.has))
	assert.Error(t, Validate([]Spec{{Column: "high_1s"}}, src.has))
	assert.NoError(t, Validate([]Spec{{Name: "r", Column: "close_1s", Transform: LogReturn}}, src.has))
	assert.Error(t, Validate([]Spec{{Name: "r", Column: "close_1s", Base: "open_1s", Transform: LogReturn}}, src.has))

	withOut := mapSource{"high_1s": nil, "cdf_h": nil}
	assert.Error(t, Validate([]Spec{{Name: "h", Column: "high_1s"}}, withOut.has))
}
