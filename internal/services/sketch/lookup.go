package sketch

import "math"

// DefaultLUTSize is the bucket count used for feature normalization.
const DefaultLUTSize = 1 << 17

// LookupTable maps a raw value to 2*CDF(value)-1 by linear interpolation
// over evenly spaced buckets between the digest's min and max. It is
// read-only after construction and safe for concurrent use.
type LookupTable struct {
	min, max float64
	step     float64
	values   []float64
}

// NewLookupTable samples the digest's CDF at size evenly spaced points.
func NewLookupTable(d *TDigest, size int) (*LookupTable, error) {
	if d.Count() == 0 {
		return nil, ErrEmptyDigest
	}
	if size < 2 {
		size = 2
	}
	lo, hi := d.Min(), d.Max()
	t := &LookupTable{min: lo, max: hi}
	if hi == lo {
		t.values = []float64{0}
		return t, nil
	}
	t.step = (hi - lo) / float64(size-1)
	t.values = make([]float64, size)
	prev := -1.0
	for i := range t.values {
		x := lo + float64(i)*t.step
		v := clamp(2*d.CDF(x) - 1)
		// monotone even if interpolation noise dips
		if v < prev {
			v = prev
		}
		t.values[i] = v
		prev = v
	}
	t.values[0] = -1
	t.values[size-1] = 1
	return t, nil
}

// Lookup returns the normalized value in [-1, 1]. Inputs outside the
// table's range clamp to its ends; NaN maps to 0.
func (t *LookupTable) Lookup(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x <= t.min:
		if x == t.min && len(t.values) == 1 {
			return 0
		}
		return -1
	case x >= t.max:
		return 1
	}
	pos := (x - t.min) / t.step
	i := int(pos)
	if i >= len(t.values)-1 {
		return t.values[len(t.values)-1]
	}
	frac := pos - float64(i)
	return clamp(t.values[i] + frac*(t.values[i+1]-t.values[i]))
}

// Apply normalizes src into dst, which must be at least as long.
func (t *LookupTable) Apply(dst, src []float64) {
	for i, v := range src {
		dst[i] = t.Lookup(v)
	}
}

func (t *LookupTable) Size() int { return len(t.values) }

func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
