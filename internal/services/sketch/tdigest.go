// Package sketch holds the mergeable t-digest used to approximate each
// feature's distribution and the lookup table derived from it.
package sketch

import (
	"errors"
	"math"

	"github.com/influxdata/tdigest"
)

var (
	ErrEmptyDigest = errors.New("sketch: digest is empty")
	ErrBadEncoding = errors.New("sketch: bad encoding")
)

const DefaultCompression = 1000

// TDigest is a merging t-digest that also tracks the exact weight and range
// of what was added. It is not safe for concurrent mutation; after Compress
// queries no longer modify it.
type TDigest struct {
	td       *tdigest.TDigest
	total    float64
	min, max float64
}

// New returns an empty digest. Larger compression keeps more centroids.
func New(compression float64) *TDigest {
	if !(compression > 0) {
		compression = DefaultCompression
	}
	return &TDigest{
		td:  tdigest.NewWithCompression(compression),
		min: math.Inf(1),
		max: math.Inf(-1),
	}
}

func (d *TDigest) Compression() float64 { return d.td.Compression }

// Add records one observation. Non-finite values are ignored.
func (d *TDigest) Add(x float64) { d.AddWeighted(x, 1) }

// AddWeighted records x with weight w.
func (d *TDigest) AddWeighted(x, w float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) || !(w > 0) || math.IsInf(w, 1) {
		return
	}
	d.td.Add(x, w)
	d.observe(x, x, w)
}

func (d *TDigest) observe(lo, hi, w float64) {
	d.total += w
	d.min = min(d.min, lo)
	d.max = max(d.max, hi)
}

// Merge folds the centroids of other into d.
func (d *TDigest) Merge(other *TDigest) {
	if other == nil || other.total == 0 {
		return
	}
	d.td.AddCentroidList(other.td.Centroids(nil))
	d.observe(other.min, other.max, other.total)
}

// Count is the total weight added.
func (d *TDigest) Count() float64 { return d.total }

func (d *TDigest) Min() float64 { return d.min }

func (d *TDigest) Max() float64 { return d.max }

// Centroids returns a copy of the compressed centroids in ascending mean order.
func (d *TDigest) Centroids() tdigest.CentroidList { return d.td.Centroids(nil) }

// Compress folds pending observations into the centroid list.
func (d *TDigest) Compress() { _ = d.td.Centroids(nil) }

// CDF estimates the fraction of observations <= x. It returns NaN for an
// empty digest and exactly 0 or 1 outside the observed range.
func (d *TDigest) CDF(x float64) float64 {
	switch {
	case d.total == 0:
		return math.NaN()
	case x < d.min:
		return 0
	case x >= d.max:
		return 1
	}
	return d.td.CDF(x)
}

// Quantile inverts CDF. q is clamped to [0,1]; an empty digest yields NaN.
func (d *TDigest) Quantile(q float64) float64 {
	switch {
	case d.total == 0:
		return math.NaN()
	case q <= 0:
		return d.min
	case q >= 1:
		return d.max
	}
	return min(d.max, max(d.min, d.td.Quantile(q)))
}
