package sketch

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/influxdata/tdigest"
)

// digest encoding, little endian:
//
//	compression f64 | min f64 | max f64 | total f64 | n u32 | n x (mean f64, weight f64)
const digestHeaderSize = 8*4 + 4

// MarshalBinary encodes the compressed centroid list of d.
func (d *TDigest) MarshalBinary() ([]byte, error) {
	cs := d.Centroids()
	buf := make([]byte, digestHeaderSize+16*len(cs))
	le := binary.LittleEndian
	le.PutUint64(buf[0:], math.Float64bits(d.Compression()))
	le.PutUint64(buf[8:], math.Float64bits(d.min))
	le.PutUint64(buf[16:], math.Float64bits(d.max))
	le.PutUint64(buf[24:], math.Float64bits(d.total))
	le.PutUint32(buf[32:], uint32(len(cs)))
	off := digestHeaderSize
	for _, c := range cs {
		le.PutUint64(buf[off:], math.Float64bits(c.Mean))
		le.PutUint64(buf[off+8:], math.Float64bits(c.Weight))
		off += 16
	}
	return buf, nil
}

// UnmarshalBinary replaces d with the encoded digest.
func (d *TDigest) UnmarshalBinary(data []byte) error {
	if len(data) < digestHeaderSize {
		return fmt.Errorf("%w: digest header truncated", ErrBadEncoding)
	}
	le := binary.LittleEndian
	compression := math.Float64frombits(le.Uint64(data[0:]))
	n := int(le.Uint32(data[32:]))
	if !(compression > 0) || math.IsInf(compression, 1) {
		return fmt.Errorf("%w: compression %v", ErrBadEncoding, compression)
	}
	if len(data)-digestHeaderSize != 16*n {
		return fmt.Errorf("%w: want %d centroid bytes, have %d", ErrBadEncoding, 16*n, len(data)-digestHeaderSize)
	}

	cs := make(tdigest.CentroidList, 0, n)
	var sum float64
	off := digestHeaderSize
	for i := 0; i < n; i++ {
		c := tdigest.Centroid{
			Mean:   math.Float64frombits(le.Uint64(data[off:])),
			Weight: math.Float64frombits(le.Uint64(data[off+8:])),
		}
		off += 16
		if math.IsNaN(c.Mean) || !(c.Weight > 0) {
			return fmt.Errorf("%w: centroid %d is %+v", ErrBadEncoding, i, c)
		}
		if i > 0 && c.Mean < cs[i-1].Mean {
			return fmt.Errorf("%w: centroids out of order at %d", ErrBadEncoding, i)
		}
		cs = append(cs, c)
		sum += c.Weight
	}
	total := math.Float64frombits(le.Uint64(data[24:]))
	if math.Abs(sum-total) > 1e-6*math.Max(1, total) {
		return fmt.Errorf("%w: centroid weight %v does not match total %v", ErrBadEncoding, sum, total)
	}

	out := New(compression)
	out.td.AddCentroidList(cs)
	out.total = total
	if n > 0 {
		out.min = math.Float64frombits(le.Uint64(data[8:]))
		out.max = math.Float64frombits(le.Uint64(data[16:]))
		if !(out.min <= cs[0].Mean && cs[n-1].Mean <= out.max) {
			return fmt.Errorf("%w: range [%v,%v] does not cover centroids", ErrBadEncoding, out.min, out.max)
		}
	}
	out.Compress()
	*d = *out
	return nil
}
