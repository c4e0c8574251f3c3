package distributions

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// MaxSigma bounds truncation limits before the degeneracy check.
const MaxSigma = 8.0

// TruncatedStdNormal draws Z ~ N(0,1) conditioned on lo <= Z <= hi by inverse
// CDF. Limits are clipped to [-MaxSigma, MaxSigma]; when the clipped interval is
// empty it falls back to an unconstrained draw.
func TruncatedStdNormal(r *rand.Rand, lo, hi float64) float64 {
	lo = clip(lo, -MaxSigma, MaxSigma)
	hi = clip(hi, -MaxSigma, MaxSigma)
	if math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi {
		return r.NormFloat64()
	}
	// Work in the lower tail where the CDF keeps its precision.
	if lo >= 0 {
		return -truncLower(r, -hi, -lo)
	}
	return truncLower(r, lo, hi)
}

func truncLower(r *rand.Rand, lo, hi float64) float64 {
	n := distuv.UnitNormal
	pLo := n.CDF(lo)
	pHi := n.CDF(hi)
	z := n.Quantile(pLo + r.Float64()*(pHi-pLo))
	return clip(z, lo, hi)
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
