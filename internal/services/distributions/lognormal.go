package distributions

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// LogNormal is parameterized by the mean and stddev of the underlying normal.
type LogNormal struct {
	Mu    float64
	Sigma float64
}

// NewLogNormalFromMeanStd converts a target mean/stddev into mu/sigma:
// sigma^2 = ln(1 + std^2/mean^2), mu = ln(mean) - sigma^2/2.
func NewLogNormalFromMeanStd(mean, std float64) (LogNormal, error) {
	if err := positive("mean", mean); err != nil {
		return LogNormal{}, err
	}
	if err := positive("stddev", std); err != nil {
		return LogNormal{}, err
	}
	s2 := math.Log1p(std * std / (mean * mean))
	return LogNormal{Mu: math.Log(mean) - s2/2, Sigma: math.Sqrt(s2)}, nil
}

// NewLogNormalFromMedianMean uses mu = ln(median), sigma = sqrt(2 ln(mean/median)).
// mean equal to median gives a point mass.
func NewLogNormalFromMedianMean(median, mean float64) (LogNormal, error) {
	if err := positive("median", median); err != nil {
		return LogNormal{}, err
	}
	if err := positive("mean", mean); err != nil {
		return LogNormal{}, err
	}
	if mean < median {
		return LogNormal{}, fmt.Errorf("%w: mean %v below median %v", ErrInvalidParams, mean, median)
	}
	return LogNormal{Mu: math.Log(median), Sigma: math.Sqrt(2 * math.Log(mean/median))}, nil
}

func (d LogNormal) Median() float64 { return math.Exp(d.Mu) }

func (d LogNormal) Mean() float64 { return math.Exp(d.Mu + d.Sigma*d.Sigma/2) }

func (d LogNormal) StdDev() float64 {
	s2 := d.Sigma * d.Sigma
	return math.Sqrt(math.Expm1(s2)) * d.Mean()
}

// Sample draws one normal variate even for a point mass so the stream
// advances the same way for every parameterization.
func (d LogNormal) Sample(r *rand.Rand) float64 {
	z := r.NormFloat64()
	if d.Sigma == 0 {
		return d.Median()
	}
	return math.Exp(d.Mu + d.Sigma*z)
}

func (d LogNormal) LogProb(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	if d.Sigma == 0 {
		if x == d.Median() {
			return 0
		}
		return math.Inf(-1)
	}
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma}.LogProb(x)
}
