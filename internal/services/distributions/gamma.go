package distributions

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Gamma uses the shape/rate parameterization.
type Gamma struct {
	Shape float64
	Rate  float64
}

// NewGammaFromMeanStd: shape = mean^2/std^2, rate = mean/std^2.
func NewGammaFromMeanStd(mean, std float64) (Gamma, error) {
	if err := positive("mean", mean); err != nil {
		return Gamma{}, err
	}
	if err := positive("stddev", std); err != nil {
		return Gamma{}, err
	}
	v := std * std
	return Gamma{Shape: mean * mean / v, Rate: mean / v}, nil
}

func (g Gamma) Mean() float64 { return g.Shape / g.Rate }

func (g Gamma) StdDev() float64 { return math.Sqrt(g.Shape) / g.Rate }

func (g Gamma) LogProb(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return distuv.Gamma{Alpha: g.Shape, Beta: g.Rate}.LogProb(x)
}

// Sample uses Marsaglia-Tsang, boosting shapes below one.
func (g Gamma) Sample(r *rand.Rand) float64 {
	shape := g.Shape
	boost := 1.0
	if shape < 1 {
		boost = math.Pow(r.Float64(), 1/shape)
		shape++
	}
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return boost * d * v / g.Rate
		}
	}
}
